package builtin

import (
	"math/rand/v2"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

type WeightedBuilder struct{}

func (b *WeightedBuilder) Build(_ *strategy.Config) (strategy.Strategy, error) {
	return &WeightedStrategy{}, nil
}

// WeightedStrategy 权重内均匀随机。权重优先取 context 覆盖值，
// 否则用平滑成功率推导；权重 <= 0 的 endpoint 不参与。
type WeightedStrategy struct{}

func (r *WeightedStrategy) Name() string { return StrategyWeighted }

func (r *WeightedStrategy) Select(view strategy.PoolView, sctx *types.SelectionContext) (*types.Endpoint, error) {
	endpoints := view.Usable()
	if len(endpoints) == 0 {
		return nil, errcode.ErrPoolExhausted
	}

	// 权重前缀和落到 treemap，Floor 一次定位命中区间
	stages := treemap.NewWith(utils.Float64Comparator)
	total := 0.0
	for _, ep := range endpoints {
		w := r.weightOf(view, ep, sctx)
		if w <= 0 {
			continue
		}
		stages.Put(total, ep)
		total += w
	}
	if total <= 0 {
		return nil, errcode.ErrPoolExhausted
	}

	_, raw := stages.Floor(rand.Float64() * total)
	if raw == nil {
		return nil, errcode.ErrPoolExhausted
	}
	return raw.(*types.Endpoint), nil
}

func (r *WeightedStrategy) weightOf(view strategy.PoolView, ep *types.Endpoint, sctx *types.SelectionContext) float64 {
	if sctx != nil {
		if w, ok := sctx.Weights[ep.Addr()]; ok {
			return w
		}
	}
	stats, ok := view.Stats(ep.Addr())
	if !ok {
		return 1
	}
	return stats.SuccessRate()
}

func (r *WeightedStrategy) RecordResult(_ *types.Endpoint, _ bool, _ float64) {}
