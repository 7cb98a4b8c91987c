package builtin

import (
	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

type CostAwareBuilder struct{}

func (b *CostAwareBuilder) Build(cfg *strategy.Config) (strategy.Strategy, error) {
	return &CostAwareStrategy{
		maxCost:       cfg.MaxCost,
		preferQuality: cfg.PreferQuality,
	}, nil
}

// CostAwareStrategy 在满足最大成本约束的候选中选最低成本，
// preferQuality 时改为质量性价比最高者。context 的 MaxCost 覆盖配置值。
type CostAwareStrategy struct {
	maxCost       float64
	preferQuality bool
}

func (r *CostAwareStrategy) Name() string { return StrategyCostAware }

func (r *CostAwareStrategy) Select(view strategy.PoolView, sctx *types.SelectionContext) (*types.Endpoint, error) {
	endpoints := view.Usable()
	if len(endpoints) == 0 {
		return nil, errcode.ErrPoolExhausted
	}

	maxCost := r.maxCost
	if sctx != nil && sctx.MaxCost > 0 {
		maxCost = sctx.MaxCost
	}

	var best *types.Endpoint
	bestScore := 0.0
	for _, ep := range endpoints {
		if maxCost > 0 && ep.CostWeight > maxCost {
			continue
		}
		score := r.score(ep)
		if best == nil || score > bestScore {
			best = ep
			bestScore = score
		}
	}
	if best == nil {
		return nil, errcode.ErrPoolExhausted.WithData(map[string]string{
			"max_cost": formatFloat(maxCost),
		})
	}
	return best, nil
}

func (r *CostAwareStrategy) score(ep *types.Endpoint) float64 {
	cost := ep.CostWeight
	if cost <= 0 {
		cost = 1e-9 // 免费的排最前
	}
	if r.preferQuality {
		return ep.Quality / cost
	}
	return 1 / cost
}

func (r *CostAwareStrategy) RecordResult(_ *types.Endpoint, _ bool, _ float64) {}
