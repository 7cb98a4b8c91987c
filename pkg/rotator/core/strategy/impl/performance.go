package builtin

import (
	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

// 无 EWMA 样本的 endpoint 按这个延迟档打分，保证新 endpoint 也会被采样到
const defaultNeutralLatencyMs = 250.0

type PerformanceBuilder struct{}

func (b *PerformanceBuilder) Build(cfg *strategy.Config) (strategy.Strategy, error) {
	neutral := cfg.NeutralLatencyMs
	if neutral <= 0 {
		neutral = defaultNeutralLatencyMs
	}
	return &PerformanceStrategy{neutralLatencyMs: neutral}, nil
}

// PerformanceStrategy 取得分最高者，得分与 EWMA 响应时间成反比，平局按插入顺序
type PerformanceStrategy struct {
	neutralLatencyMs float64
}

func (r *PerformanceStrategy) Name() string { return StrategyPerformance }

func (r *PerformanceStrategy) Select(view strategy.PoolView, _ *types.SelectionContext) (*types.Endpoint, error) {
	endpoints := view.Usable()
	if len(endpoints) == 0 {
		return nil, errcode.ErrPoolExhausted
	}

	var best *types.Endpoint
	bestScore := 0.0
	for _, ep := range endpoints {
		score := r.score(view, ep)
		if best == nil || score > bestScore {
			best = ep
			bestScore = score
		}
	}
	return best, nil
}

func (r *PerformanceStrategy) score(view strategy.PoolView, ep *types.Endpoint) float64 {
	latency := r.neutralLatencyMs
	if stats, ok := view.Stats(ep.Addr()); ok && stats.HasEWMA {
		latency = stats.EWMALatencyMs
	}
	if latency < 1 {
		latency = 1
	}
	return 1 / latency
}

func (r *PerformanceStrategy) RecordResult(_ *types.Endpoint, _ bool, _ float64) {}
