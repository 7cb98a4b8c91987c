package builtin

import (
	"fmt"
	"sync/atomic"

	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

const (
	FilterGeo     = "geo"
	FilterCost    = "cost"
	FilterHealthy = "healthy"
)

// NewFilter 按名字构造内建过滤器
func NewFilter(name string) (strategy.Filter, error) {
	switch name {
	case FilterGeo:
		return &GeoFilter{}, nil
	case FilterCost:
		return &CostFilter{}, nil
	case FilterHealthy:
		return &HealthyFilter{}, nil
	default:
		return nil, fmt.Errorf("unknown filter %q", name)
	}
}

// GeoFilter 保留满足 context 地域要求的候选
type GeoFilter struct{}

func (f *GeoFilter) Name() string { return FilterGeo }

func (f *GeoFilter) Apply(_ strategy.PoolView, candidates []*types.Endpoint, sctx *types.SelectionContext) []*types.Endpoint {
	return filterByGeo(candidates, sctx)
}

// CostFilter 剔除超出最大成本的候选，无约束时原样返回
type CostFilter struct{}

func (f *CostFilter) Name() string { return FilterCost }

func (f *CostFilter) Apply(_ strategy.PoolView, candidates []*types.Endpoint, sctx *types.SelectionContext) []*types.Endpoint {
	if sctx == nil || sctx.MaxCost <= 0 {
		return candidates
	}
	filtered := make([]*types.Endpoint, 0, len(candidates))
	for _, ep := range candidates {
		if ep.CostWeight <= sctx.MaxCost {
			filtered = append(filtered, ep)
		}
	}
	return filtered
}

// HealthyFilter 只保留明确上报过 healthy 的候选，比 Usable 更严格
type HealthyFilter struct{}

func (f *HealthyFilter) Name() string { return FilterHealthy }

func (f *HealthyFilter) Apply(view strategy.PoolView, candidates []*types.Endpoint, _ *types.SelectionContext) []*types.Endpoint {
	filtered := make([]*types.Endpoint, 0, len(candidates))
	for _, ep := range candidates {
		if stats, ok := view.Stats(ep.Addr()); ok && stats.Status == types.HealthHealthy {
			filtered = append(filtered, ep)
		}
	}
	return filtered
}

type CompositeBuilder struct{}

func (b *CompositeBuilder) Build(cfg *strategy.Config) (strategy.Strategy, error) {
	filters := make([]strategy.Filter, 0, len(cfg.Filters))
	for _, name := range cfg.Filters {
		f, err := NewFilter(name)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	terminalName := cfg.Terminal
	if terminalName == "" {
		terminalName = StrategyRoundRobin
	}
	terminal, err := cfg.Registry.Build(&strategy.Config{Name: terminalName, Registry: cfg.Registry})
	if err != nil {
		return nil, err
	}
	c := &CompositeStrategy{}
	c.pipeline.Store(&pipeline{filters: filters, terminal: terminal})
	return c, nil
}

type pipeline struct {
	filters  []strategy.Filter
	terminal strategy.Strategy
}

// CompositeStrategy 有序过滤管道加一个终端选择器。
// 管道整体存在 atomic.Pointer 里，Reconfigure 的热替换对并发选择原子可见。
type CompositeStrategy struct {
	pipeline atomic.Pointer[pipeline]
}

func (r *CompositeStrategy) Name() string { return StrategyComposite }

func (r *CompositeStrategy) Select(view strategy.PoolView, sctx *types.SelectionContext) (*types.Endpoint, error) {
	p := r.pipeline.Load()
	candidates := view.Usable()
	for _, f := range p.filters {
		candidates = f.Apply(view, candidates, sctx)
		if len(candidates) == 0 {
			return nil, errcode.ErrPoolExhausted.WithData(map[string]string{"filter": f.Name()})
		}
	}
	return p.terminal.Select(strategy.NewStaticView(view, candidates), sctx)
}

func (r *CompositeStrategy) RecordResult(ep *types.Endpoint, success bool, latencyMs float64) {
	r.pipeline.Load().terminal.RecordResult(ep, success, latencyMs)
}

// Reconfigure 运行时替换整条管道
func (r *CompositeStrategy) Reconfigure(filters []strategy.Filter, terminal strategy.Strategy) {
	r.pipeline.Store(&pipeline{filters: filters, terminal: terminal})
}
