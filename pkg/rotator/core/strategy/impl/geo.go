package builtin

import (
	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
	"proxy-rotator/pkg/rotator/logger"
)

type GeoBuilder struct{}

func (b *GeoBuilder) Build(cfg *strategy.Config) (strategy.Strategy, error) {
	under := cfg.Underlying
	if under == "" {
		under = StrategyRoundRobin
	}
	inner, err := cfg.Registry.Build(&strategy.Config{Name: under, Registry: cfg.Registry})
	if err != nil {
		return nil, err
	}
	return &GeoStrategy{under: inner, fallback: cfg.GeoFallback}, nil
}

// GeoStrategy 按 context 要求的国家/地区过滤后再委托底层策略选择。
// 过滤后为空时的行为由配置显式决定：回退全量候选集或返回 ErrPoolExhausted。
type GeoStrategy struct {
	under    strategy.Strategy
	fallback bool
}

func (r *GeoStrategy) Name() string { return StrategyGeo }

func (r *GeoStrategy) Select(view strategy.PoolView, sctx *types.SelectionContext) (*types.Endpoint, error) {
	endpoints := view.Usable()
	if len(endpoints) == 0 {
		return nil, errcode.ErrPoolExhausted
	}

	filtered := filterByGeo(endpoints, sctx)
	if len(filtered) == 0 {
		if !r.fallback {
			return nil, errcode.ErrPoolExhausted.WithData(map[string]string{
				"country": sctx.Country,
				"region":  sctx.Region,
			})
		}
		logger.Debugf("geo: no endpoint matches country=%q region=%q, falling back to full pool",
			sctx.Country, sctx.Region)
		filtered = endpoints
	}
	return r.under.Select(strategy.NewStaticView(view, filtered), sctx)
}

func (r *GeoStrategy) RecordResult(ep *types.Endpoint, success bool, latencyMs float64) {
	r.under.RecordResult(ep, success, latencyMs)
}

// filterByGeo context 没有地域要求时原样返回
func filterByGeo(endpoints []*types.Endpoint, sctx *types.SelectionContext) []*types.Endpoint {
	if sctx == nil || (sctx.Country == "" && sctx.Region == "") {
		return endpoints
	}
	filtered := make([]*types.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if sctx.Country != "" && ep.Country != sctx.Country {
			continue
		}
		if sctx.Region != "" && ep.Region != sctx.Region {
			continue
		}
		filtered = append(filtered, ep)
	}
	return filtered
}
