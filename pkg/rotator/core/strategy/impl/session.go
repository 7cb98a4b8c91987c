package builtin

import (
	"sync"
	"time"

	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

const defaultSessionTTL = 30 * time.Minute

type SessionBuilder struct{}

func (b *SessionBuilder) Build(cfg *strategy.Config) (strategy.Strategy, error) {
	under := cfg.Underlying
	if under == "" {
		under = StrategyRoundRobin
	}
	inner, err := cfg.Registry.Build(&strategy.Config{Name: under, Registry: cfg.Registry})
	if err != nil {
		return nil, err
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStrategy{
		under:    inner,
		ttl:      ttl,
		bindings: make(map[string]*binding),
	}, nil
}

type binding struct {
	addr      string
	expiresAt time.Time
}

// SessionStrategy 会话亲和：亲和键绑定上次选中的 endpoint，
// 绑定存活且 endpoint 仍可用时直接复用并刷新 TTL，否则委托底层策略重选
type SessionStrategy struct {
	mu       sync.Mutex
	under    strategy.Strategy
	ttl      time.Duration
	bindings map[string]*binding
}

func (r *SessionStrategy) Name() string { return StrategySession }

func (r *SessionStrategy) Select(view strategy.PoolView, sctx *types.SelectionContext) (*types.Endpoint, error) {
	key := sctx.AffinityKey()
	if key == "" {
		// 没有亲和键就是普通选择
		return r.under.Select(view, sctx)
	}

	endpoints := view.Usable()
	byAddr := make(map[string]*types.Endpoint, len(endpoints))
	for _, ep := range endpoints {
		byAddr[ep.Addr()] = ep
	}

	now := time.Now()

	r.mu.Lock()
	if b, ok := r.bindings[key]; ok {
		if ep, usable := byAddr[b.addr]; usable && now.Before(b.expiresAt) {
			b.expiresAt = now.Add(r.ttl)
			r.mu.Unlock()
			return ep, nil
		}
		// 过期或 endpoint 已不可用，废弃绑定
		delete(r.bindings, key)
	}
	r.mu.Unlock()

	ep, err := r.under.Select(view, sctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.bindings[key] = &binding{addr: ep.Addr(), expiresAt: now.Add(r.ttl)}
	r.mu.Unlock()
	return ep, nil
}

func (r *SessionStrategy) RecordResult(ep *types.Endpoint, success bool, latencyMs float64) {
	r.under.RecordResult(ep, success, latencyMs)
}

// Bindings 当前存活绑定数，监控用
func (r *SessionStrategy) Bindings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	n := 0
	for _, b := range r.bindings {
		if now.Before(b.expiresAt) {
			n++
		}
	}
	return n
}
