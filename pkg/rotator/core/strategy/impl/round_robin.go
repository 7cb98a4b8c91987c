package builtin

import (
	"sync/atomic"

	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

type RoundRobinBuilder struct{}

func (b *RoundRobinBuilder) Build(_ *strategy.Config) (strategy.Strategy, error) {
	return &RoundRobinStrategy{}, nil
}

// RoundRobinStrategy 游标单调推进，对候选集长度取模。
// 游标是策略自有状态，池变化时不要求重置。
type RoundRobinStrategy struct {
	cursor atomic.Uint64
}

func (r *RoundRobinStrategy) Name() string { return StrategyRoundRobin }

func (r *RoundRobinStrategy) Select(view strategy.PoolView, _ *types.SelectionContext) (*types.Endpoint, error) {
	endpoints := view.Usable()
	if len(endpoints) == 0 {
		return nil, errcode.ErrPoolExhausted
	}
	// Add 原子推进，并发调用不会重复拿到同一个游标值
	idx := r.cursor.Add(1) - 1
	return endpoints[idx%uint64(len(endpoints))], nil
}

func (r *RoundRobinStrategy) RecordResult(_ *types.Endpoint, _ bool, _ float64) {}
