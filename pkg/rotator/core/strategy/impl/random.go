package builtin

import (
	"math/rand/v2"

	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

type RandomBuilder struct{}

func (b *RandomBuilder) Build(_ *strategy.Config) (strategy.Strategy, error) {
	return &RandomStrategy{}, nil
}

// RandomStrategy 均匀随机，非密码学 PRNG 足够
type RandomStrategy struct{}

func (r *RandomStrategy) Name() string { return StrategyRandom }

func (r *RandomStrategy) Select(view strategy.PoolView, _ *types.SelectionContext) (*types.Endpoint, error) {
	endpoints := view.Usable()
	if len(endpoints) == 0 {
		return nil, errcode.ErrPoolExhausted
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

func (r *RandomStrategy) RecordResult(_ *types.Endpoint, _ bool, _ float64) {}
