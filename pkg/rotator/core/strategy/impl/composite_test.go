package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

func TestCompositePipeline(t *testing.T) {
	us1 := geoEndpoint("us1", "US", "")
	us1.CostWeight = 5
	us2 := geoEndpoint("us2", "US", "")
	us2.CostWeight = 1
	de1 := geoEndpoint("de1", "DE", "")
	de1.CostWeight = 1
	p := testPool(us1, us2, de1)

	s, err := testRegistry().Build(&strategy.Config{
		Name:     StrategyComposite,
		Filters:  []string{FilterGeo, FilterCost},
		Terminal: StrategyRoundRobin,
	})
	require.NoError(t, err)

	// geo 过滤剩 us1/us2，cost 过滤剩 us2
	for i := 0; i < 3; i++ {
		ep, err := s.Select(p, &types.SelectionContext{Country: "US", MaxCost: 2})
		require.NoError(t, err)
		assert.Equal(t, "us2:1", ep.Addr())
	}
}

func TestCompositeEmptyStageFails(t *testing.T) {
	us1 := geoEndpoint("us1", "US", "")
	p := testPool(us1)

	s, err := testRegistry().Build(&strategy.Config{
		Name:    StrategyComposite,
		Filters: []string{FilterGeo},
	})
	require.NoError(t, err)

	// 某一阶段清空候选集即失败，错误里带上阶段名
	_, err = s.Select(p, &types.SelectionContext{Country: "JP"})
	require.ErrorIs(t, err, errcode.ErrPoolExhausted)
	var coded *errcode.ErrWithCode
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, FilterGeo, coded.Data["filter"])
}

func TestCompositeHealthyFilter(t *testing.T) {
	p := testPool(testEndpoint("a", 1), testEndpoint("b", 1))
	p.SetStatus("b:1", types.HealthHealthy)

	s, err := testRegistry().Build(&strategy.Config{
		Name:    StrategyComposite,
		Filters: []string{FilterHealthy},
	})
	require.NoError(t, err)

	// a 还是 unknown 状态，healthy 过滤只认显式上报
	for i := 0; i < 3; i++ {
		ep, err := s.Select(p, nil)
		require.NoError(t, err)
		assert.Equal(t, "b:1", ep.Addr())
	}
}

func TestCompositeUnknownFilter(t *testing.T) {
	_, err := testRegistry().Build(&strategy.Config{
		Name:    StrategyComposite,
		Filters: []string{"no_such_filter"},
	})
	assert.Error(t, err)
}

func TestCompositeReconfigure(t *testing.T) {
	us1 := geoEndpoint("us1", "US", "")
	de1 := geoEndpoint("de1", "DE", "")
	p := testPool(us1, de1)

	r := testRegistry()
	raw, err := r.Build(&strategy.Config{
		Name:    StrategyComposite,
		Filters: []string{FilterGeo},
	})
	require.NoError(t, err)
	s := raw.(*CompositeStrategy)

	_, err = s.Select(p, &types.SelectionContext{Country: "JP"})
	require.ErrorIs(t, err, errcode.ErrPoolExhausted)

	// 热替换成无过滤管道后同一个 context 能选出结果
	terminal, err := r.BuildByName(StrategyRoundRobin)
	require.NoError(t, err)
	s.Reconfigure(nil, terminal)

	ep, err := s.Select(p, &types.SelectionContext{Country: "JP"})
	require.NoError(t, err)
	assert.Contains(t, []string{"us1:1", "de1:1"}, ep.Addr())
}
