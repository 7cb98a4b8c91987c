package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
)

func TestRandomStaysInPool(t *testing.T) {
	p := testPool(testEndpoint("a", 1), testEndpoint("b", 1), testEndpoint("c", 1))
	s := &RandomStrategy{}

	for i := 0; i < 20; i++ {
		ep, err := s.Select(p, nil)
		require.NoError(t, err)
		assert.Contains(t, []string{"a:1", "b:1", "c:1"}, ep.Addr())
	}

	_, err := s.Select(testPool(), nil)
	assert.ErrorIs(t, err, errcode.ErrPoolExhausted)
}

func TestWeightedContextOverride(t *testing.T) {
	p := testPool(testEndpoint("a", 1), testEndpoint("b", 1))
	s := &WeightedStrategy{}

	// b 权重为 0 被排除，只剩 a
	sctx := &types.SelectionContext{Weights: map[string]float64{"a:1": 1, "b:1": 0}}
	for i := 0; i < 10; i++ {
		ep, err := s.Select(p, sctx)
		require.NoError(t, err)
		assert.Equal(t, "a:1", ep.Addr())
	}
}

func TestWeightedAllZero(t *testing.T) {
	p := testPool(testEndpoint("a", 1), testEndpoint("b", 1))
	s := &WeightedStrategy{}

	sctx := &types.SelectionContext{Weights: map[string]float64{"a:1": 0, "b:1": -1}}
	_, err := s.Select(p, sctx)
	assert.ErrorIs(t, err, errcode.ErrPoolExhausted)
}

func TestWeightedSuccessRateDefault(t *testing.T) {
	p := testPool(testEndpoint("a", 1), testEndpoint("b", 1))
	s := &WeightedStrategy{}

	// b 持续失败，成功率权重被压低，a 应当占多数
	for i := 0; i < 50; i++ {
		p.MarkStarted("a:1")
		p.RecordOutcome("a:1", true, 10)
		p.MarkStarted("b:1")
		p.RecordOutcome("b:1", false, 10)
	}

	counts := make(map[string]int)
	for i := 0; i < 200; i++ {
		ep, err := s.Select(p, nil)
		require.NoError(t, err)
		counts[ep.Addr()]++
	}
	assert.Greater(t, counts["a:1"], counts["b:1"])
}

func TestPerformancePrefersLowestLatency(t *testing.T) {
	p := testPool(testEndpoint("a", 1), testEndpoint("b", 1), testEndpoint("c", 1))
	s, err := (&PerformanceBuilder{}).Build(&strategy.Config{NeutralLatencyMs: 50})
	require.NoError(t, err)

	p.MarkStarted("a:1")
	p.RecordOutcome("a:1", true, 300)
	p.MarkStarted("b:1")
	p.RecordOutcome("b:1", true, 20)

	// c 没有样本按中性档 50ms 打分，b 的 20ms 仍然最优
	ep, err := s.Select(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "b:1", ep.Addr())
}

func TestPerformanceNeutralBeatsSlow(t *testing.T) {
	p := testPool(testEndpoint("a", 1), testEndpoint("b", 1))
	s, err := (&PerformanceBuilder{}).Build(&strategy.Config{NeutralLatencyMs: 100})
	require.NoError(t, err)

	// a 实测 500ms 比中性档差，无样本的 b 胜出
	p.MarkStarted("a:1")
	p.RecordOutcome("a:1", true, 500)

	ep, err := s.Select(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "b:1", ep.Addr())
}

func TestCostAwareCheapestWins(t *testing.T) {
	a, b, c := testEndpoint("a", 1), testEndpoint("b", 1), testEndpoint("c", 1)
	a.CostWeight = 3
	b.CostWeight = 1
	c.CostWeight = 2
	p := testPool(a, b, c)

	s, err := testRegistry().BuildByName(StrategyCostAware)
	require.NoError(t, err)

	ep, err := s.Select(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "b:1", ep.Addr())
}

func TestCostAwareMaxCostConstraint(t *testing.T) {
	a, b := testEndpoint("a", 1), testEndpoint("b", 1)
	a.CostWeight = 1
	b.CostWeight = 5
	p := testPool(a, b)

	s, err := testRegistry().BuildByName(StrategyCostAware)
	require.NoError(t, err)

	// context 的 MaxCost 卡掉便宜之外的候选
	ep, err := s.Select(p, &types.SelectionContext{MaxCost: 2})
	require.NoError(t, err)
	assert.Equal(t, "a:1", ep.Addr())

	// 无人满足约束
	_, err = s.Select(p, &types.SelectionContext{MaxCost: 0.5})
	assert.ErrorIs(t, err, errcode.ErrPoolExhausted)
}

func TestCostAwarePreferQuality(t *testing.T) {
	a, b := testEndpoint("a", 1), testEndpoint("b", 1)
	a.CostWeight, a.Quality = 1, 0.2
	b.CostWeight, b.Quality = 2, 0.9
	p := testPool(a, b)

	s := &CostAwareStrategy{preferQuality: true}

	// 质量性价比 b 0.45 > a 0.2
	ep, err := s.Select(p, nil)
	require.NoError(t, err)
	assert.Equal(t, "b:1", ep.Addr())
}
