package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proxy-rotator/pkg/rotator/core/breaker"
	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/retry"
	"proxy-rotator/pkg/rotator/core/strategy"
	builtin "proxy-rotator/pkg/rotator/core/strategy/impl"
	"proxy-rotator/pkg/rotator/core/types"
)

func newTestRotator(t *testing.T, cfg *Config, endpoints ...*types.Endpoint) *Rotator {
	t.Helper()
	r, err := New(cfg)
	require.NoError(t, err)
	for _, ep := range endpoints {
		r.AddEndpoint(ep)
	}
	return r
}

func testEndpoint(host string, port uint32) *types.Endpoint {
	return &types.Endpoint{Host: host, Port: port, Protocol: types.ProtocolHTTP}
}

func TestNewDefaults(t *testing.T) {
	r := newTestRotator(t, nil)
	assert.Equal(t, builtin.StrategyRoundRobin, r.Strategy().Name())
	assert.Contains(t, r.Registry().Names(), builtin.StrategySession)
}

func TestNewUnknownStrategy(t *testing.T) {
	_, err := New(&Config{Strategy: &strategy.Config{Name: "no_such_strategy"}})
	assert.ErrorIs(t, err, errcode.ErrStrategyNotFound)
}

func TestSelectRotates(t *testing.T) {
	r := newTestRotator(t, nil, testEndpoint("a", 1), testEndpoint("b", 1))

	first, err := r.Select(nil)
	require.NoError(t, err)
	second, err := r.Select(nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Addr(), second.Addr())
}

func TestSelectAllEndpointsDead(t *testing.T) {
	r := newTestRotator(t, nil, testEndpoint("a", 1), testEndpoint("b", 1))
	r.Pool().SetStatus("a:1", types.HealthDead)
	r.Pool().SetStatus("b:1", types.HealthDead)

	// 池非空但全部不可用，等同于池耗尽
	_, err := r.Select(nil)
	assert.ErrorIs(t, err, errcode.ErrPoolExhausted)
}

func TestSetStrategyByName(t *testing.T) {
	r := newTestRotator(t, nil, testEndpoint("a", 1))

	require.NoError(t, r.SetStrategyByName(builtin.StrategyRandom))
	assert.Equal(t, builtin.StrategyRandom, r.Strategy().Name())

	// 未知名字报错且不影响当前策略
	err := r.SetStrategyByName("no_such_strategy")
	assert.ErrorIs(t, err, errcode.ErrStrategyNotFound)
	assert.Equal(t, builtin.StrategyRandom, r.Strategy().Name())
}

func TestHotSwapDuringSelects(t *testing.T) {
	r := newTestRotator(t, nil, testEndpoint("a", 1), testEndpoint("b", 1))

	// 并发选择的同时热切策略，每次选择要么走旧策略要么走新策略，不会失败
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, err := r.Select(nil)
			assert.NoError(t, err)
		}
	}()

	for i := 0; i < 50; i++ {
		name := builtin.StrategyRandom
		if i%2 == 0 {
			name = builtin.StrategyRoundRobin
		}
		require.NoError(t, r.SetStrategyByName(name))
	}
	close(stop)
	wg.Wait()
}

func TestRemoveEndpointClearsBreaker(t *testing.T) {
	r := newTestRotator(t, &Config{
		Breaker: &breaker.Config{FailureThreshold: 1, RecoveryTimeout: time.Minute},
	}, testEndpoint("a", 1))

	_, err := r.Execute(context.Background(), func(_ context.Context, _ *types.Endpoint) (any, error) {
		return nil, retry.Retryable(errors.New("boom"))
	}, nil)
	require.Error(t, err)
	assert.Equal(t, breaker.Open, r.BreakerStates()["a:1"].State)

	// 移除再加回来，熔断器从零开始
	r.RemoveEndpoint("a:1")
	r.AddEndpoint(testEndpoint("a", 1))
	val, err := r.Execute(context.Background(), func(_ context.Context, ep *types.Endpoint) (any, error) {
		return ep.Addr(), nil
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a:1", val)
}

func TestExecuteRecordsStats(t *testing.T) {
	r := newTestRotator(t, nil, testEndpoint("a", 1))

	_, err := r.Execute(context.Background(), func(_ context.Context, _ *types.Endpoint) (any, error) {
		return "ok", nil
	}, nil)
	require.NoError(t, err)

	stats := r.EndpointStats()["a:1"]
	assert.Equal(t, uint64(1), stats.RequestsCompleted)
	assert.Equal(t, uint64(1), stats.Successes)
	assert.True(t, stats.HasEWMA)
}

func TestExecuteAsync(t *testing.T) {
	r := newTestRotator(t, nil, testEndpoint("a", 1))

	ch := r.ExecuteAsync(context.Background(), func(_ context.Context, ep *types.Endpoint) (any, error) {
		return ep.Addr(), nil
	}, nil)

	select {
	case res := <-ch:
		require.NoError(t, res.Err)
		assert.Equal(t, "a:1", res.Value)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for async result")
	}
}

func TestExecuteAsyncPropagatesError(t *testing.T) {
	r := newTestRotator(t, nil)

	ch := r.ExecuteAsync(context.Background(), func(_ context.Context, _ *types.Endpoint) (any, error) {
		return "ok", nil
	}, nil)

	res := <-ch
	assert.ErrorIs(t, res.Err, errcode.ErrPoolExhausted)
	assert.Nil(t, res.Value)
}

func TestPoolStats(t *testing.T) {
	r := newTestRotator(t, nil, testEndpoint("a", 1), testEndpoint("b", 1))
	r.Pool().SetStatus("a:1", types.HealthHealthy)

	counts := r.PoolStats()
	assert.Equal(t, 1, counts[types.HealthHealthy])
	assert.Equal(t, 1, counts[types.HealthUnknown])
}
