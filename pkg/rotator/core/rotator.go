package core

import (
	"context"
	"sync/atomic"
	"time"

	"proxy-rotator/pkg/rotator/core/breaker"
	"proxy-rotator/pkg/rotator/core/pool"
	"proxy-rotator/pkg/rotator/core/retry"
	"proxy-rotator/pkg/rotator/core/strategy"
	builtin "proxy-rotator/pkg/rotator/core/strategy/impl"
	"proxy-rotator/pkg/rotator/core/types"
	"proxy-rotator/pkg/rotator/logger"
	"proxy-rotator/pkg/rotator/metrics"
)

// Config Rotator 的装配配置，零值字段取默认
type Config struct {
	EWMAAlpha float64          `yaml:"ewmaAlpha"`
	Strategy  *strategy.Config `yaml:"strategy"`
	Retry     *retry.Policy    `yaml:"retry"`
	Breaker   *breaker.Config  `yaml:"breaker"`

	// Registry 为 nil 时创建一个并注册全部内建策略
	Registry *strategy.Registry `yaml:"-"`
	Recorder metrics.Recorder   `yaml:"-"`
}

// activeStrategy atomic.Pointer 要求具体类型，包一层
type activeStrategy struct {
	s strategy.Strategy
}

// Rotator 对外门面：组合 pool、策略、熔断器和重试执行器。
// 当前策略放在 atomic.Pointer 里，热替换对后续调用原子可见。
type Rotator struct {
	pool     *pool.Pool
	breakers *breaker.Group
	registry *strategy.Registry
	exec     *retry.Executor
	recorder metrics.Recorder

	active atomic.Pointer[activeStrategy]
}

func New(cfg *Config) (*Rotator, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	registry := cfg.Registry
	if registry == nil {
		registry = strategy.NewRegistry()
		builtin.Register(registry)
	}

	strategyCfg := cfg.Strategy
	if strategyCfg == nil {
		strategyCfg = &strategy.Config{Name: builtin.StrategyRoundRobin}
	}
	strat, err := registry.Build(strategyCfg)
	if err != nil {
		return nil, err
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = &metrics.RecorderMock{}
	}

	var policy retry.Policy
	if cfg.Retry != nil {
		policy = *cfg.Retry
	} else {
		policy = retry.DefaultPolicy()
	}
	var breakerCfg breaker.Config
	if cfg.Breaker != nil {
		breakerCfg = *cfg.Breaker
	}

	p := pool.New(cfg.EWMAAlpha)
	breakers := breaker.NewGroup(breakerCfg)

	r := &Rotator{
		pool:     p,
		breakers: breakers,
		registry: registry,
		exec:     retry.NewExecutor(p, breakers, policy, recorder),
		recorder: recorder,
	}
	r.active.Store(&activeStrategy{s: strat})
	return r, nil
}

func (r *Rotator) Pool() *pool.Pool { return r.pool }

func (r *Rotator) Registry() *strategy.Registry { return r.registry }

// Strategy 当前生效的策略
func (r *Rotator) Strategy() strategy.Strategy {
	return r.active.Load().s
}

// SetStrategy 热替换策略，不打断进行中的选择
func (r *Rotator) SetStrategy(s strategy.Strategy) {
	r.active.Store(&activeStrategy{s: s})
	logger.Infof("strategy switched to %s", s.Name())
}

// SetStrategyByName 从 registry 构建并切换，未知名字报错不切换
func (r *Rotator) SetStrategyByName(name string) error {
	s, err := r.registry.BuildByName(name)
	if err != nil {
		return err
	}
	r.SetStrategy(s)
	return nil
}

// AddEndpoint 加入 pool
func (r *Rotator) AddEndpoint(ep *types.Endpoint) {
	r.pool.Add(ep)
}

// RemoveEndpoint 同时清掉对应的熔断器
func (r *Rotator) RemoveEndpoint(addr string) {
	r.pool.Remove(addr)
	r.breakers.Remove(addr)
}

// Select 只走策略选择，不重试
func (r *Rotator) Select(sctx *types.SelectionContext) (*types.Endpoint, error) {
	strat := r.Strategy()
	start := time.Now()
	ep, err := strat.Select(r.pool, sctx)
	r.recorder.ObserveSelectDuration(strat.Name(), time.Since(start).Seconds())
	if err != nil {
		r.recorder.IncSelectTotal(strat.Name(), "error")
		return nil, err
	}
	r.recorder.IncSelectTotal(strat.Name(), "ok")
	return ep, nil
}

// Execute 完整弹性路径：选点、熔断、重试、结果回写
func (r *Rotator) Execute(ctx context.Context, op retry.Operation, sctx *types.SelectionContext) (any, error) {
	return r.exec.Execute(ctx, r.Strategy(), op, sctx)
}

// ExecResult ExecuteAsync 的结果
type ExecResult struct {
	Value any
	Err   error
}

// ExecuteAsync 非阻塞变体，算法与 Execute 完全一致，结果从 channel 取。
// channel 带缓冲，调用方不收结果也不会泄漏 goroutine。
func (r *Rotator) ExecuteAsync(ctx context.Context, op retry.Operation, sctx *types.SelectionContext) <-chan ExecResult {
	ch := make(chan ExecResult, 1)
	go func() {
		val, err := r.Execute(ctx, op, sctx)
		ch <- ExecResult{Value: val, Err: err}
	}()
	return ch
}

// EndpointStats 逐 endpoint 的健康与性能快照
func (r *Rotator) EndpointStats() map[string]types.EndpointStats {
	return r.pool.StatsAll()
}

// BreakerStates 逐 endpoint 的熔断器状态
func (r *Rotator) BreakerStates() map[string]breaker.Snapshot {
	return r.breakers.Snapshots()
}

// PoolStats 按健康状态聚合的数量，顺带刷新监控 gauge
func (r *Rotator) PoolStats() map[types.HealthStatus]int {
	counts := r.pool.CountByStatus()
	for status, n := range counts {
		r.recorder.SetPoolGauge(string(status), float64(n))
	}
	return counts
}
