package retry

import (
	"context"
	"errors"
	"time"

	"proxy-rotator/pkg/rotator/core/breaker"
	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/pool"
	"proxy-rotator/pkg/rotator/core/strategy"
	"proxy-rotator/pkg/rotator/core/types"
	"proxy-rotator/pkg/rotator/logger"
	"proxy-rotator/pkg/rotator/metrics"
)

// Operation 调用方提供的实际请求。返回的错误用 Retryable/NonRetryable 包装分类，
// 未包装的错误按可重试处理
type Operation func(ctx context.Context, endpoint *types.Endpoint) (any, error)

// Executor 驱动有限次尝试：策略选点、熔断过滤、退避重试
type Executor struct {
	pool     *pool.Pool
	breakers *breaker.Group
	policy   Policy
	recorder metrics.Recorder

	sleep func(ctx context.Context, d time.Duration) error // 测试替换点
}

func NewExecutor(p *pool.Pool, breakers *breaker.Group, policy Policy, recorder metrics.Recorder) *Executor {
	if recorder == nil {
		recorder = &metrics.RecorderMock{}
	}
	return &Executor{
		pool:     p,
		breakers: breakers,
		policy:   policy.withDefaults(),
		recorder: recorder,
		sleep:    sleepCtx,
	}
}

func (e *Executor) Policy() Policy { return e.policy }

// Execute 最多 MaxAttempts 次尝试。成功立刻返回；NonRetryableError 立刻透传；
// 池空返回 ErrPoolExhausted；全部熔断或次数用尽返回 *ExhaustedError。
// 挂起点只有 operation 本身和退避等待。
func (e *Executor) Execute(ctx context.Context, strat strategy.Strategy, op Operation, sctx *types.SelectionContext) (any, error) {
	attempts := make([]Attempt, 0, e.policy.MaxAttempts)

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, e.policy.Delay(attempt)); err != nil {
				return nil, err
			}
		}

		ep, err := e.pick(strat, sctx)
		if err != nil {
			// 选不出点不消耗尝试次数
			if errors.Is(err, errcode.ErrAllCircuitsOpen) {
				return nil, &ExhaustedError{Reason: ReasonAllCircuitsOpen, Attempts: attempts}
			}
			return nil, err
		}
		addr := ep.Addr()

		var val any
		var latencyMs float64
		started := time.Now()
		opErr := e.breakers.Get(addr).Run(func() error {
			e.pool.MarkStarted(addr)
			begin := time.Now()
			v, err := op(ctx, ep)
			latencyMs = float64(time.Since(begin)) / float64(time.Millisecond)
			val = v
			return err
		})

		if errors.Is(opErr, errcode.ErrCircuitOpen) {
			// 选点和执行之间熔断被并发打开，operation 没有运行，换个点重来
			e.recorder.IncAttemptTotal(addr, metrics.AttemptCircuitOpen)
			attempts = append(attempts, Attempt{Endpoint: addr, StartedAt: started, Err: opErr})
			continue
		}

		success := opErr == nil
		e.pool.RecordOutcome(addr, success, latencyMs)
		strat.RecordResult(ep, success, latencyMs)
		e.recorder.ObserveAttemptDuration(addr, latencyMs/1000)
		attempts = append(attempts, Attempt{
			Endpoint:  addr,
			Success:   success,
			LatencyMs: latencyMs,
			StartedAt: started,
			Err:       opErr,
		})

		if success {
			e.recorder.IncAttemptTotal(addr, metrics.AttemptSuccess)
			return val, nil
		}
		e.recorder.IncAttemptTotal(addr, metrics.AttemptFailure)

		if IsNonRetryable(opErr) {
			return nil, opErr
		}
		logger.Debugf("attempt %d on %s failed: %v", attempt, addr, opErr)
	}
	return nil, &ExhaustedError{Reason: ReasonAttemptsExhausted, Attempts: attempts}
}

// pick 把候选集收窄到熔断放行的 endpoint 再交给策略。
// Eligible 检查顺带完成 Open -> HalfOpen 的惰性迁移。
func (e *Executor) pick(strat strategy.Strategy, sctx *types.SelectionContext) (*types.Endpoint, error) {
	usable := e.pool.Usable()
	if len(usable) == 0 {
		return nil, errcode.ErrPoolExhausted
	}
	eligible := make([]*types.Endpoint, 0, len(usable))
	for _, ep := range usable {
		if e.breakers.Get(ep.Addr()).Eligible() {
			eligible = append(eligible, ep)
		}
	}
	if len(eligible) == 0 {
		return nil, errcode.ErrAllCircuitsOpen
	}
	return strat.Select(strategy.NewStaticView(e.pool, eligible), sctx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
