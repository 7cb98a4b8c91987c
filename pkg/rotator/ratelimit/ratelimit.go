package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"proxy-rotator/pkg/rotator/core/retry"
	"proxy-rotator/pkg/rotator/core/types"
)

// Wrap 在 operation 外面套全局限速，core 对限速无感知
func Wrap(op retry.Operation, limiter *rate.Limiter) retry.Operation {
	return func(ctx context.Context, ep *types.Endpoint) (any, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return op(ctx, ep)
	}
}

// PerEndpoint 每个 endpoint 一个限速器，惰性创建
type PerEndpoint struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewPerEndpoint(r rate.Limit, burst int) *PerEndpoint {
	if burst <= 0 {
		burst = 1
	}
	return &PerEndpoint{
		limiters: make(map[string]*rate.Limiter),
		rate:     r,
		burst:    burst,
	}
}

func (p *PerEndpoint) Get(addr string) *rate.Limiter {
	p.mu.RLock()
	limiter, ok := p.limiters[addr]
	p.mu.RUnlock()
	if ok {
		return limiter
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if limiter, ok := p.limiters[addr]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(p.rate, p.burst)
	p.limiters[addr] = limiter
	return limiter
}

// WrapPerEndpoint 按选中的 endpoint 限速
func WrapPerEndpoint(op retry.Operation, limiters *PerEndpoint) retry.Operation {
	return func(ctx context.Context, ep *types.Endpoint) (any, error) {
		if err := limiters.Get(ep.Addr()).Wait(ctx); err != nil {
			return nil, err
		}
		return op(ctx, ep)
	}
}
