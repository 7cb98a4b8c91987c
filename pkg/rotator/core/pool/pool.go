package pool

import (
	"sync"
	"time"

	"proxy-rotator/pkg/rotator/core/types"
)

// DefaultAlpha EWMA 平滑系数默认值
const DefaultAlpha = 0.3

// entry 单个 endpoint 的存活数据，计数走自己的锁，避免整池争用
type entry struct {
	mu        sync.Mutex
	endpoint  *types.Endpoint
	status    types.HealthStatus
	started   uint64
	completed uint64
	successes uint64
	ewma      float64
	hasEWMA   bool
}

func (e *entry) stats() types.EndpointStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return types.EndpointStats{
		Status:            e.status,
		RequestsStarted:   e.started,
		RequestsCompleted: e.completed,
		Successes:         e.successes,
		EWMALatencyMs:     e.ewma,
		HasEWMA:           e.hasEWMA,
	}
}

// Pool endpoint 集合，按 Addr 去重，保留插入顺序。
// 池级锁只保护成员关系，计数更新在 entry 级。
type Pool struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	alpha   float64
}

func New(alpha float64) *Pool {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &Pool{
		entries: make(map[string]*entry),
		alpha:   alpha,
	}
}

// Add 按身份 upsert；已存在时替换元数据但保留计数和状态。
// TTL 非 0 且未显式给出 ExpiresAt 时在此推导过期时刻。
func (p *Pool) Add(ep *types.Endpoint) {
	if ep.TTL > 0 && ep.ExpiresAt.IsZero() {
		ep.ExpiresAt = time.Now().Add(ep.TTL)
	}
	addr := ep.Addr()

	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.entries[addr]; ok {
		e.mu.Lock()
		e.endpoint = ep
		e.mu.Unlock()
		return
	}
	p.entries[addr] = &entry{endpoint: ep, status: types.HealthUnknown}
	p.order = append(p.order, addr)
}

// Remove 不存在时不报错
func (p *Pool) Remove(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.entries[addr]; !ok {
		return
	}
	delete(p.entries, addr)
	for i, a := range p.order {
		if a == addr {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Usable 未过期且状态可用的 endpoint 快照，插入顺序稳定，
// 返回的切片可以在并发增删下安全迭代
func (p *Pool) Usable() []*types.Endpoint {
	now := time.Now()

	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*types.Endpoint, 0, len(p.order))
	for _, addr := range p.order {
		e := p.entries[addr]
		e.mu.Lock()
		ep, status := e.endpoint, e.status
		e.mu.Unlock()
		if status.Usable() && !ep.Expired(now) {
			result = append(result, ep)
		}
	}
	return result
}

// All 全量枚举，持久化用
func (p *Pool) All() []*types.Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]*types.Endpoint, 0, len(p.order))
	for _, addr := range p.order {
		e := p.entries[addr]
		e.mu.Lock()
		result = append(result, e.endpoint)
		e.mu.Unlock()
	}
	return result
}

func (p *Pool) get(addr string) *entry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entries[addr]
}

// MarkStarted 请求发出前调用
func (p *Pool) MarkStarted(addr string) {
	e := p.get(addr)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.started++
	e.mu.Unlock()
}

// RecordOutcome 请求结束后回写计数并更新 EWMA。
// 只有成功样本参与 EWMA：ewma = latency*alpha + ewma*(1-alpha)，首个样本直接赋值。
func (p *Pool) RecordOutcome(addr string, success bool, latencyMs float64) {
	e := p.get(addr)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.completed >= e.started {
		// 调用方没走 MarkStarted，补齐以维持 completed <= started
		e.started++
	}
	e.completed++
	if !success {
		return
	}
	e.successes++
	if e.hasEWMA {
		e.ewma = latencyMs*p.alpha + e.ewma*(1-p.alpha)
	} else {
		e.ewma = latencyMs
		e.hasEWMA = true
	}
}

// SetStatus 健康状态由外部健康检查上报，pool 只存不判
func (p *Pool) SetStatus(addr string, status types.HealthStatus) {
	e := p.get(addr)
	if e == nil {
		return
	}
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}

func (p *Pool) Stats(addr string) (types.EndpointStats, bool) {
	e := p.get(addr)
	if e == nil {
		return types.EndpointStats{}, false
	}
	return e.stats(), true
}

// StatsAll addr -> 快照
func (p *Pool) StatsAll() map[string]types.EndpointStats {
	p.mu.RLock()
	addrs := make([]string, len(p.order))
	copy(addrs, p.order)
	p.mu.RUnlock()

	result := make(map[string]types.EndpointStats, len(addrs))
	for _, addr := range addrs {
		if e := p.get(addr); e != nil {
			result[addr] = e.stats()
		}
	}
	return result
}

// CountByStatus 聚合统计
func (p *Pool) CountByStatus() map[types.HealthStatus]int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make(map[types.HealthStatus]int)
	for _, e := range p.entries {
		e.mu.Lock()
		result[e.status]++
		e.mu.Unlock()
	}
	return result
}
