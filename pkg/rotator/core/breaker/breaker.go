package breaker

import (
	"sync"
	"time"

	"proxy-rotator/pkg/rotator/core/errcode"
)

type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

type Config struct {
	FailureThreshold int           `yaml:"failureThreshold"` // 连续失败多少次熔断
	RecoveryTimeout  time.Duration `yaml:"recoveryTimeout"`  // Open 维持多久进入 HalfOpen
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	return c
}

// Breaker 单个 endpoint 的熔断器。
// Open -> HalfOpen 在下一次 Eligible 检查时惰性完成，没有后台定时器。
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	changedAt time.Time
}

func New(cfg Config) *Breaker {
	return &Breaker{
		cfg:       cfg.withDefaults(),
		state:     Closed,
		changedAt: time.Now(),
	}
}

// Eligible 是否允许发起调用，调用本身可能触发 Open -> HalfOpen
func (b *Breaker) Eligible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && time.Since(b.changedAt) >= b.cfg.RecoveryTimeout {
		b.state = HalfOpen
		b.changedAt = time.Now()
	}
	return b.state != Open
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.state = Closed
		b.failures = 0
		b.changedAt = time.Now()
	case Closed:
		b.failures = 0
	case Open:
		// Open 状态下不允许直接闭合，必须经过 HalfOpen
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		// 试探失败，重新熔断并重置恢复计时
		b.state = Open
		b.changedAt = time.Now()
	case Closed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = Open
			b.changedAt = time.Now()
		}
	case Open:
	}
}

// Run 受保护执行：不通过则快速失败返回 ErrCircuitOpen，
// fn 运行期间不持有任何锁
func (b *Breaker) Run(fn func() error) error {
	if !b.Eligible() {
		return errcode.ErrCircuitOpen
	}
	if err := fn(); err != nil {
		b.RecordFailure()
		return err
	}
	b.RecordSuccess()
	return nil
}

type Snapshot struct {
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	ChangedAt           time.Time `json:"changed_at"`
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:               b.state,
		ConsecutiveFailures: b.failures,
		ChangedAt:           b.changedAt,
	}
}

// Group addr -> Breaker，惰性创建。
// 各 endpoint 的熔断器完全独立，map 锁只管成员关系。
type Group struct {
	mu       sync.RWMutex
	cfg      Config
	breakers map[string]*Breaker
}

func NewGroup(cfg Config) *Group {
	return &Group{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*Breaker),
	}
}

func (g *Group) Get(addr string) *Breaker {
	g.mu.RLock()
	b, ok := g.breakers[addr]
	g.mu.RUnlock()
	if ok {
		return b
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[addr]; ok {
		return b
	}
	b = New(g.cfg)
	g.breakers[addr] = b
	return b
}

func (g *Group) Remove(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.breakers, addr)
}

func (g *Group) Snapshots() map[string]Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	result := make(map[string]Snapshot, len(g.breakers))
	for addr, b := range g.breakers {
		result[addr] = b.Snapshot()
	}
	return result
}
