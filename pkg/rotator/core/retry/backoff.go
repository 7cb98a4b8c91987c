package retry

import "time"

// Backoff 重试间隔的退避族
type Backoff string

const (
	BackoffConstant    = Backoff("constant")
	BackoffLinear      = Backoff("linear")
	BackoffExponential = Backoff("exponential")
	BackoffFibonacci   = Backoff("fibonacci")
)

type Policy struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Backoff     Backoff       `yaml:"backoff"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
	MaxDelay    time.Duration `yaml:"maxDelay"` // 所有退避族共用的延迟上限
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     BackoffExponential,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Backoff == "" {
		p.Backoff = def.Backoff
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// Delay 第 attempt 次尝试前的等待时间，首次尝试不等待
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	n := attempt - 1 // 第几次重试

	var d time.Duration
	switch p.Backoff {
	case BackoffConstant:
		d = p.BaseDelay
	case BackoffLinear:
		d = p.BaseDelay * time.Duration(n)
	case BackoffFibonacci:
		d = scaledCap(fibonacci(n), p.BaseDelay, p.MaxDelay)
	case BackoffExponential:
		fallthrough
	default:
		if n-1 >= 62 {
			return p.MaxDelay
		}
		d = scaledCap(1<<uint(n-1), p.BaseDelay, p.MaxDelay)
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// scaledCap base*factor，乘法溢出前先按上限截断
func scaledCap(factor int64, base, max time.Duration) time.Duration {
	if factor <= 0 {
		return 0
	}
	if int64(base) > int64(max)/factor {
		return max
	}
	return base * time.Duration(factor)
}

// fibonacci 1, 1, 2, 3, 5, ...
func fibonacci(n int) int64 {
	a, b := int64(1), int64(1)
	for i := 1; i < n; i++ {
		a, b = b, a+b
		if a < 0 {
			return int64(1) << 62 // 溢出保护，反正会被 MaxDelay 截断
		}
	}
	return a
}
