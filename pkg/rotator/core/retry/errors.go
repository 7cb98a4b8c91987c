package retry

import (
	"errors"
	"fmt"
	"time"
)

// RetryableError 包装可重试的操作失败，触发退避重试。
// 可不可以重试由调用方包装时决定，core 不看错误内容猜
type RetryableError struct {
	Err error
}

// Retryable 标记 err 可重试
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return "retryable: " + e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// NonRetryableError 包装不可重试的失败，立即终止重试
type NonRetryableError struct {
	Err error
}

// NonRetryable 标记 err 不可重试
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

func (e *NonRetryableError) Error() string { return "non-retryable: " + e.Err.Error() }
func (e *NonRetryableError) Unwrap() error { return e.Err }

func IsNonRetryable(err error) bool {
	var target *NonRetryableError
	return errors.As(err, &target)
}

// Reason 重试终止的原因
type Reason string

const (
	ReasonAttemptsExhausted = Reason("attempts_exhausted")
	ReasonAllCircuitsOpen   = Reason("all_circuits_open")
)

// Attempt 单次尝试的记录，诊断用
type Attempt struct {
	Endpoint  string    `json:"endpoint"`
	Success   bool      `json:"success"`
	LatencyMs float64   `json:"latency_ms"`
	StartedAt time.Time `json:"started_at"`
	Err       error     `json:"-"`
}

// ExhaustedError 重试终态失败，携带完整的逐次尝试历史
type ExhaustedError struct {
	Reason   Reason
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("retry exhausted (%s) after 0 attempts", e.Reason)
	}
	last := e.Attempts[len(e.Attempts)-1]
	return fmt.Sprintf("retry exhausted (%s) after %d attempts, last endpoint %s: %v",
		e.Reason, len(e.Attempts), last.Endpoint, last.Err)
}

// LastErr 最后一次尝试的底层错误
func (e *ExhaustedError) LastErr() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr() }
