package errcode

import (
	"fmt"
	"sort"
	"strings"
)

// ErrWithCode 带错误码的错误，同码即同错，配合 errors.Is 使用
type ErrWithCode struct {
	Code int               `json:"code"`
	Msg  string            `json:"msg"`
	Data map[string]string `json:"data,omitempty"`
}

func New(code int, msg string) *ErrWithCode {
	return &ErrWithCode{Code: code, Msg: msg}
}

// WithData 返回携带上下文数据的副本，错误码不变
func (e *ErrWithCode) WithData(data map[string]string) *ErrWithCode {
	return &ErrWithCode{Code: e.Code, Msg: e.Msg, Data: data}
}

// Error implements the error interface.
func (e *ErrWithCode) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("rotator: %s (code %d)", e.Msg, e.Code)
	}
	kvs := make([]string, 0, len(e.Data))
	for k, v := range e.Data {
		kvs = append(kvs, k+"="+v)
	}
	sort.Strings(kvs)
	return fmt.Sprintf("rotator: %s (code %d) [%s]", e.Msg, e.Code, strings.Join(kvs, " "))
}

// Is implements the comparison for errors.Is.
func (e *ErrWithCode) Is(target error) bool {
	t, ok := target.(*ErrWithCode)
	return ok && t.Code == e.Code
}

var (
	ErrPoolExhausted      = New(2001, "no usable endpoint available")
	ErrCircuitOpen        = New(2002, "circuit open")
	ErrAllCircuitsOpen    = New(2003, "all circuits open")
	ErrStrategyNotFound   = New(2004, "strategy not found")
	ErrEndpointNotFound   = New(2005, "endpoint not found")
	ErrBadEndpoint        = New(2006, "bad endpoint")
	ErrBadLuaScript       = New(2007, "bad lua script")
	ErrLuaIndexOutOfRange = New(2008, "lua index out of range")
)
