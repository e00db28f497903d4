package carbon

import (
	"errors"
	"fmt"
)

// Kind 区分核心计算可能返回的错误类别，调用方据此映射 HTTP 状态码。
type Kind string

const (
	// KindInvalidInput 输入不合法：数量非正、未知类别/子类、乘客数非法、进度为负等。
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindNotFound 引用的挑战、用户挑战或用户不存在。
	KindNotFound Kind = "NOT_FOUND"
	// KindConcurrentUpdate 持久化边界的原子更新检测到并发冲突，调用方可重试一次。
	KindConcurrentUpdate Kind = "CONCURRENT_UPDATE_CONFLICT"
)

var (
	// ErrInvalidInput 用于 errors.Is 匹配 INVALID_INPUT 类错误
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	// ErrNotFound 用于 errors.Is 匹配 NOT_FOUND 类错误
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrConcurrentUpdate 用于 errors.Is 匹配 CONCURRENT_UPDATE_CONFLICT 类错误
	ErrConcurrentUpdate = &Error{Kind: KindConcurrentUpdate}
)

// Error 是核心模块统一的错误类型。
// Op 标记出错的操作，Detail 为面向调用方的校验细节。
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 按 Kind 比较，使 errors.Is(err, ErrInvalidInput) 对任意 INVALID_INPUT 错误成立。
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf 返回错误链中第一个 carbon.Error 的类别，非核心错误返回空字符串。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func invalidInput(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// NotFound 构造 NOT_FOUND 错误，供持久化层在记录缺失时使用。
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// ConcurrentUpdate 构造 CONCURRENT_UPDATE_CONFLICT 错误。
func ConcurrentUpdate(op, format string, args ...any) error {
	return &Error{Kind: KindConcurrentUpdate, Op: op, Detail: fmt.Sprintf(format, args...)}
}
