package xscope

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClosed 表示作用域已经关闭。
	ErrClosed = errors.New("xscope: scope closed")
	// ErrNilContext 表示传入了 nil context。
	ErrNilContext = errors.New("xscope: nil context")
	// ErrNilFunc 表示传入了 nil 函数或 nil Closer。
	ErrNilFunc = errors.New("xscope: nil function")
	// ErrNilScope 表示传入了 nil Scope。
	ErrNilScope = errors.New("xscope: nil scope")
	// ErrCleanupPanic 表示清理函数发生了 panic。
	ErrCleanupPanic = errors.New("xscope: cleanup panicked")
)

// Failure 记录一个失败的清理函数。
type Failure struct {
	Name string
	Err  error
}

// CleanupError 汇总一次 Close 中所有失败的清理函数，按执行顺序排列。
type CleanupError struct {
	Scope    string
	Failures []Failure
}

func (e *CleanupError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "xscope: %d cleanup(s) failed", len(e.Failures))
	if e.Scope != "" {
		fmt.Fprintf(&b, " in scope %q", e.Scope)
	}
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Name, f.Err)
	}
	return b.String()
}

// Unwrap 返回全部失败原因，支持 errors.Is / errors.As 逐个匹配。
func (e *CleanupError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
