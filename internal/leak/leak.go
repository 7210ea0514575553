// Package leak 检测 owner 在仍持有资源时被垃圾回收的情况。
//
// 本包是 internal 包，仅供 xunique 和 xshared 使用。
// 基于 runtime.AddCleanup：被监视对象不可达后，若守卫仍处于武装状态，
// 在运行时的清理 goroutine 中调用上报函数。只上报，不代为释放资源。
package leak

import (
	"runtime"
	"sync/atomic"
)

// Guard 监视一个 owner 指针。nil Guard 的方法均为空操作。
type Guard struct {
	state   *state
	cleanup runtime.Cleanup
}

type state struct {
	armed  atomic.Bool
	report func()
}

// Watch 在 ptr 被回收且守卫未解除时调用 report。
// report 不得引用 ptr，否则 ptr 永远不可回收。
func Watch[T any](ptr *T, report func()) *Guard {
	st := &state{report: report}
	st.armed.Store(true)
	c := runtime.AddCleanup(ptr, func(s *state) {
		if s.armed.CompareAndSwap(true, false) {
			s.report()
		}
	}, st)
	return &Guard{state: st, cleanup: c}
}

// Disarm 解除守卫。owner 释放、转移或分离资源时调用。
func (g *Guard) Disarm() {
	if g == nil {
		return
	}
	g.state.armed.Store(false)
	g.cleanup.Stop()
}
