// Package xscope 提供作用域退出时的清理机制。
//
// [Scope] 是一个后进先出的清理栈：注册顺序与获取顺序一致，
// [Scope.Close] 按相反顺序执行，每个清理函数恰好执行一次。
// [Run] 在函数体正常返回、提前返回、返回错误或 panic 时都会关闭作用域。
//
//	err := xscope.Run(ctx, func(ctx context.Context, s *xscope.Scope) error {
//	    f, err := xscope.Unique(ctx, s, xres.OpenFile(name, os.O_RDONLY, 0))
//	    if err != nil {
//	        return err
//	    }
//	    // f 在函数返回时关闭；Move 走之后关闭为空操作
//	    ...
//	})
//
// # 错误
//
// 函数体返回错误时原样返回该错误，清理失败只记录日志和 span 事件；
// 函数体成功时，清理失败以 [*CleanupError] 返回。
// 清理函数 panic 会被恢复并记为失败（[ErrCleanupPanic]），其余清理照常执行。
// 函数体 panic 时先执行全部清理，再重新抛出原 panic。
//
// 作用域关闭后再注册的清理函数会立即执行，并返回 [ErrClosed]，资源不会泄漏。
//
// # 并发
//
// Scope 内部加锁，可以从多个 goroutine 注册清理函数。
// Close 与注册并发时，注册要么进入清理栈，要么立即执行，不会丢失。
package xscope
