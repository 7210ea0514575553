// Package xunique 提供独占所有权的资源 owner。
//
// [Owner] 任意时刻至多持有一个资源句柄，且同一句柄至多被一个存活的 Owner 持有。
// 所有权只能转移（[Owner.Move]），不能复制：
//
//   - Owner 只以指针形式分发（New/Acquire/Move 均返回 *Owner）
//   - Owner 内嵌不可复制标记，按值复制会被 go vet copylocks 报告
//   - Move 之后源 Owner 变为空，对其解引用返回 [ErrUseAfterMove]
//
// # 生命周期
//
//	获取        New / Acquire         失败返回 *xres.AcquisitionError，不构造 Owner
//	转移        Move                  源置空，新 Owner 持有同一句柄
//	解引用      Get / MustGet         空 Owner 返回 ErrUseAfterMove / panic
//	释放        Reset / Close         释放后置空；对空 Owner 调用是空操作
//	替换        Replace               释放当前资源并接管新资源
//	分离        Detach                交出资源但不释放
//
// 释放前先置空，因此即使释放函数 panic 或返回错误，同一句柄也不会被释放第二次。
//
// # 作用域退出
//
// Owner 实现 io.Closer，配合 defer 或 xscope 即可在任意退出路径上释放：
//
//	o, err := xunique.Acquire(ctx, xres.OpenFile(name, os.O_RDONLY, 0))
//	if err != nil {
//	    return err
//	}
//	defer o.Close()
//
// 被 Move 走的 Owner 在其作用域退出时 Close 是空操作，资源由新 Owner 负责释放。
//
// # 并发
//
// Owner 不做同步：单一所有权意味着同一时刻只有一个 goroutine 使用它。
// 若调用方自行在 goroutine 间共享同一个 Owner，需要外部加锁。
package xunique
