// Package xshared 提供共享所有权的引用计数资源 owner。
//
// 同一资源的所有 [Ref] 共享一个控制块：强引用计数 + 资源。
// 计数等于存活（未 Close）的 Ref 数量，归零恰好发生一次，
// 资源也恰好在那一刻释放一次。
//
//	获取        New / Acquire / FromOwner   计数 = 1
//	复制        Clone                       计数 +1（原子，可并发）
//	解引用      Get / MustGet               Ref 未关闭即有效
//	析构        Close                       计数 -1，归零时释放资源
//	观测        Count                       仅供观测，不可据此决定生命周期
//	弱引用      Weak / Upgrade / Expired    不延长资源生命周期
//
// # 正确性
//
// 递减与判零是同一个原子读-改-写操作（atomic.Int64.Add(-1) == 0），
// 只有令计数归零的那一次 Close 执行释放，不存在两个 goroutine 都看到非零
// 而无人释放、或都看到零而重复释放的窗口。
//
// 递增使用 CAS 循环，拒绝把已归零的计数复活，因此 Clone 与 Upgrade
// 在资源释放后只会失败，不会返回悬垂引用。
//
// 每个 Ref 实例的 Close 是幂等的：第二次调用返回 [ErrClosed]，不会重复递减。
// 计数变为负数意味着控制块被破坏，直接 panic。
//
// # 并发
//
// 不同 Ref 实例可以在任意 goroutine 中并发 Clone、Get、Close。
// 同一个 Ref 实例的 Close 不应与它自己的 Get 并发。
package xshared
