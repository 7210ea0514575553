// Package xres 定义受管资源（managed resource）抽象。
//
// 受管资源是任何带有显式释放操作的稀缺资产：内存块、文件、文件描述符、
// 网络连接、锁。xres 只描述“值 + 释放函数”这一契约，所有权语义由
// xunique（独占）与 xshared（共享）实现，作用域退出由 xscope 保证。
//
// # 获取
//
// [Acquirer] 是获取函数，[Acquire] 统一执行并规范化失败：
//
//   - 任何失败都包装为 [*AcquisitionError]，可用 errors.Is(err, [ErrAcquire]) 判断
//   - 获取函数若同时返回资源与错误（部分获取），该资源会被立即回滚释放
//   - 释放函数为 nil 的资源视为获取失败（[ErrNilRelease]），无需释放的值请使用 [Nop]
//
// 内置获取器：[OpenFile]、[OpenFD]（非 Windows）、[Dial]、[Lock]、[Value]、
// [BufferPool.Acquire]。获取器可用 [WithRetry]（avast/retry-go）与
// [WithBreaker]（sony/gobreaker）装饰。
//
// # 释放
//
// [ReleaseFunc] 每个句柄最多调用一次。[Once] 把任意释放函数变为幂等：
// 首次调用执行释放，后续调用返回 [ErrReleased]。
//
// # 观测
//
// [Observer] 接收获取、释放、分离与泄漏事件。[Counter] 是进程内原子计数实现，
// [NewOTelObserver] 基于 OpenTelemetry metric 实现。[Hooks] 组合日志与观测，
// 释放失败只记录日志并上报，不 panic。
package xres
