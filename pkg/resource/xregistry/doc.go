// Package xregistry 提供按 key 共享资源的注册表。
//
// 同一个 key 在任意时刻至多对应一个已打开的资源：
// 注册表持有一个锚定 [xshared.Ref]，[Registry.Get] 返回它的克隆，
// 调用方用完后 Close 克隆即可。资源在锚被淘汰（或 [Registry.Evict]、
// [Registry.Close]）且所有调用方的克隆都关闭之后释放，恰好一次。
//
// # 结构
//
//   - key 经 xxhash 分配到 2 的幂个分片，降低锁争用
//   - 每个分片是一个 LRU（hashicorp/golang-lru/v2），容量超限时淘汰最久未用的锚
//   - 同一 key 的并发打开经 singleflight 合并，只调用一次 Opener
//
// 锚被淘汰后，仍持有旧克隆的调用方继续使用旧资源；
// 之后的 Get 会打开一个新资源。需要严格"每 key 一个实例"时，
// 请把容量设置得足够大。
package xregistry
