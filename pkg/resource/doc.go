// Package resource 提供资源所有权管理相关的子包。
//
// 子包列表：
//   - xres: 受管资源抽象（值 + 释放函数）、获取器、观测与释放失败上报
//   - xunique: 独占所有权，仅可转移（Move），释放恰好一次
//   - xshared: 共享所有权，原子引用计数，计数归零时释放恰好一次
//   - xscope: 作用域退出钩子，按注册逆序执行清理，覆盖正常返回、提前返回、错误与 panic
//   - xregistry: 按 key 共享资源的分片 LRU 注册表
//
// 设计原则：
//   - 获取即构造：获取失败时不构造任何 owner
//   - 释放恰好一次：通过“转移后置空”和原子归零判断在结构上杜绝重复释放
//   - 清理期间的错误只上报，不覆盖调用方已有的错误
package resource
