// Package nocopy 提供不可复制标记。
//
// 本包是 internal 包，仅供 pkg/resource 下的 owner 类型使用。
// 嵌入 [NoCopy] 的结构体在按值复制时会被 go vet 的 copylocks 检查报告，
// 从而在静态检查阶段拒绝 owner 的复制。
package nocopy

// NoCopy 实现 sync.Locker 的空方法，仅用于 go vet copylocks 检查。
// 嵌入时使用具名字段，零值即可。
type NoCopy struct{}

// Lock 空操作。
func (*NoCopy) Lock() {}

// Unlock 空操作。
func (*NoCopy) Unlock() {}
