package xregistry

import "errors"

var (
	// ErrClosed 表示注册表已关闭。
	ErrClosed = errors.New("xregistry: closed")
	// ErrInvalidKey 表示 key 为空。
	ErrInvalidKey = errors.New("xregistry: invalid key")
	// ErrNilContext 表示传入了 nil context。
	ErrNilContext = errors.New("xregistry: nil context")
	// ErrNilOpener 表示 New 的 Opener 为 nil。
	ErrNilOpener = errors.New("xregistry: nil opener")
	// ErrInvalidCapacity 表示容量不是正数。
	ErrInvalidCapacity = errors.New("xregistry: invalid capacity")
	// ErrInvalidShardCount 表示分片数不是 2 的幂或超出上限。
	ErrInvalidShardCount = errors.New("xregistry: invalid shard count")
	// ErrEvicted 表示多次重试后锚仍在被淘汰，通常意味着容量过小。
	ErrEvicted = errors.New("xregistry: entry evicted during get")
)
