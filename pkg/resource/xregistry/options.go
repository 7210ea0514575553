package xregistry

import (
	"fmt"
	"log/slog"

	"github.com/omeyang/xown/pkg/resource/xres"
)

const (
	defaultCapacity   = 1024
	defaultShardCount = 16
	maxShardCount     = 1 << 16 // 65536
)

// Option 定义 Registry 可选配置。
type Option func(*options)

type options struct {
	capacity   int
	shardCount int
	logger     *slog.Logger
	observer   xres.Observer
}

func defaultOptions() options {
	return options{
		capacity:   defaultCapacity,
		shardCount: defaultShardCount,
		logger:     slog.Default(),
		observer:   xres.NopObserver{},
	}
}

// WithCapacity 设置注册表最多保留的锚数量，默认 1024。
// 容量按分片平均分配。n 必须为正数，否则 New 返回错误。
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

// WithShardCount 设置分片数量，必须为 2 的幂，上限 65536，默认 16。
// 分片数大于容量时自动缩小到不超过容量的最大 2 的幂。
func WithShardCount(n int) Option {
	return func(o *options) {
		o.shardCount = n
	}
}

// WithLogger 设置日志记录器，默认 slog.Default()。传入 nil 将被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver 设置资源生命周期观测器，传给每个锚 Ref。传入 nil 将被忽略。
func WithObserver(obs xres.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func (o *options) validate() error {
	if o.capacity <= 0 {
		return fmt.Errorf("%w: must be positive, got %d", ErrInvalidCapacity, o.capacity)
	}
	sc := o.shardCount
	if sc <= 0 || sc > maxShardCount || sc&(sc-1) != 0 {
		return fmt.Errorf("%w: must be a positive power of 2 (max %d), got %d",
			ErrInvalidShardCount, maxShardCount, sc)
	}
	for o.shardCount > o.capacity {
		o.shardCount >>= 1
	}
	return nil
}

// shardCapacity 返回每个分片的容量，向上取整。
func (o *options) shardCapacity() int {
	return (o.capacity + o.shardCount - 1) / o.shardCount
}
