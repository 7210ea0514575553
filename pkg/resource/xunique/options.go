package xunique

import (
	"log/slog"

	"github.com/omeyang/xown/pkg/resource/xres"
)

// Option 定义 Owner 可选配置。
type Option func(*options)

type options struct {
	hooks     xres.Hooks
	leakCheck bool
}

func buildOptions(opts []Option) *options {
	o := &options{
		hooks: xres.Hooks{Logger: slog.Default(), Observer: xres.NopObserver{}},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithLogger 设置日志记录器，用于记录释放失败与泄漏。
// 默认使用 slog.Default()。传入 nil 将被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.hooks.Logger = logger
		}
	}
}

// WithObserver 设置生命周期观测器。传入 nil 将被忽略。
func WithObserver(obs xres.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.hooks.Observer = obs
		}
	}
}

// WithLeakCheck 启用泄漏检测：持有资源的 Owner 未释放即被回收时，
// 记录 Warn 日志并上报 Observer.Leaked。只上报，不代为释放。
func WithLeakCheck() Option {
	return func(o *options) {
		o.leakCheck = true
	}
}
