package xscope

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/omeyang/xown/pkg/resource/xscope"

// Option 定义 Scope 可选配置。
type Option func(*options)

type options struct {
	logger *slog.Logger
	name   string
	tp     trace.TracerProvider
}

func buildOptions(opts []Option) *options {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.tp == nil {
		o.tp = otel.GetTracerProvider()
	}
	return o
}

// WithLogger 设置记录清理失败的日志记录器，默认 slog.Default()。
// 传入 nil 将被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置作用域名称，出现在日志、span 属性和 [CleanupError] 中。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithTracerProvider 设置 [Run] 使用的 TracerProvider。
// 默认使用 otel.GetTracerProvider()，未配置 SDK 时为空操作。
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tp = tp
		}
	}
}
