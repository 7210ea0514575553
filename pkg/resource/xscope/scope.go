package xscope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xown/pkg/resource/xres"
	"github.com/omeyang/xown/pkg/resource/xshared"
	"github.com/omeyang/xown/pkg/resource/xunique"
)

type cleanup struct {
	name string
	fn   func() error
}

// Scope 是后进先出的清理栈。零值不可用，请使用 [New]。
type Scope struct {
	mu     sync.Mutex
	stack  []cleanup
	closed bool
	opts   *options
}

// New 创建一个空的作用域。
func New(opts ...Option) *Scope {
	return &Scope{opts: buildOptions(opts)}
}

// Name 返回作用域名称。s 为 nil 时返回空串。
func (s *Scope) Name() string {
	if s == nil {
		return ""
	}
	return s.opts.name
}

// Defer 注册清理函数，在 [Scope.Close] 时按注册的相反顺序执行。
//
// 作用域已关闭时 fn 立即执行，返回的错误包含 [ErrClosed] 以及 fn 的错误。
func (s *Scope) Defer(name string, fn func() error) error {
	if s == nil {
		return ErrNilScope
	}
	if fn == nil {
		return ErrNilFunc
	}
	s.mu.Lock()
	if !s.closed {
		s.stack = append(s.stack, cleanup{name: name, fn: fn})
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.opts.logger.Warn("xscope: cleanup registered after close, running now",
		slog.String("scope", s.opts.name),
		slog.String("cleanup", name),
	)
	if err := invoke(fn); err != nil {
		return errors.Join(ErrClosed, err)
	}
	return ErrClosed
}

// Adopt 注册 c.Close 作为清理函数。
func (s *Scope) Adopt(name string, c io.Closer) error {
	if c == nil {
		return ErrNilFunc
	}
	return s.Defer(name, c.Close)
}

// Track 注册 v.Close 并原样返回 v，便于在获取处直接使用：
//
//	f, err := xscope.Track(s, "config", mustOpen(path))
func Track[T io.Closer](s *Scope, name string, v T) (T, error) {
	return v, s.Adopt(name, v)
}

// Len 返回尚未执行的清理函数数量。
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// Close 按后进先出顺序执行全部清理函数，每个恰好一次。
//
// 单个清理失败或 panic 不影响其余清理；全部失败汇总为 [*CleanupError]。
// 第二次及后续调用返回 [ErrClosed]。
func (s *Scope) Close() error {
	if s == nil {
		return ErrNilScope
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.closed = true
	stack := s.stack
	s.stack = nil
	s.mu.Unlock()

	var failures []Failure
	for i := len(stack) - 1; i >= 0; i-- {
		c := stack[i]
		if err := invoke(c.fn); err != nil {
			s.opts.logger.Error("xscope: cleanup failed",
				slog.String("scope", s.opts.name),
				slog.String("cleanup", c.name),
				slog.Any("error", err),
			)
			failures = append(failures, Failure{Name: c.name, Err: err})
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &CleanupError{Scope: s.opts.name, Failures: failures}
}

// invoke 执行清理函数，把 panic 转换为错误。
func invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCleanupPanic, r)
		}
	}()
	return fn()
}

// Run 在新作用域中执行 fn，并保证在任意退出路径上关闭作用域。
//
// fn 返回错误时原样返回，清理失败只记录；fn 成功时返回清理失败。
// fn panic 时先完成清理再重新 panic。
// 每次调用开启名为 "xscope.run" 的 span，清理失败记为 span 事件。
func Run(ctx context.Context, fn func(ctx context.Context, s *Scope) error, opts ...Option) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}

	s := New(opts...)
	ctx, span := s.opts.tp.Tracer(instrumentationName).Start(ctx, "xscope.run",
		trace.WithAttributes(attribute.String("xscope.name", s.opts.name)),
	)

	defer func() {
		r := recover()
		cerr := s.Close()
		recordCleanup(span, cerr)

		switch {
		case r != nil:
			span.SetStatus(codes.Error, fmt.Sprint("panic: ", r))
			span.End()
			panic(r)
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case cerr != nil:
			err = cerr
			span.SetStatus(codes.Error, cerr.Error())
		default:
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	return fn(ctx, s)
}

func recordCleanup(span trace.Span, err error) {
	var ce *CleanupError
	if !errors.As(err, &ce) {
		return
	}
	for _, f := range ce.Failures {
		span.AddEvent("xscope.cleanup_failed", trace.WithAttributes(
			attribute.String("xscope.cleanup", f.Name),
			attribute.String("error", f.Err.Error()),
		))
	}
}

// Unique 获取资源并把返回的 Owner 注册到 s。
// Owner 被 Move 走后，作用域关闭时其 Close 为空操作。
func Unique[T any](ctx context.Context, s *Scope, a xres.Acquirer[T], opts ...xunique.Option) (*xunique.Owner[T], error) {
	if s == nil {
		return nil, ErrNilScope
	}
	o, err := xunique.Acquire(ctx, a, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Adopt("unique/"+o.Kind(), o); err != nil {
		return nil, err
	}
	return o, nil
}

// Shared 获取资源并把返回的 Ref 注册到 s。
// 调用方提前 Close 该 Ref 时，作用域关闭不会报告 [xshared.ErrClosed]。
func Shared[T any](ctx context.Context, s *Scope, a xres.Acquirer[T], opts ...xshared.Option) (*xshared.Ref[T], error) {
	if s == nil {
		return nil, ErrNilScope
	}
	r, err := xshared.Acquire(ctx, a, opts...)
	if err != nil {
		return nil, err
	}
	err = s.Defer("shared/"+r.Kind(), func() error {
		if err := r.Close(); err != nil && !errors.Is(err, xshared.ErrClosed) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
