package xshared

import (
	"context"
	"sync/atomic"

	"github.com/omeyang/xown/internal/leak"
	"github.com/omeyang/xown/internal/nocopy"
	"github.com/omeyang/xown/pkg/resource/xres"
	"github.com/omeyang/xown/pkg/resource/xunique"
)

// control 是同一资源所有 Ref 共享的控制块。
// 生命周期等于最后一个 Ref 或 Weak 的生命周期，由 GC 回收。
type control[T any] struct {
	strong atomic.Int64
	res    xres.Resource[T] // 归零释放后清空，避免弱引用钉住资源值
	kind   string
	id     string
	opts   *options
}

// Ref 是对共享资源的一个强引用。
type Ref[T any] struct {
	noCopy nocopy.NoCopy

	ctrl   *control[T]
	closed atomic.Bool
	guard  *leak.Guard
}

// New 接管值 v 及其释放函数，返回计数为 1 的 Ref。
// release 为 nil 时返回 [*xres.AcquisitionError]。
func New[T any](v T, release xres.ReleaseFunc, opts ...Option) (*Ref[T], error) {
	if release == nil {
		return nil, &xres.AcquisitionError{Kind: xres.KindValue, Err: xres.ErrNilRelease}
	}
	return adopt(context.Background(), xres.New(v, release), opts), nil
}

// Acquire 执行获取函数并返回计数为 1 的 Ref。
// 获取失败时返回 [*xres.AcquisitionError]，不构造 Ref。
func Acquire[T any](ctx context.Context, a xres.Acquirer[T], opts ...Option) (*Ref[T], error) {
	res, err := xres.Acquire(ctx, a)
	if err != nil {
		return nil, err
	}
	return adopt(ctx, res, opts), nil
}

// FromOwner 把独占所有权转换为共享所有权，o 变为空。
// o 为空时返回 [xunique.ErrUseAfterMove]。
func FromOwner[T any](o *xunique.Owner[T], opts ...Option) (*Ref[T], error) {
	res, err := o.Detach()
	if err != nil {
		return nil, err
	}
	return adopt(context.Background(), res, opts), nil
}

func adopt[T any](ctx context.Context, res xres.Resource[T], opts []Option) *Ref[T] {
	c := &control[T]{
		res:  res,
		kind: res.Kind,
		id:   xres.NewID(),
		opts: buildOptions(opts),
	}
	c.strong.Store(1)
	c.opts.hooks.Acquired(ctx, c.event())
	return c.newRef()
}

// Clone 返回指向同一资源的新 Ref，计数原子地加一。
// r 已关闭或资源已释放时返回 [ErrClosed]。
func (r *Ref[T]) Clone() (*Ref[T], error) {
	if r == nil || r.ctrl == nil || r.closed.Load() {
		return nil, ErrClosed
	}
	if !r.ctrl.retain() {
		return nil, ErrClosed
	}
	return r.ctrl.newRef(), nil
}

// Get 返回共享的值。r 已关闭时返回 [ErrClosed]。
func (r *Ref[T]) Get() (T, error) {
	if r == nil || r.ctrl == nil || r.closed.Load() {
		var zero T
		return zero, ErrClosed
	}
	return r.ctrl.res.Value, nil
}

// MustGet 与 Get 相同，但 r 已关闭时 panic。
func (r *Ref[T]) MustGet() T {
	v, err := r.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Count 返回共享计数的瞬时值，仅用于观测。
// 读到的值随时可能被其他 goroutine 改变，不能据此决定资源生命周期。
func (r *Ref[T]) Count() int64 {
	if r == nil || r.ctrl == nil {
		return 0
	}
	return r.ctrl.strong.Load()
}

// Closed 报告 r 是否已关闭。
func (r *Ref[T]) Closed() bool {
	return r == nil || r.ctrl == nil || r.closed.Load()
}

// ID 返回资源的唯一标识，同一资源的所有 Ref 相同。
func (r *Ref[T]) ID() string {
	if r == nil || r.ctrl == nil {
		return ""
	}
	return r.ctrl.id
}

// Kind 返回资源类型。
func (r *Ref[T]) Kind() string {
	if r == nil || r.ctrl == nil {
		return ""
	}
	return r.ctrl.kind
}

// Close 放弃此引用。计数原子地减一，归零时释放资源。
//
// 每个 Ref 只递减一次：第二次及后续调用返回 [ErrClosed]。
// 释放失败或 panic 返回 [*xres.ReleaseError]，资源同样视为已释放。
func (r *Ref[T]) Close() error {
	if r == nil || r.ctrl == nil {
		return ErrClosed
	}
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	r.guard.Disarm()
	return r.ctrl.release()
}

// Weak 返回不延长资源生命周期的弱引用。r 已关闭时返回 [ErrClosed]。
func (r *Ref[T]) Weak() (*Weak[T], error) {
	if r == nil || r.ctrl == nil || r.closed.Load() {
		return nil, ErrClosed
	}
	return &Weak[T]{ctrl: r.ctrl}, nil
}

// Weak 是对共享资源的弱引用，可并发使用。
type Weak[T any] struct {
	ctrl *control[T]
}

// Upgrade 在资源仍存活时返回新的强引用。
// 计数已归零时返回 (nil, false)，且不会复活资源。
func (w *Weak[T]) Upgrade() (*Ref[T], bool) {
	if w == nil || w.ctrl == nil || !w.ctrl.retain() {
		return nil, false
	}
	return w.ctrl.newRef(), true
}

// Expired 报告资源是否已释放。
func (w *Weak[T]) Expired() bool {
	return w == nil || w.ctrl == nil || w.ctrl.strong.Load() <= 0
}

// retain 仅在计数非零时加一。
func (c *control[T]) retain() bool {
	for {
		n := c.strong.Load()
		if n <= 0 {
			return false
		}
		if c.strong.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release 递减计数；令计数归零的调用者负责释放资源。
func (c *control[T]) release() error {
	n := c.strong.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		panic("xshared: double release detected")
	}

	res := c.res
	c.res = xres.Resource[T]{}
	ev := c.event()
	err := res.Release.Call()
	c.opts.hooks.Released(context.Background(), ev, err)
	if err != nil {
		return &xres.ReleaseError{Kind: ev.Kind, ID: ev.ID, Err: err}
	}
	return nil
}

func (c *control[T]) newRef() *Ref[T] {
	r := &Ref[T]{ctrl: c}
	if c.opts.leakCheck {
		ev, hooks := c.event(), c.opts.hooks
		r.guard = leak.Watch(r, func() {
			hooks.Leaked(context.Background(), ev)
		})
	}
	return r
}

func (c *control[T]) event() xres.Event {
	return xres.Event{Kind: c.kind, ID: c.id, Owner: xres.OwnerShared}
}
