package xunique

import (
	"context"

	"github.com/omeyang/xown/internal/leak"
	"github.com/omeyang/xown/internal/nocopy"
	"github.com/omeyang/xown/pkg/resource/xres"
)

// Owner 独占持有一个资源。零值为空 Owner，可安全调用任何方法。
type Owner[T any] struct {
	noCopy nocopy.NoCopy

	res   xres.Resource[T]
	held  bool
	id    string
	opts  *options
	guard *leak.Guard
}

// New 接管值 v 及其释放函数。release 为 nil 时返回 [*xres.AcquisitionError]。
// 无需释放的值请传入 [xres.Nop]。
func New[T any](v T, release xres.ReleaseFunc, opts ...Option) (*Owner[T], error) {
	if release == nil {
		return nil, &xres.AcquisitionError{Kind: xres.KindValue, Err: xres.ErrNilRelease}
	}
	return adopt(context.Background(), xres.New(v, release), opts), nil
}

// Acquire 执行获取函数并返回持有结果的 Owner。
// 获取失败时返回 [*xres.AcquisitionError]，不构造 Owner。
func Acquire[T any](ctx context.Context, a xres.Acquirer[T], opts ...Option) (*Owner[T], error) {
	res, err := xres.Acquire(ctx, a)
	if err != nil {
		return nil, err
	}
	return adopt(ctx, res, opts), nil
}

// FromResource 接管一个已获取的资源，例如 [Owner.Detach] 的结果。
func FromResource[T any](res xres.Resource[T], opts ...Option) (*Owner[T], error) {
	if res.Release == nil {
		return nil, &xres.AcquisitionError{Kind: res.Kind, Err: xres.ErrNilRelease}
	}
	if res.Kind == "" {
		res.Kind = xres.KindValue
	}
	return adopt(context.Background(), res, opts), nil
}

func adopt[T any](ctx context.Context, res xres.Resource[T], opts []Option) *Owner[T] {
	o := &Owner[T]{opts: buildOptions(opts)}
	o.hold(res, xres.NewID())
	o.opts.hooks.Acquired(ctx, o.event())
	return o
}

// Move 把所有权转移给新 Owner 并返回它，源 Owner 变为空。
// 对空 Owner 调用返回一个新的空 Owner。
func (o *Owner[T]) Move() *Owner[T] {
	if o == nil {
		return &Owner[T]{}
	}
	dst := &Owner[T]{opts: o.opts}
	if !o.held {
		return dst
	}
	res, id := o.res, o.id
	o.drop()
	dst.hold(res, id)
	return dst
}

// Get 返回持有的值。Owner 为空时返回 [ErrUseAfterMove]。
func (o *Owner[T]) Get() (T, error) {
	if o == nil || !o.held {
		var zero T
		return zero, ErrUseAfterMove
	}
	return o.res.Value, nil
}

// MustGet 与 Get 相同，但 Owner 为空时 panic。
func (o *Owner[T]) MustGet() T {
	v, err := o.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Valid 报告 Owner 是否持有资源。
func (o *Owner[T]) Valid() bool {
	return o != nil && o.held
}

// ID 返回本次获取的唯一标识，Owner 为空时返回空字符串。
// 转移不改变 ID。
func (o *Owner[T]) ID() string {
	if o == nil {
		return ""
	}
	return o.id
}

// Kind 返回资源类型，Owner 为空时返回空字符串。
func (o *Owner[T]) Kind() string {
	if o == nil {
		return ""
	}
	return o.res.Kind
}

// Reset 释放持有的资源并置空。
// 对空 Owner 调用是空操作，返回 nil。
// 释放失败或 panic 返回 [*xres.ReleaseError]，此时资源同样视为已释放。
func (o *Owner[T]) Reset() error {
	if o == nil || !o.held {
		return nil
	}
	res, ev := o.res, o.event()
	o.drop()

	err := res.Release.Call()
	o.opts.hooks.Released(context.Background(), ev, err)
	if err != nil {
		return &xres.ReleaseError{Kind: ev.Kind, ID: ev.ID, Err: err}
	}
	return nil
}

// Close 在作用域退出时释放资源，等价于 [Owner.Reset]，可重复调用。
func (o *Owner[T]) Close() error {
	return o.Reset()
}

// Replace 释放当前资源（如有）并接管 res。
// res.Release 为 nil 时不做任何改变，返回 [*xres.AcquisitionError]。
// 旧资源释放失败时仍会接管 res，并返回释放错误。
// o 为 nil 时返回 [ErrUseAfterMove]。
func (o *Owner[T]) Replace(res xres.Resource[T]) error {
	if o == nil {
		return ErrUseAfterMove
	}
	if res.Release == nil {
		return &xres.AcquisitionError{Kind: res.Kind, Err: xres.ErrNilRelease}
	}
	if res.Kind == "" {
		res.Kind = xres.KindValue
	}
	if o.opts == nil {
		o.opts = buildOptions(nil)
	}
	err := o.Reset()
	o.hold(res, xres.NewID())
	o.opts.hooks.Acquired(context.Background(), o.event())
	return err
}

// Detach 交出资源但不释放，Owner 变为空。
// 调用方从此负责调用返回资源的 Release。Owner 为空时返回 [ErrUseAfterMove]。
func (o *Owner[T]) Detach() (xres.Resource[T], error) {
	if o == nil || !o.held {
		return xres.Resource[T]{}, ErrUseAfterMove
	}
	res, ev := o.res, o.event()
	o.drop()
	o.opts.hooks.Detached(context.Background(), ev)
	return res, nil
}

// Swap 交换两个 Owner 持有的资源。
func (o *Owner[T]) Swap(other *Owner[T]) {
	if o == nil || other == nil || o == other {
		return
	}
	o.guard.Disarm()
	other.guard.Disarm()
	o.guard, other.guard = nil, nil

	o.res, other.res = other.res, o.res
	o.held, other.held = other.held, o.held
	o.id, other.id = other.id, o.id
	if o.opts == nil {
		o.opts = other.opts
	}
	if other.opts == nil {
		other.opts = o.opts
	}
	o.arm()
	other.arm()
}

func (o *Owner[T]) event() xres.Event {
	return xres.Event{Kind: o.res.Kind, ID: o.id, Owner: xres.OwnerUnique}
}

// hold 接管资源，不触发 Acquired 事件。
func (o *Owner[T]) hold(res xres.Resource[T], id string) {
	o.res, o.id, o.held = res, id, true
	o.arm()
}

// drop 置空 Owner，不释放资源。
func (o *Owner[T]) drop() {
	o.guard.Disarm()
	o.guard = nil
	o.res = xres.Resource[T]{}
	o.id = ""
	o.held = false
}

func (o *Owner[T]) arm() {
	if !o.held || o.opts == nil || !o.opts.leakCheck {
		return
	}
	ev, hooks := o.event(), o.opts.hooks
	o.guard = leak.Watch(o, func() {
		hooks.Leaked(context.Background(), ev)
	})
}
