package xres

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// 所有权类型标签。
const (
	OwnerUnique = "unique"
	OwnerShared = "shared"
)

// Event 描述一次资源生命周期事件。
type Event struct {
	// Kind 资源类型。
	Kind string
	// ID 本次获取的唯一标识。
	ID string
	// Owner 所有权类型（[OwnerUnique] 或 [OwnerShared]）。
	Owner string
}

// Observer 接收资源生命周期事件。
// 实现必须并发安全，且不应阻塞。
type Observer interface {
	// Acquired 资源被某个 owner 接管。
	Acquired(ctx context.Context, ev Event)
	// Released 资源被释放；err 为释放操作返回的错误。
	Released(ctx context.Context, ev Event, err error)
	// Detached 资源所有权被交出但未释放（例如独占转共享）。
	Detached(ctx context.Context, ev Event)
	// Leaked 持有资源的 owner 被回收但从未释放。
	Leaked(ctx context.Context, ev Event)
}

// NopObserver 是空实现。
type NopObserver struct{}

func (NopObserver) Acquired(context.Context, Event)        {}
func (NopObserver) Released(context.Context, Event, error) {}
func (NopObserver) Detached(context.Context, Event)        {}
func (NopObserver) Leaked(context.Context, Event)          {}

// CounterSnapshot 是 [Counter] 的瞬时快照。
type CounterSnapshot struct {
	Acquired int64
	Released int64
	Failed   int64
	Detached int64
	Leaked   int64
}

// Live 返回仍被持有的资源数。
func (s CounterSnapshot) Live() int64 {
	return s.Acquired - s.Released - s.Detached
}

// Counter 是基于原子计数的 Observer，零值可用。
type Counter struct {
	acquired atomic.Int64
	released atomic.Int64
	failed   atomic.Int64
	detached atomic.Int64
	leaked   atomic.Int64
}

func (c *Counter) Acquired(context.Context, Event) { c.acquired.Add(1) }

func (c *Counter) Released(_ context.Context, _ Event, err error) {
	c.released.Add(1)
	if err != nil {
		c.failed.Add(1)
	}
}

func (c *Counter) Detached(context.Context, Event) { c.detached.Add(1) }
func (c *Counter) Leaked(context.Context, Event)   { c.leaked.Add(1) }

// Snapshot 返回当前计数。各字段分别原子读取，不保证彼此一致。
func (c *Counter) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		Acquired: c.acquired.Load(),
		Released: c.released.Load(),
		Failed:   c.failed.Load(),
		Detached: c.detached.Load(),
		Leaked:   c.leaked.Load(),
	}
}

// Multi 把事件分发给多个 Observer，nil 会被跳过。
func Multi(observers ...Observer) Observer {
	list := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return list
}

type multi []Observer

func (m multi) Acquired(ctx context.Context, ev Event) {
	for _, o := range m {
		o.Acquired(ctx, ev)
	}
}

func (m multi) Released(ctx context.Context, ev Event, err error) {
	for _, o := range m {
		o.Released(ctx, ev, err)
	}
}

func (m multi) Detached(ctx context.Context, ev Event) {
	for _, o := range m {
		o.Detached(ctx, ev)
	}
}

func (m multi) Leaked(ctx context.Context, ev Event) {
	for _, o := range m {
		o.Leaked(ctx, ev)
	}
}

// Hooks 组合日志与观测，供 owner 在生命周期节点调用。
// 零值可用：Logger 为 nil 时使用 slog.Default()，Observer 为 nil 时不上报。
type Hooks struct {
	Logger   *slog.Logger
	Observer Observer
}

func (h Hooks) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Acquired 上报获取事件。
func (h Hooks) Acquired(ctx context.Context, ev Event) {
	if h.Observer != nil {
		h.Observer.Acquired(ctx, ev)
	}
}

// Released 上报释放事件。释放失败记录 Error 日志，但从不 panic。
func (h Hooks) Released(ctx context.Context, ev Event, err error) {
	if err != nil {
		h.logger().LogAttrs(ctx, slog.LevelError, "xres: release failed",
			slog.String("kind", ev.Kind),
			slog.String("id", ev.ID),
			slog.String("owner", ev.Owner),
			slog.Any("error", err),
		)
	}
	if h.Observer != nil {
		h.Observer.Released(ctx, ev, err)
	}
}

// Detached 上报分离事件。
func (h Hooks) Detached(ctx context.Context, ev Event) {
	if h.Observer != nil {
		h.Observer.Detached(ctx, ev)
	}
}

// Leaked 上报泄漏事件并记录 Warn 日志。
func (h Hooks) Leaked(ctx context.Context, ev Event) {
	h.logger().LogAttrs(ctx, slog.LevelWarn, "xres: owner collected without release",
		slog.String("kind", ev.Kind),
		slog.String("id", ev.ID),
		slog.String("owner", ev.Owner),
	)
	if h.Observer != nil {
		h.Observer.Leaked(ctx, ev)
	}
}

// 编译期接口检查。
var (
	_ Observer = NopObserver{}
	_ Observer = (*Counter)(nil)
	_ Observer = multi(nil)
)
