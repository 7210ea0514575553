package xres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
)

// 内置资源类型标签。
const (
	KindValue  = "value"
	KindFile   = "file"
	KindFD     = "fd"
	KindConn   = "conn"
	KindLock   = "lock"
	KindBuffer = "buffer"
)

// ReleaseFunc 释放一个资源句柄。
// 每个句柄最多调用一次；失败必须以 error 返回，不得静默吞掉。
type ReleaseFunc func() error

// Call 执行释放函数，把 panic 转换为包装 [ErrReleasePanic] 的错误。
// owner 通过它释放资源，保证释放事件总能上报。
func (f ReleaseFunc) Call() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrReleasePanic, r)
		}
	}()
	return f()
}

// Nop 是无需释放的资源所使用的 ReleaseFunc。
func Nop() error { return nil }

// Resource 表示一个已获取、尚未释放的受管资源。
type Resource[T any] struct {
	// Value 资源句柄（地址、描述符、连接等）。
	Value T
	// Release 释放操作，不能为 nil。
	Release ReleaseFunc
	// Kind 资源类型标签，用于日志与指标。
	Kind string
}

// Acquirer 获取一个资源。
// 失败时应自行回滚已产生的副作用；若仍返回了带 Release 的资源，
// [Acquire] 会代为释放。
type Acquirer[T any] func(ctx context.Context) (Resource[T], error)

// New 创建 Kind 为 [KindValue] 的资源。
func New[T any](v T, release ReleaseFunc) Resource[T] {
	return Resource[T]{Value: v, Release: release, Kind: KindValue}
}

// FromCloser 以 c.Close 作为释放操作创建资源。
func FromCloser[T io.Closer](c T, kind string) Resource[T] {
	return Resource[T]{Value: c, Release: Once(c.Close), Kind: kind}
}

// Value 返回一个总是成功、无需释放的获取器。
func Value[T any](v T) Acquirer[T] {
	return func(ctx context.Context) (Resource[T], error) {
		if err := ctx.Err(); err != nil {
			return Resource[T]{}, err
		}
		return New(v, Nop), nil
	}
}

// Once 返回幂等的释放函数：首次调用执行 release，后续调用返回 [ErrReleased]。
func Once(release ReleaseFunc) ReleaseFunc {
	var done atomic.Bool
	return func() error {
		if !done.CompareAndSwap(false, true) {
			return ErrReleased
		}
		return release()
	}
}

// Acquire 执行获取函数并规范化结果。
//
// 成功时返回的资源 Release 非 nil、Kind 非空。
// 失败时返回 [*AcquisitionError]，且不持有任何资源。
func Acquire[T any](ctx context.Context, a Acquirer[T]) (Resource[T], error) {
	var zero Resource[T]
	if ctx == nil {
		return zero, &AcquisitionError{Err: ErrNilContext}
	}
	if a == nil {
		return zero, &AcquisitionError{Err: ErrNilAcquirer}
	}
	res, err := a(ctx)
	if err != nil {
		if rerr := rollback(res); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return zero, wrapAcquire(res.Kind, err)
	}
	if res.Release == nil {
		return zero, &AcquisitionError{Kind: res.Kind, Err: ErrNilRelease}
	}
	if res.Kind == "" {
		res.Kind = KindValue
	}
	return res, nil
}

// rollback 释放获取失败时一并返回的资源。
func rollback[T any](res Resource[T]) error {
	if res.Release == nil {
		return nil
	}
	return res.Release.Call()
}

// NewID 为一次获取生成唯一标识。
func NewID() string {
	return uuid.NewString()
}
