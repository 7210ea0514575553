package xres

import (
	"context"
	"errors"

	retry "github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker/v2"
)

// WithRetry 为获取器增加重试。
//
// 底层使用 avast/retry-go/v5，opts 追加在默认选项
// （Context(ctx)、LastErrorOnly(true)）之后，可覆盖默认值。
// 每次失败尝试中随错误一并返回的资源会立即回滚，不会跨尝试泄漏。
// 用 retry.Unrecoverable 包装的错误不再重试。
func WithRetry[T any](a Acquirer[T], opts ...retry.Option) Acquirer[T] {
	return func(ctx context.Context) (Resource[T], error) {
		if a == nil {
			return Resource[T]{}, ErrNilAcquirer
		}
		all := make([]retry.Option, 0, len(opts)+2)
		all = append(all, retry.Context(ctx), retry.LastErrorOnly(true))
		all = append(all, opts...)

		return retry.NewWithData[Resource[T]](all...).Do(func() (Resource[T], error) {
			res, err := a(ctx)
			if err != nil {
				// 回滚失败意味着获取器状态不可信，不再重试。
				if rerr := rollback(res); rerr != nil {
					return Resource[T]{}, retry.Unrecoverable(errors.Join(err, rerr))
				}
				return Resource[T]{}, err
			}
			return res, nil
		})
	}
}

// NewBreaker 创建用于 [WithBreaker] 的熔断器。
// st.Name 为空时使用 name。
func NewBreaker[T any](name string, st gobreaker.Settings) *gobreaker.CircuitBreaker[Resource[T]] {
	if st.Name == "" {
		st.Name = name
	}
	return gobreaker.NewCircuitBreaker[Resource[T]](st)
}

// WithBreaker 用熔断器保护获取器。
//
// 熔断打开时直接返回 gobreaker.ErrOpenState，不调用底层获取器；
// 经 [Acquire] 执行时该错误同样被包装为 [*AcquisitionError]。
func WithBreaker[T any](a Acquirer[T], cb *gobreaker.CircuitBreaker[Resource[T]]) Acquirer[T] {
	return func(ctx context.Context) (Resource[T], error) {
		if a == nil {
			return Resource[T]{}, ErrNilAcquirer
		}
		if cb == nil {
			return a(ctx)
		}
		return cb.Execute(func() (Resource[T], error) {
			res, err := a(ctx)
			if err != nil {
				if rerr := rollback(res); rerr != nil {
					return Resource[T]{Kind: res.Kind}, errors.Join(err, rerr)
				}
				return Resource[T]{Kind: res.Kind}, err
			}
			return res, nil
		})
	}
}
