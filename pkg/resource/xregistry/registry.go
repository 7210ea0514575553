package xregistry

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xown/pkg/resource/xres"
	"github.com/omeyang/xown/pkg/resource/xshared"
)

// getAttempts 是锚在克隆前被淘汰时 Get 的最大尝试次数。
const getAttempts = 3

// Opener 为 key 打开资源。同一 key 的并发打开会被合并。
type Opener[T any] func(ctx context.Context, key string) (xres.Resource[T], error)

// Registry 按 key 共享资源，可并发使用。
type Registry[T any] struct {
	open   Opener[T]
	shards []*lru.Cache[string, *xshared.Ref[T]]
	mask   uint64
	group  singleflight.Group
	closed atomic.Bool
	opts   options
	refOpt []xshared.Option
}

// New 创建注册表。
func New[T any](open Opener[T], opts ...Option) (*Registry[T], error) {
	if open == nil {
		return nil, ErrNilOpener
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	r := &Registry[T]{
		open: open,
		// shardCount 已验证为不超过 65536 的 2 的幂。
		mask: uint64(o.shardCount - 1),
		opts: o,
		refOpt: []xshared.Option{
			xshared.WithLogger(o.logger),
			xshared.WithObserver(o.observer),
		},
	}
	r.shards = make([]*lru.Cache[string, *xshared.Ref[T]], o.shardCount)
	for i := range r.shards {
		c, err := lru.NewWithEvict(o.shardCapacity(), r.onEvict)
		if err != nil {
			return nil, err
		}
		r.shards[i] = c
	}
	return r, nil
}

func (r *Registry[T]) shard(key string) *lru.Cache[string, *xshared.Ref[T]] {
	return r.shards[xxhash.Sum64String(key)&r.mask]
}

// onEvict 关闭被淘汰的锚。golang-lru 在释放内部锁之后调用它。
func (r *Registry[T]) onEvict(key string, anchor *xshared.Ref[T]) {
	r.opts.logger.Debug("xregistry: anchor evicted", slog.String("key", key))
	if err := anchor.Close(); err != nil && !errors.Is(err, xshared.ErrClosed) {
		// 释放失败已由 xshared 记录并上报，这里只补充 key。
		r.opts.logger.Warn("xregistry: release after eviction failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}
}

// Get 返回 key 对应资源的一个新 Ref，调用方负责 Close。
//
// key 尚未打开时调用 Opener；同一 key 的并发 Get 只打开一次。
// 打开失败返回 [*xres.AcquisitionError]。
// ctx 取消只让当前调用方提前返回，不会中断其他调用方共享的打开过程。
func (r *Registry[T]) Get(ctx context.Context, key string) (*xshared.Ref[T], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	sh := r.shard(key)

	for range getAttempts {
		if r.closed.Load() {
			return nil, ErrClosed
		}
		anchor, ok := sh.Get(key)
		if !ok {
			var err error
			anchor, err = r.loadShared(ctx, sh, key)
			if err != nil {
				return nil, err
			}
		}
		// 锚可能在取出后被并发淘汰，此时重新查找。
		if ref, err := anchor.Clone(); err == nil {
			return ref, nil
		}
	}
	return nil, ErrEvicted
}

func (r *Registry[T]) loadShared(ctx context.Context, sh *lru.Cache[string, *xshared.Ref[T]], key string) (*xshared.Ref[T], error) {
	ch := r.group.DoChan(key, func() (any, error) {
		return r.load(context.WithoutCancel(ctx), sh, key)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*xshared.Ref[T]), nil
	}
}

func (r *Registry[T]) load(ctx context.Context, sh *lru.Cache[string, *xshared.Ref[T]], key string) (*xshared.Ref[T], error) {
	if anchor, ok := sh.Get(key); ok {
		return anchor, nil
	}
	anchor, err := xshared.Acquire(ctx, func(ctx context.Context) (xres.Resource[T], error) {
		return r.open(ctx, key)
	}, r.refOpt...)
	if err != nil {
		return nil, err
	}

	if prev, ok, _ := sh.PeekOrAdd(key, anchor); ok {
		if err := anchor.Close(); err != nil && !errors.Is(err, xshared.ErrClosed) {
			r.opts.logger.Warn("xregistry: release of duplicate anchor failed",
				slog.String("key", key),
				slog.Any("error", err),
			)
		}
		return prev, nil
	}
	// 与 Close 竞争：Close 先置位再清空分片，这里后检查，二者必有一方关闭锚。
	if r.closed.Load() {
		sh.Remove(key)
		return nil, ErrClosed
	}
	r.opts.logger.Debug("xregistry: opened", slog.String("key", key), slog.String("id", anchor.ID()))
	return anchor, nil
}

// Evict 移除 key 的锚并报告它是否存在。
// 资源在所有已发出的 Ref 关闭后释放。
func (r *Registry[T]) Evict(key string) bool {
	if key == "" {
		return false
	}
	return r.shard(key).Remove(key)
}

// Len 返回当前保留的锚数量。
func (r *Registry[T]) Len() int {
	n := 0
	for _, sh := range r.shards {
		n += sh.Len()
	}
	return n
}

// Keys 返回当前保留的全部 key，按字典序排列。
func (r *Registry[T]) Keys() []string {
	keys := make([]string, 0, r.Len())
	for _, sh := range r.shards {
		keys = append(keys, sh.Keys()...)
	}
	slices.Sort(keys)
	return keys
}

// Close 关闭注册表并移除全部锚。已发出的 Ref 不受影响，
// 各资源在其最后一个 Ref 关闭时释放。第二次及后续调用返回 [ErrClosed]。
func (r *Registry[T]) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	for _, sh := range r.shards {
		sh.Purge()
	}
	return nil
}
