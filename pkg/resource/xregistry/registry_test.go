package xregistry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xown/pkg/resource/xres"
	"github.com/omeyang/xown/pkg/resource/xshared"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeBackend 记录每个 key 的打开与释放次数。
type fakeBackend struct {
	mu       sync.Mutex
	opened   map[string]int
	released map[string]int
	fail     error
}

func newBackend() *fakeBackend {
	return &fakeBackend{opened: map[string]int{}, released: map[string]int{}}
}

func (b *fakeBackend) open(_ context.Context, key string) (xres.Resource[string], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return xres.Resource[string]{}, b.fail
	}
	b.opened[key]++
	return xres.Resource[string]{
		Value: "conn:" + key,
		Kind:  xres.KindConn,
		Release: func() error {
			b.mu.Lock()
			b.released[key]++
			b.mu.Unlock()
			return nil
		},
	}, nil
}

func (b *fakeBackend) counts(key string) (opened, released int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened[key], b.released[key]
}

func TestNew_Validation(t *testing.T) {
	b := newBackend()

	_, err := New[string](nil)
	assert.ErrorIs(t, err, ErrNilOpener)

	_, err = New(b.open, WithCapacity(0))
	assert.ErrorIs(t, err, ErrInvalidCapacity)

	for _, n := range []int{0, -1, 3, 12, maxShardCount * 2} {
		_, err = New(b.open, WithShardCount(n))
		assert.ErrorIs(t, err, ErrInvalidShardCount, "shard count %d", n)
	}

	r, err := New(b.open, WithCapacity(3), WithShardCount(64))
	require.NoError(t, err)
	assert.Len(t, r.shards, 2, "shard count shrinks to fit capacity")
	require.NoError(t, r.Close())
}

func TestGet_SharesOneResource(t *testing.T) {
	b := newBackend()
	r, err := New(b.open)
	require.NoError(t, err)

	a, err := r.Get(context.Background(), "db")
	require.NoError(t, err)
	c, err := r.Get(context.Background(), "db")
	require.NoError(t, err)

	assert.Equal(t, "conn:db", a.MustGet())
	assert.Equal(t, a.ID(), c.ID())
	assert.Equal(t, int64(3), a.Count(), "anchor plus two callers")

	opened, _ := b.counts("db")
	assert.Equal(t, 1, opened)

	require.NoError(t, a.Close())
	require.NoError(t, c.Close())
	_, released := b.counts("db")
	assert.Equal(t, 0, released, "anchor keeps the resource alive")

	require.NoError(t, r.Close())
	_, released = b.counts("db")
	assert.Equal(t, 1, released)
}

func TestGet_Invalid(t *testing.T) {
	r, err := New(newBackend().open)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	//nolint:staticcheck // 验证 nil context 的防御
	_, err = r.Get(nil, "k")
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestGet_OpenFailure(t *testing.T) {
	b := newBackend()
	boom := errors.New("refused")
	b.fail = boom

	r, err := New(b.open)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Get(context.Background(), "db")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, xres.ErrAcquire)
	assert.Equal(t, 0, r.Len())
}

func TestGet_ConcurrentOpensOnce(t *testing.T) {
	var opens atomic.Int32
	gate := make(chan struct{})
	var released atomic.Int32

	r, err := New(func(_ context.Context, key string) (xres.Resource[int], error) {
		opens.Add(1)
		<-gate
		return xres.New(len(key), func() error {
			released.Add(1)
			return nil
		}), nil
	})
	require.NoError(t, err)

	const callers = 32
	refs := make(chan *xshared.Ref[int], callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := r.Get(context.Background(), "shared")
			if assert.NoError(t, err) {
				refs <- ref
			}
		}()
	}
	// 等待第一个调用方进入 Opener 后放行。
	require.Eventually(t, func() bool { return opens.Load() == 1 }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()
	close(refs)

	assert.Equal(t, int32(1), opens.Load())
	for ref := range refs {
		require.NoError(t, ref.Close())
	}
	require.NoError(t, r.Close())
	assert.Equal(t, int32(1), released.Load())
}

func TestGet_CallerCancel(t *testing.T) {
	gate := make(chan struct{})
	r, err := New(func(context.Context, string) (xres.Resource[int], error) {
		<-gate
		return xres.New(1, xres.Nop), nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Get(ctx, "slow")
	assert.ErrorIs(t, err, context.Canceled)

	// 共享的打开过程不受取消影响，完成后锚仍被保留。
	close(gate)
	require.Eventually(t, func() bool { return r.Len() == 1 }, time.Second, time.Millisecond)

	ref, err := r.Get(context.Background(), "slow")
	require.NoError(t, err)
	require.NoError(t, ref.Close())
	require.NoError(t, r.Close())
}

// 打开期间另一个锚已写入分片时，新打开的资源被关闭，其释放失败带 key 记录。
func TestLoad_LosesInsertRace(t *testing.T) {
	boom := errors.New("close failed")
	var logs bytes.Buffer
	existing, err := xshared.New("first", xres.Nop)
	require.NoError(t, err)

	var r *Registry[string]
	r, err = New(func(context.Context, string) (xres.Resource[string], error) {
		r.shard("k").Add("k", existing)
		return xres.New("second", func() error { return boom }), nil
	}, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	got, err := r.load(context.Background(), r.shard("k"), "k")
	require.NoError(t, err)
	assert.Same(t, existing, got)
	assert.Contains(t, logs.String(), "xregistry: release of duplicate anchor failed")
	assert.Contains(t, logs.String(), "key=k")
	assert.Contains(t, logs.String(), "close failed")

	require.NoError(t, r.Close())
	assert.True(t, existing.Closed())
}

func TestLRUEviction(t *testing.T) {
	b := newBackend()
	r, err := New(b.open, WithCapacity(2), WithShardCount(1))
	require.NoError(t, err)

	for _, k := range []string{"a", "b"} {
		ref, err := r.Get(context.Background(), k)
		require.NoError(t, err)
		require.NoError(t, ref.Close())
	}
	held, err := r.Get(context.Background(), "a") // a 变为最近使用
	require.NoError(t, err)

	ref, err := r.Get(context.Background(), "c") // 淘汰 b
	require.NoError(t, err)
	require.NoError(t, ref.Close())

	assert.Equal(t, []string{"a", "c"}, r.Keys())
	_, released := b.counts("b")
	assert.Equal(t, 1, released)

	// 淘汰不影响已发出的 Ref。
	require.True(t, r.Evict("a"))
	_, released = b.counts("a")
	assert.Equal(t, 0, released)
	assert.Equal(t, "conn:a", held.MustGet())
	require.NoError(t, held.Close())
	_, released = b.counts("a")
	assert.Equal(t, 1, released)

	// 淘汰后重新打开。
	ref, err = r.Get(context.Background(), "a")
	require.NoError(t, err)
	require.NoError(t, ref.Close())
	opened, _ := b.counts("a")
	assert.Equal(t, 2, opened)

	require.NoError(t, r.Close())
}

func TestEvict(t *testing.T) {
	r, err := New(newBackend().open)
	require.NoError(t, err)
	defer r.Close()

	assert.False(t, r.Evict("missing"))
	assert.False(t, r.Evict(""))

	ref, err := r.Get(context.Background(), "k")
	require.NoError(t, err)
	require.NoError(t, ref.Close())
	assert.True(t, r.Evict("k"))
	assert.Equal(t, 0, r.Len())
}

func TestClose(t *testing.T) {
	b := newBackend()
	var obs xres.Counter
	r, err := New(b.open, WithObserver(&obs))
	require.NoError(t, err)

	keys := make([]string, 0, 20)
	for i := range 20 {
		k := fmt.Sprintf("key-%02d", i)
		keys = append(keys, k)
		ref, err := r.Get(context.Background(), k)
		require.NoError(t, err)
		require.NoError(t, ref.Close())
	}
	assert.Equal(t, 20, r.Len())
	assert.Equal(t, keys, r.Keys())

	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), ErrClosed)
	assert.Equal(t, 0, r.Len())

	_, err = r.Get(context.Background(), "key-00")
	assert.ErrorIs(t, err, ErrClosed)

	snap := obs.Snapshot()
	assert.Equal(t, int64(20), snap.Acquired)
	assert.Equal(t, int64(20), snap.Released)
	assert.Equal(t, int64(0), snap.Live())
}

func TestConcurrentGetEvictClose(t *testing.T) {
	b := newBackend()
	r, err := New(b.open, WithCapacity(4), WithShardCount(2))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				key := fmt.Sprintf("k%d", (w+i)%10)
				ref, err := r.Get(context.Background(), key)
				if err != nil {
					if !errors.Is(err, ErrClosed) && !errors.Is(err, ErrEvicted) {
						t.Errorf("get %s: %v", key, err)
					}
					continue
				}
				if i%7 == 0 {
					r.Evict(key)
				}
				assert.NoError(t, ref.Close())
			}
		}()
	}
	wg.Wait()
	require.NoError(t, r.Close())

	b.mu.Lock()
	defer b.mu.Unlock()
	for k, opened := range b.opened {
		assert.Equal(t, opened, b.released[k], "every opened resource of %s released exactly once", k)
	}
}
