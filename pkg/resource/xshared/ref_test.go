package xshared

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xown/pkg/resource/xres"
	"github.com/omeyang/xown/pkg/resource/xunique"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("runtime.runCleanups"),
		goleak.IgnoreAnyFunction("runtime.runfinq"),
	)
}

func counting(n *atomic.Int32) xres.ReleaseFunc {
	return func() error {
		n.Add(1)
		return nil
	}
}

// 场景：acquire(3) → 复制（计数 2）→ 析构副本（计数 1，不释放）→ 析构原件（计数 0，释放一次）。
func TestScenario_CopyThenDestroy(t *testing.T) {
	var released atomic.Int32
	first, err := New(3, counting(&released))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Count())

	second, err := first.Clone()
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.Count())
	assert.Equal(t, 3, second.MustGet())
	assert.Equal(t, first.ID(), second.ID())

	require.NoError(t, second.Close())
	assert.Equal(t, int64(1), first.Count())
	assert.Equal(t, int32(0), released.Load())

	require.NoError(t, first.Close())
	assert.Equal(t, int64(0), first.Count())
	assert.Equal(t, int32(1), released.Load())
}

func TestNClonesThenNPlusOneCloses(t *testing.T) {
	for _, n := range []int{0, 1, 2, 16, 100} {
		var released atomic.Int32
		root, err := New("res", counting(&released))
		require.NoError(t, err)

		refs := []*Ref[string]{root}
		for range n {
			c, err := refs[len(refs)-1].Clone()
			require.NoError(t, err)
			refs = append(refs, c)
		}
		require.Equal(t, int64(n+1), root.Count())

		for i, r := range refs {
			assert.Equal(t, int32(0), released.Load(), "released before last close (n=%d, i=%d)", n, i)
			require.NoError(t, r.Close())
		}
		assert.Equal(t, int32(1), released.Load(), "n=%d", n)
	}
}

func TestClose_PerInstanceIdempotent(t *testing.T) {
	var released atomic.Int32
	a, err := New(1, counting(&released))
	require.NoError(t, err)
	b, err := a.Clone()
	require.NoError(t, err)

	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Close(), ErrClosed)
	assert.ErrorIs(t, b.Close(), ErrClosed)
	assert.Equal(t, int64(1), a.Count(), "repeated close must not decrement again")
	assert.Equal(t, int32(0), released.Load())

	require.NoError(t, a.Close())
	assert.Equal(t, int32(1), released.Load())
}

func TestClosedRef(t *testing.T) {
	r, err := New(1, xres.Nop)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.True(t, r.Closed())
	_, err = r.Get()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Clone()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Weak()
	assert.ErrorIs(t, err, ErrClosed)
	assert.PanicsWithValue(t, ErrClosed, func() { r.MustGet() })

	var nilRef *Ref[int]
	assert.ErrorIs(t, nilRef.Close(), ErrClosed)
	assert.Equal(t, int64(0), nilRef.Count())
	assert.Empty(t, nilRef.ID())
}

func TestNew_NilRelease(t *testing.T) {
	_, err := New(1, nil)
	assert.ErrorIs(t, err, xres.ErrAcquire)
	assert.ErrorIs(t, err, xres.ErrNilRelease)
}

func TestAcquire(t *testing.T) {
	r, err := Acquire(context.Background(), xres.Value(42))
	require.NoError(t, err)
	assert.Equal(t, 42, r.MustGet())
	assert.Equal(t, xres.KindValue, r.Kind())
	require.NoError(t, r.Close())

	boom := errors.New("boom")
	_, err = Acquire(context.Background(), func(context.Context) (xres.Resource[int], error) {
		return xres.Resource[int]{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, xres.ErrAcquire)
}

func TestReleaseError(t *testing.T) {
	boom := errors.New("close failed")
	var obs xres.Counter
	a, err := New(1, func() error { return boom }, WithObserver(&obs))
	require.NoError(t, err)
	b, err := a.Clone()
	require.NoError(t, err)

	require.NoError(t, a.Close())
	err = b.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	snap := obs.Snapshot()
	assert.Equal(t, int64(1), snap.Acquired)
	assert.Equal(t, int64(1), snap.Released)
	assert.Equal(t, int64(1), snap.Failed)
}

func TestClose_PanickingRelease(t *testing.T) {
	var obs xres.Counter
	a, err := New(1, func() error { panic("release exploded") }, WithObserver(&obs))
	require.NoError(t, err)
	b, err := a.Clone()
	require.NoError(t, err)

	require.NoError(t, a.Close())
	var closeErr error
	assert.NotPanics(t, func() { closeErr = b.Close() })
	assert.ErrorIs(t, closeErr, xres.ErrReleasePanic)
	var re *xres.ReleaseError
	assert.ErrorAs(t, closeErr, &re)
	assert.Equal(t, int64(0), b.Count())

	snap := obs.Snapshot()
	assert.Equal(t, int64(1), snap.Released)
	assert.Equal(t, int64(1), snap.Failed)
	assert.Equal(t, int64(0), snap.Live())
}

func TestFromOwner(t *testing.T) {
	var released atomic.Int32
	var obs xres.Counter
	o, err := xunique.New("file", counting(&released), xunique.WithObserver(&obs))
	require.NoError(t, err)

	r, err := FromOwner(o, WithObserver(&obs))
	require.NoError(t, err)
	assert.False(t, o.Valid())
	require.NoError(t, o.Close())
	assert.Equal(t, int32(0), released.Load())

	c, err := r.Clone()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, int32(1), released.Load())

	_, err = FromOwner(o)
	assert.ErrorIs(t, err, xunique.ErrUseAfterMove)

	snap := obs.Snapshot()
	assert.Equal(t, int64(2), snap.Acquired)
	assert.Equal(t, int64(1), snap.Detached)
	assert.Equal(t, int64(1), snap.Released)
	assert.Equal(t, int64(0), snap.Live())
}

func TestWeak(t *testing.T) {
	var released atomic.Int32
	r, err := New(7, counting(&released))
	require.NoError(t, err)

	w, err := r.Weak()
	require.NoError(t, err)
	assert.False(t, w.Expired())
	assert.Equal(t, int64(1), r.Count(), "weak reference does not count")

	up, ok := w.Upgrade()
	require.True(t, ok)
	assert.Equal(t, 7, up.MustGet())
	assert.Equal(t, int64(2), r.Count())

	require.NoError(t, r.Close())
	require.NoError(t, up.Close())
	assert.Equal(t, int32(1), released.Load())
	assert.True(t, w.Expired())

	up, ok = w.Upgrade()
	assert.False(t, ok)
	assert.Nil(t, up)
	assert.Equal(t, int32(1), released.Load(), "upgrade must not resurrect")

	var nilWeak *Weak[int]
	assert.True(t, nilWeak.Expired())
	_, ok = nilWeak.Upgrade()
	assert.False(t, ok)
}

func TestDoubleReleasePanics(t *testing.T) {
	r, err := New(1, xres.Nop)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	// 人为破坏控制块：绕过实例级幂等再递减一次。
	assert.PanicsWithValue(t, "xshared: double release detected", func() {
		_ = r.ctrl.release()
	})
}

// T 个 goroutine 并发复制/析构，净计数为零时释放恰好一次。
func TestConcurrentCloneClose(t *testing.T) {
	const (
		goroutines = 32
		iterations = 200
	)
	for round := range 20 {
		var released atomic.Int32
		root, err := New(round, counting(&released))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range goroutines {
			mine, err := root.Clone()
			require.NoError(t, err)
			wg.Add(1)
			go func(mine *Ref[int]) {
				defer wg.Done()
				for range iterations {
					c, err := mine.Clone()
					if !assert.NoError(t, err) {
						return
					}
					assert.NoError(t, c.Close())
				}
				assert.NoError(t, mine.Close())
			}(mine)
		}

		// 根引用与工作 goroutine 并发关闭。
		require.NoError(t, root.Close())
		wg.Wait()
		assert.Equal(t, int32(1), released.Load(), "round %d", round)
	}
}

func TestConcurrentUpgradeRace(t *testing.T) {
	for range 50 {
		var released atomic.Int32
		r, err := New(1, counting(&released))
		require.NoError(t, err)
		w, err := r.Weak()
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					if up, ok := w.Upgrade(); ok {
						assert.Equal(t, 1, up.MustGet())
						assert.NoError(t, up.Close())
					}
				}
			}()
		}
		require.NoError(t, r.Close())
		wg.Wait()

		assert.Equal(t, int32(1), released.Load())
		assert.True(t, w.Expired())
	}
}

func TestLeakCheck(t *testing.T) {
	var obs xres.Counter
	func() {
		r, err := New(1, xres.Nop, WithObserver(&obs), WithLeakCheck())
		require.NoError(t, err)
		c, err := r.Clone()
		require.NoError(t, err)
		require.NoError(t, r.Close())
		_ = c.ID() // c 未关闭即不可达
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()
		return obs.Snapshot().Leaked == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOTelObserverIntegration(t *testing.T) {
	obs, err := xres.NewOTelObserver()
	require.NoError(t, err)

	r, err := New(1, xres.Nop, WithObserver(obs))
	require.NoError(t, err)
	c, err := r.Clone()
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.NoError(t, c.Close())
}
