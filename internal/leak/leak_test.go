package leak

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type owner struct {
	_ [16]byte
}

func TestWatch_ReportsWhenCollected(t *testing.T) {
	var reported atomic.Int32
	func() {
		o := &owner{}
		Watch(o, func() { reported.Add(1) })
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()
		return reported.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDisarm_SuppressesReport(t *testing.T) {
	var reported atomic.Int32
	func() {
		o := &owner{}
		g := Watch(o, func() { reported.Add(1) })
		g.Disarm()
		g.Disarm()
	}()

	for range 5 {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int32(0), reported.Load())
}

func TestDisarm_Nil(t *testing.T) {
	var g *Guard
	assert.NotPanics(t, g.Disarm)
}
