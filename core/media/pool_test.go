package media

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolBound(t *testing.T) {
	p := NewPool(2)
	var running, peak atomic.Int32
	release := make(chan struct{})

	for i := 0; i < 6; i++ {
		p.Go(context.Background(), func(context.Context) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		})
	}

	assert.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	p.Wait()
	assert.Equal(t, int32(2), peak.Load())
	assert.Equal(t, int32(0), running.Load())
}

func TestPoolGoDoesNotBlock(t *testing.T) {
	p := NewPool(1)
	block := make(chan struct{})
	p.Go(context.Background(), func(context.Context) { <-block })

	done := make(chan struct{})
	go func() {
		p.Go(context.Background(), func(context.Context) {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Go blocked while the pool was full")
	}
	close(block)
	p.Wait()
}

func TestPoolSkipsOnCancelledContext(t *testing.T) {
	p := NewPool(1)
	block := make(chan struct{})
	p.Go(context.Background(), func(context.Context) { <-block })

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	p.Go(ctx, func(context.Context) { ran.Store(true) })
	cancel()
	close(block)
	p.Wait()
	assert.False(t, ran.Load())
}

func TestPoolRecoversPanic(t *testing.T) {
	p := NewPool(1)
	p.Go(context.Background(), func(context.Context) { panic("boom") })
	var ran atomic.Bool
	p.Go(context.Background(), func(context.Context) { ran.Store(true) })
	p.Wait()
	assert.True(t, ran.Load(), "slot must be released after a panic")
}
