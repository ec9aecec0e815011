package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestUnknownUserStartsEmpty(t *testing.T) {
	l := New()
	assert.Equal(t, 0, l.CurrentCount(1))
	assert.Equal(t, 0, l.Users())
}

func TestRecordRequestWithinMinute(t *testing.T) {
	clk := newClock()
	l := New(WithClock(clk.Now))

	for i := 1; i <= 5; i++ {
		require.Equal(t, i, l.RecordRequest(42))
		clk.Advance(10 * time.Second)
	}
	assert.Equal(t, 5, l.CurrentCount(42))
	assert.Equal(t, 0, l.CurrentCount(43))
}

func TestWindowRolls(t *testing.T) {
	clk := newClock()
	l := New(WithClock(clk.Now))

	l.RecordRequest(7)
	clk.Advance(30 * time.Minute)
	l.RecordRequest(7)
	assert.Equal(t, 2, l.CurrentCount(7))

	// first entry falls out, second is still inside
	clk.Advance(31 * time.Minute)
	assert.Equal(t, 1, l.CurrentCount(7))

	clk.Advance(Window)
	assert.Equal(t, 0, l.CurrentCount(7))
	assert.Equal(t, 0, l.Users(), "empty histories are dropped")
}

func TestEntryAtExactWindowEdgeExpires(t *testing.T) {
	clk := newClock()
	l := New(WithClock(clk.Now))
	l.RecordRequest(1)
	clk.Advance(Window)
	assert.Equal(t, 0, l.CurrentCount(1))
}

func TestTryRecord(t *testing.T) {
	clk := newClock()
	l := New(WithClock(clk.Now))

	for i := 0; i < 3; i++ {
		_, ok := l.TryRecord(9, 3)
		require.True(t, ok)
	}
	count, ok := l.TryRecord(9, 3)
	assert.False(t, ok)
	assert.Equal(t, 3, count)
	assert.Equal(t, 3, l.CurrentCount(9), "rejected attempt is not recorded")

	clk.Advance(Window + time.Second)
	count, ok = l.TryRecord(9, 3)
	assert.True(t, ok)
	assert.Equal(t, 1, count)
}

func TestTryRecordUnlimited(t *testing.T) {
	l := New()
	for i := 0; i < 100; i++ {
		_, ok := l.TryRecord(1, 0)
		require.True(t, ok)
	}
	assert.Equal(t, 100, l.CurrentCount(1))
}

func TestTryRecordConcurrentNeverOvershoots(t *testing.T) {
	l := New()
	const max = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := l.TryRecord(5, max); ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, max, accepted)
	assert.Equal(t, max, l.CurrentCount(5))
}
