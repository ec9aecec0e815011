// Package ratelimit counts user requests over a rolling one hour window.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the length of the rolling window. It is fixed; limits are owned
// by the caller.
const Window = time.Hour

const shardCount = 32

type entry struct {
	at time.Time
	n  int
}

type shard struct {
	mu    sync.Mutex
	users map[int64][]entry
}

// Limiter keeps an ordered request history per user. Entries older than the
// window are pruned on the next read or write of that user; there is no
// background sweep.
type Limiter struct {
	shards [shardCount]shard
	now    func() time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs an empty Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{now: time.Now}
	for i := range l.shards {
		l.shards[i].users = make(map[int64][]entry)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) shardFor(userID int64) *shard {
	idx := uint64(userID) % shardCount
	return &l.shards[idx]
}

// RecordRequest appends one request for the user and returns the number of
// requests inside the window, including this one.
func (l *Limiter) RecordRequest(userID int64) int {
	s := l.shardFor(userID)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.pruneLocked(userID, now)
	hist = append(hist, entry{at: now, n: 1})
	s.users[userID] = hist
	return sum(hist)
}

// CurrentCount returns the number of requests inside the window.
func (l *Limiter) CurrentCount(userID int64) int {
	s := l.shardFor(userID)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	return sum(s.pruneLocked(userID, now))
}

// TryRecord records a request only when the user is below max and reports the
// resulting count. The check and the write happen under one lock, so two
// concurrent callers cannot both take the last free slot. A non-positive max
// disables the limit.
func (l *Limiter) TryRecord(userID int64, max int) (int, bool) {
	s := l.shardFor(userID)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.pruneLocked(userID, now)
	count := sum(hist)
	if max > 0 && count >= max {
		return count, false
	}
	hist = append(hist, entry{at: now, n: 1})
	s.users[userID] = hist
	return count + 1, true
}

// Users reports how many users currently hold history. Intended for metrics.
func (l *Limiter) Users() int {
	total := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		total += len(s.users)
		s.mu.Unlock()
	}
	return total
}

// pruneLocked drops expired entries for userID and returns the live history.
// Users without live history are removed from the map.
func (s *shard) pruneLocked(userID int64, now time.Time) []entry {
	hist, ok := s.users[userID]
	if !ok {
		return nil
	}
	cutoff := now.Add(-Window)
	i := 0
	for i < len(hist) && !hist[i].at.After(cutoff) {
		i++
	}
	if i == len(hist) {
		delete(s.users, userID)
		return nil
	}
	if i > 0 {
		hist = append(hist[:0:0], hist[i:]...)
		s.users[userID] = hist
	}
	return hist
}

func sum(hist []entry) int {
	total := 0
	for _, e := range hist {
		total += e.n
	}
	return total
}
