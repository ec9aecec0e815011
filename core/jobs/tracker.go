// Package jobs tracks background downloads that are currently running.
package jobs

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/tunebot/core/syncx"
)

// Key identifies one in-flight download.
type Key struct {
	ChatID     int64
	UserID     int64
	ResourceID string
}

type record struct {
	token   uint64
	started time.Time
}

type shard struct {
	mu   sync.Mutex
	jobs map[Key]record
}

const shardCount = 16

// Tracker is a registry of running jobs. It only answers presence questions;
// it never blocks or queues a caller.
type Tracker struct {
	shards [shardCount]shard
	seq    atomic.Uint64
	now    func() time.Time
}

// New returns an empty Tracker.
func New() *Tracker {
	t := &Tracker{now: time.Now}
	for i := range t.shards {
		t.shards[i].jobs = make(map[Key]record)
	}
	return t
}

func (t *Tracker) shardFor(k Key) *shard {
	h := syncx.HashString(k.ResourceID, k.ChatID, k.UserID)
	return &t.shards[h%shardCount]
}

// Guard owns one registration. Release is safe to call more than once and
// only removes the registration it created.
type Guard struct {
	t       *Tracker
	key     Key
	token   uint64
	started time.Time
	once    sync.Once
}

// Key returns the job key the guard was issued for.
func (g *Guard) Key() Key { return g.key }

// Started returns the registration time.
func (g *Guard) Started() time.Time { return g.started }

// Release removes the registration. Intended to be deferred.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		s := g.t.shardFor(g.key)
		s.mu.Lock()
		if rec, ok := s.jobs[g.key]; ok && rec.token == g.token {
			delete(s.jobs, g.key)
		}
		s.mu.Unlock()
	})
}

// Begin registers the job. When the key is already active it returns nil and
// false and leaves the existing registration alone.
func (t *Tracker) Begin(k Key) (*Guard, bool) {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.jobs[k]; busy {
		return nil, false
	}
	rec := record{token: t.seq.Add(1), started: t.now()}
	s.jobs[k] = rec
	return &Guard{t: t, key: k, token: rec.token, started: rec.started}, true
}

// IsActive reports whether a job with this key is registered.
func (t *Tracker) IsActive(k Key) bool {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[k]
	return ok
}

// End removes the registration unconditionally.
func (t *Tracker) End(k Key) {
	s := t.shardFor(k)
	s.mu.Lock()
	delete(s.jobs, k)
	s.mu.Unlock()
}

// Len returns the number of active jobs.
func (t *Tracker) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		n += len(s.jobs)
		s.mu.Unlock()
	}
	return n
}

// ActiveFor counts jobs a user runs in a chat.
func (t *Tracker) ActiveFor(chatID, userID int64) int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for k := range s.jobs {
			if k.ChatID == chatID && k.UserID == userID {
				n++
			}
		}
		s.mu.Unlock()
	}
	return n
}
