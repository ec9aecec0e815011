package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/m3rciful/tunebot/core/pagination"
	"github.com/m3rciful/tunebot/core/syncx"
)

const (
	// DefaultTTL bounds how long an untouched bundle stays resident.
	DefaultTTL = 6 * time.Hour
	// DefaultCapacity bounds the number of resident bundles.
	DefaultCapacity = 100_000
)

// Options configures a Store.
type Options struct {
	// TTL expires a bundle after its last write.
	TTL time.Duration
	// Capacity caps resident bundles; the least valuable are evicted first.
	Capacity int
	// Stripes sizes the writer lock table.
	Stripes int
}

// Store maps identity keys to state bundles.
//
// Reads are lock-free. Every mutation of a key runs under that key's stripe
// lock and publishes a fresh bundle, so a reader observes either the whole
// previous bundle or the whole next one.
type Store struct {
	cache otter.Cache[Key, bundle]
	locks *syncx.Striped
}

// New builds a Store.
func New(opts Options) (*Store, error) {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	cache, err := otter.MustBuilder[Key, bundle](opts.Capacity).
		WithTTL(opts.TTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("state: build cache: %w", err)
	}
	return &Store{
		cache: cache,
		locks: syncx.NewStriped(opts.Stripes),
	}, nil
}

// Close releases cache resources.
func (s *Store) Close() {
	s.cache.Close()
}

// Len reports resident bundles.
func (s *Store) Len() int {
	return s.cache.Size()
}

func (s *Store) lockFor(key Key) *sync.Mutex {
	return s.locks.For(syncx.Hash64(key.UserID, key.ChatID, int64(key.TopicID)))
}

// mutate applies fn to the current bundle of key under its stripe lock. When
// fn reports a change, a nil or empty result removes the bundle and anything
// else is published and restarts the TTL.
func (s *Store) mutate(key Key, fn func(cur bundle) (bundle, bool)) {
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	cur, _ := s.cache.Get(key)
	next, changed := fn(cur)
	if !changed {
		return
	}
	if len(next) == 0 {
		s.cache.Delete(key)
		return
	}
	s.cache.Set(key, next)
}

// Set creates or overwrites a named value.
func (s *Store) Set(key Key, name string, value any) {
	s.mutate(key, func(cur bundle) (bundle, bool) {
		return cur.with(name, value), true
	})
}

// Get returns the named value or def when it is absent.
func (s *Store) Get(key Key, name string, def any) any {
	if v, ok := s.Lookup(key, name); ok {
		return v
	}
	return def
}

// Lookup returns the named value and whether it exists.
func (s *Store) Lookup(key Key, name string) (any, bool) {
	b, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	v, ok := b[name]
	return v, ok
}

// Clear removes the given names, or the entire bundle when none are given.
// Clearing something that does not exist is a no-op.
func (s *Store) Clear(key Key, names ...string) {
	if len(names) == 0 {
		mu := s.lockFor(key)
		mu.Lock()
		s.cache.Delete(key)
		mu.Unlock()
		return
	}
	s.mutate(key, func(cur bundle) (bundle, bool) {
		if cur == nil {
			return nil, false
		}
		return cur.without(names...), true
	})
}

// IsWaitingForQuery reports whether the identity was prompted for a search query.
func (s *Store) IsWaitingForQuery(key Key) bool {
	b, _ := s.cache.Get(key)
	return b.flag(WaitingForQuery)
}

// SetWaitingForQuery toggles the search prompt flag.
func (s *Store) SetWaitingForQuery(key Key, waiting bool) {
	s.Set(key, WaitingForQuery, waiting)
}

// TakeWaitingForQuery reports whether the prompt flag was set and resets it in
// the same critical section.
func (s *Store) TakeWaitingForQuery(key Key) bool {
	return s.take(key, WaitingForQuery)
}

// SetPrompt makes name the identity's only pending prompt. Any other name
// clears both prompts.
func (s *Store) SetPrompt(key Key, name string) {
	s.mutate(key, func(cur bundle) (bundle, bool) {
		return cur.with(
			WaitingForQuery, name == WaitingForQuery,
			WaitingForLink, name == WaitingForLink,
		), true
	})
}

// IsWaitingForLink reports whether the identity was prompted for a link.
func (s *Store) IsWaitingForLink(key Key) bool {
	b, _ := s.cache.Get(key)
	return b.flag(WaitingForLink)
}

// SetWaitingForLink toggles the link prompt flag.
func (s *Store) SetWaitingForLink(key Key, waiting bool) {
	s.Set(key, WaitingForLink, waiting)
}

// TakeWaitingForLink is the link counterpart of TakeWaitingForQuery.
func (s *Store) TakeWaitingForLink(key Key) bool {
	return s.take(key, WaitingForLink)
}

func (s *Store) take(key Key, name string) bool {
	var was bool
	s.mutate(key, func(cur bundle) (bundle, bool) {
		was = cur.flag(name)
		if !was {
			return cur, false
		}
		return cur.with(name, false), true
	})
	return was
}

// IsBrowsingResults reports whether the identity is paging through results.
func (s *Store) IsBrowsingResults(key Key) bool {
	b, _ := s.cache.Get(key)
	return b.flag(BrowsingResults)
}

// SetBrowsingResults writes the browsing flag and, when snap is non-nil, the
// result snapshot in one step. Turning browsing off without a snapshot drops
// any stored snapshot.
func (s *Store) SetBrowsingResults(key Key, browsing bool, snap *pagination.Snapshot) {
	s.mutate(key, func(cur bundle) (bundle, bool) {
		switch {
		case snap != nil:
			return cur.with(BrowsingResults, browsing, SearchResults, *snap), true
		case !browsing:
			return cur.without(SearchResults).with(BrowsingResults, false), true
		default:
			return cur.with(BrowsingResults, true), true
		}
	})
}

// SearchResults returns the stored snapshot, if any.
func (s *Store) SearchResults(key Key) (pagination.Snapshot, bool) {
	v, ok := s.Lookup(key, SearchResults)
	if !ok {
		return pagination.Snapshot{}, false
	}
	snap, ok := v.(pagination.Snapshot)
	return snap, ok
}

// ResetSearch clears the query prompt, the browsing flag and the stored
// snapshot together, leaving unrelated names untouched.
func (s *Store) ResetSearch(key Key) {
	s.mutate(key, func(cur bundle) (bundle, bool) {
		if cur == nil {
			return nil, false
		}
		return cur.without(WaitingForQuery, BrowsingResults, SearchResults), true
	})
}
