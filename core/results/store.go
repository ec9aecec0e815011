// Package results binds pagination snapshots to the chat message that renders
// them, so every participant of a chat can page through the same results.
package results

import (
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"

	"github.com/m3rciful/tunebot/core/pagination"
	"github.com/m3rciful/tunebot/core/syncx"
)

const (
	// DefaultTTL expires an entry this long after its last write.
	DefaultTTL = 48 * time.Hour
	// DefaultCapacity bounds resident entries.
	DefaultCapacity = 50_000
)

// Key addresses a rendered results message.
type Key struct {
	ChatID    int64
	MessageID int
}

// Options configures a Store.
type Options struct {
	TTL      time.Duration
	Capacity int
	Stripes  int
}

// Store holds one snapshot per message. Navigation is last-write-wins; there
// is no owner lock on an entry.
type Store struct {
	cache otter.Cache[Key, pagination.Snapshot]
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
	cache, err := otter.MustBuilder[Key, pagination.Snapshot](opts.Capacity).
		WithTTL(opts.TTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("results: build cache: %w", err)
	}
	return &Store{cache: cache, locks: syncx.NewStriped(opts.Stripes)}, nil
}

// Close releases cache resources.
func (s *Store) Close() {
	s.cache.Close()
}

// Len reports resident entries.
func (s *Store) Len() int {
	return s.cache.Size()
}

func (s *Store) lock(k Key) *sync.Mutex {
	mu := s.locks.For(syncx.Hash64(k.ChatID, int64(k.MessageID)))
	mu.Lock()
	return mu
}

// Store associates a freshly rendered message with its snapshot, replacing
// any previous entry.
func (s *Store) Store(chatID int64, messageID int, snap pagination.Snapshot) {
	k := Key{ChatID: chatID, MessageID: messageID}
	mu := s.lock(k)
	defer mu.Unlock()
	s.cache.Set(k, snap)
}

// Get returns the snapshot bound to the message.
func (s *Store) Get(chatID int64, messageID int) (pagination.Snapshot, bool) {
	return s.cache.Get(Key{ChatID: chatID, MessageID: messageID})
}

// Update replaces the snapshot only when the message already has one and
// reports whether it did. Updating an unknown message never creates an entry.
func (s *Store) Update(chatID int64, messageID int, snap pagination.Snapshot) bool {
	k := Key{ChatID: chatID, MessageID: messageID}
	mu := s.lock(k)
	defer mu.Unlock()
	if !s.cache.Has(k) {
		return false
	}
	s.cache.Set(k, snap)
	return true
}

// Remove drops the entry; removing an unknown message is a no-op.
func (s *Store) Remove(chatID int64, messageID int) {
	k := Key{ChatID: chatID, MessageID: messageID}
	mu := s.lock(k)
	defer mu.Unlock()
	s.cache.Delete(k)
}
