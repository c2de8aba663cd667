// Package cache provides the process-wide time-bounded store that sits in
// front of the rate-limited external source. Payloads are treated as
// read-only once stored.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type entry struct {
	value      any
	expiration time.Time
}

// Store is a TTL-bounded key/value cache. Writes are last-writer-wins per
// key; concurrent misses on the same key may both fetch from the source,
// which is acceptable because source reads are idempotent.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// New creates a store and starts its background expiry sweep. The sweep
// bounds memory growth from entries that are never re-requested.
func New(sweepInterval time.Duration) *Store {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	s := &Store{
		entries:       make(map[string]*entry),
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Get returns the payload for key when present and fresh. A stale entry is
// deleted and reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		log.Trace().Str("key", key).Msg("cache miss")
		return nil, false
	}

	if time.Now().After(e.expiration) {
		s.mu.Lock()
		// Re-check under the write lock; another goroutine may have
		// replaced the entry since the read.
		if cur, ok := s.entries[key]; ok && cur == e {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		log.Trace().Str("key", key).Msg("cache expired")
		return nil, false
	}

	log.Trace().Str("key", key).Msg("cache hit")
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	s.entries[key] = &entry{value: value, expiration: time.Now().Add(ttl)}
	s.mu.Unlock()
	log.Trace().Str("key", key).Dur("ttl", ttl).Msg("cache set")
}

// Invalidate drops every entry whose key starts with prefix and returns
// the number removed.
func (s *Store) Invalidate(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().Str("prefix", prefix).Int("removed", removed).Msg("cache invalidated")
	}
	return removed
}

// Clear drops every entry. Used by the manual and scheduled resync.
func (s *Store) Clear() {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
	log.Debug().Int("removed", n).Msg("cache cleared")
}

// Len returns the current number of entries, expired or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the background sweep. The store stays usable afterwards;
// expired entries are then only reaped on read.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep(time.Now())
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if now.After(e.expiration) {
			delete(s.entries, k)
			removed++
		}
	}
	if removed > 0 {
		log.Trace().Int("removed", removed).Msg("cache sweep")
	}
}
