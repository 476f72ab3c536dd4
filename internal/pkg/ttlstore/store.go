package ttlstore

import (
	"context"
	"sync"
	"time"

	"github.com/go-carrier-billing/internal/pkg/clock"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Store is a concurrency-safe keyed store with per-entry TTL. Expiry is
// enforced at lookup time: a Get after the deadline reports the entry as
// absent even if the sweeper has not run yet.
type Store[V any] struct {
	mu    sync.Mutex
	items map[string]entry[V]
	ttl   time.Duration
	clk   clock.Clock
}

// New creates a store whose entries live for ttl after insertion.
func New[V any](ttl time.Duration, clk clock.Clock) *Store[V] {
	return &Store[V]{
		items: make(map[string]entry[V]),
		ttl:   ttl,
		clk:   clk,
	}
}

// Put inserts or replaces the entry under key, restarting its TTL.
// Returns the entry's expiry deadline.
func (s *Store[V]) Put(key string, v V) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp := s.clk.Now().Add(s.ttl)
	s.items[key] = entry[V]{value: v, expiresAt: exp}
	return exp
}

// Get returns the live entry under key. An expired entry is treated as
// absent and removed.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero V
	e, ok := s.items[key]
	if !ok {
		return zero, false
	}
	if !s.clk.Now().Before(e.expiresAt) {
		delete(s.items, key)
		return zero, false
	}
	return e.value, true
}

// GetAndDelete returns the live entry under key and removes it in the
// same critical section. Of any number of concurrent callers, at most
// one observes the entry.
func (s *Store[V]) GetAndDelete(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero V
	e, ok := s.items[key]
	if !ok {
		return zero, false
	}
	delete(s.items, key)
	if !s.clk.Now().Before(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Delete removes the entry under key, if present.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Sweep removes all expired entries and returns how many were dropped.
func (s *Store[V]) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clk.Now()
	n := 0
	for k, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, including any not yet swept.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// StartSweeper sweeps the store every interval until ctx is cancelled.
func (s *Store[V]) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Sweep()
			}
		}
	}()
}
