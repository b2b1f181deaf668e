// Package idempotency lets a networked producer retry a Submit call
// safely: the same client-supplied key within the TTL window replays the
// original (task_id, sample_number, response) instead of re-enqueuing.
package idempotency

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the cached outcome of a single Submit.
type Result struct {
	TaskID       uuid.UUID `json:"task_id"`
	SampleNumber int       `json:"sample_number"`
	Response     string    `json:"response"`
}

// Backend is a durable key/value store for Results, matched against the
// teacher's Redis-backed idempotency record (GetIdempotencyRecord /
// SetIdempotencyRecord). A nil Backend means Store falls back to an
// in-process cache only.
type Backend interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// Store caches Submit results by client-supplied idempotency key.
type Store struct {
	backend Backend
	ttl     time.Duration
	cache   sync.Map // key -> cacheEntry
}

type cacheEntry struct {
	result   Result
	storedAt time.Time
}

// NewStore returns a Store; backend may be nil for memory-only operation.
// ttl <= 0 defaults to 24h, matching the teacher's idempotency window.
func NewStore(backend Backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{backend: backend, ttl: ttl}
}

// Get returns the cached Result for key, if present and unexpired.
func (s *Store) Get(ctx context.Context, key string) (Result, bool) {
	if key == "" {
		return Result{}, false
	}

	if s.backend != nil {
		val, err := s.backend.Get(ctx, key)
		if err != nil {
			log.Printf("idempotency: backend get failed for %s: %v", key, err)
		} else if val != "" {
			var r Result
			if err := json.Unmarshal([]byte(val), &r); err == nil {
				return r, true
			}
		}
	}

	v, ok := s.cache.Load(key)
	if !ok {
		return Result{}, false
	}
	e := v.(cacheEntry)
	if time.Since(e.storedAt) > s.ttl {
		s.cache.Delete(key)
		return Result{}, false
	}
	return e.result, true
}

// Put records r under key for the store's TTL.
func (s *Store) Put(ctx context.Context, key string, r Result) {
	if key == "" {
		return
	}

	if s.backend != nil {
		if b, err := json.Marshal(r); err == nil {
			if err := s.backend.Set(ctx, key, string(b), s.ttl); err != nil {
				log.Printf("idempotency: backend set failed for %s: %v", key, err)
			}
		}
		return
	}

	s.cache.Store(key, cacheEntry{result: r, storedAt: time.Now()})
}
