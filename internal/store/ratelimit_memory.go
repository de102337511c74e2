package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/admission-gate/internal/ratelimit"
)

// RateLimitMemoryStore is an in-memory implementation of every rate limit
// capability set. TTLs are evaluated lazily against the injected clock, so
// tests can move time without sleeping.
type RateLimitMemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	counters map[string]int64
	sets     map[string]map[string]int64 // key -> member -> score
	values   map[string]string
	expiry   map[string]time.Time
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store. A nil
// clock means time.Now.
func NewRateLimitMemoryStore(now func() time.Time) *RateLimitMemoryStore {
	if now == nil {
		now = time.Now
	}

	return &RateLimitMemoryStore{
		now:      now,
		counters: make(map[string]int64),
		sets:     make(map[string]map[string]int64),
		values:   make(map[string]string),
		expiry:   make(map[string]time.Time),
	}
}

// Backends exposes the store as every capability set.
func (s *RateLimitMemoryStore) Backends() ratelimit.Backends {
	return ratelimit.Backends{Counter: s, Timestamps: s, State: s}
}

func (s *RateLimitMemoryStore) Increment(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(key)
	s.counters[key]++

	return s.counters[key], nil
}

func (s *RateLimitMemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(key)

	if !s.exists(key) {
		return nil
	}

	s.expiry[key] = s.now().Add(ttl)

	return nil
}

func (s *RateLimitMemoryStore) AddTimestamp(_ context.Context, key string, score int64, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(key)

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]int64)
		s.sets[key] = set
	}

	set[member] = score

	return nil
}

func (s *RateLimitMemoryStore) RemoveRange(_ context.Context, key string, minScore, maxScore int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(key)

	for member, score := range s.sets[key] {
		if score >= minScore && score <= maxScore {
			delete(s.sets[key], member)
		}
	}

	if len(s.sets[key]) == 0 {
		delete(s.sets, key)
	}

	return nil
}

func (s *RateLimitMemoryStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(key)

	return int64(len(s.sets[key])), nil
}

func (s *RateLimitMemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(key)

	value, ok := s.values[key]

	return value, ok, nil
}

// Set stores value and clears any TTL, like a plain Redis SET.
func (s *RateLimitMemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	delete(s.expiry, key)

	return nil
}

// TTL reports the remaining lifetime of key; ok is false when the key has
// no expiry or does not exist.
func (s *RateLimitMemoryStore) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(key)

	at, ok := s.expiry[key]
	if !ok {
		return 0, false
	}

	return at.Sub(s.now()), true
}

func (s *RateLimitMemoryStore) exists(key string) bool {
	_, counter := s.counters[key]
	_, set := s.sets[key]
	_, value := s.values[key]

	return counter || set || value
}

// evictExpired must be called with mu held.
func (s *RateLimitMemoryStore) evictExpired(key string) {
	at, ok := s.expiry[key]
	if !ok || s.now().Before(at) {
		return
	}

	delete(s.counters, key)
	delete(s.sets, key)
	delete(s.values, key)
	delete(s.expiry, key)
}

var (
	_ ratelimit.Counter      = (*RateLimitMemoryStore)(nil)
	_ ratelimit.Expirer      = (*RateLimitMemoryStore)(nil)
	_ ratelimit.TimestampSet = (*RateLimitMemoryStore)(nil)
	_ ratelimit.StateStore   = (*RateLimitMemoryStore)(nil)
)
