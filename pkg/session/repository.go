package session

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the number of live sessions.
const DefaultCapacity = 500

// Repository holds live sessions by id.
type Repository interface {
	Add(s *Session)
	Get(id string) (*Session, error)
	Delete(id string) (*Session, error)
	Len() int
}

// LRURepository keeps the most recently used sessions. Sessions pushed out
// by newer ones are handed to the eviction callback, which typically
// persists them.
type LRURepository struct {
	cache     *lru.Cache[string, *Session]
	onEvict   func(*Session)
	evictions atomic.Int64
}

// NewLRURepository creates a repository holding at most capacity sessions.
func NewLRURepository(capacity int, onEvict func(*Session)) (*LRURepository, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &LRURepository{onEvict: onEvict}
	cache, err := lru.NewWithEvict[string, *Session](capacity, r.handleEviction)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// handleEviction skips sessions removed through Delete.
func (r *LRURepository) handleEviction(_ string, s *Session) {
	s.Lock()
	closed := s.closed
	s.Unlock()
	if closed {
		return
	}
	r.evictions.Add(1)
	if r.onEvict != nil {
		r.onEvict(s)
	}
}

// Add stores s, possibly evicting the least recently used session.
func (r *LRURepository) Add(s *Session) {
	r.cache.Add(s.ID, s)
}

// Get returns the session and marks it recently used.
func (r *LRURepository) Get(id string) (*Session, error) {
	s, ok := r.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete removes the session without invoking the eviction callback.
// Only one of several concurrent deletes of the same id succeeds.
func (r *LRURepository) Delete(id string) (*Session, error) {
	s, ok := r.cache.Peek(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Lock()
	if s.closed {
		s.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.closed = true
	s.Unlock()
	r.cache.Remove(id)
	return s, nil
}

// Len returns the number of live sessions.
func (r *LRURepository) Len() int { return r.cache.Len() }

// Evictions returns how many sessions were pushed out by capacity.
func (r *LRURepository) Evictions() int64 { return r.evictions.Load() }

// Keys returns the ids of live sessions, oldest first.
func (r *LRURepository) Keys() []string { return r.cache.Keys() }
