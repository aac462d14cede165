package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mahirjain10/poster-formatter/internal/types"
)

// Store keeps one Controller per browser session in memory. Entries expire
// after ttl without access; nothing is written anywhere else. At most
// maxSessions entries are held at once (0 means unlimited).
type Store struct {
	mu          sync.Mutex
	entries     map[uuid.UUID]*storeEntry
	ttl         time.Duration
	maxSessions int
	clock       clockwork.Clock
	factory     func() *Controller
}

type storeEntry struct {
	controller *Controller
	expiresAt  time.Time
}

func NewStore(ttl time.Duration, maxSessions int, clock clockwork.Clock, factory func() *Controller) *Store {
	return &Store{
		entries:     make(map[uuid.UUID]*storeEntry),
		ttl:         ttl,
		maxSessions: maxSessions,
		clock:       clock,
		factory:     factory,
	}
}

// Get returns the controller for id and extends its lifetime.
// Returns (nil, false) for unknown or expired ids.
func (s *Store) Get(id uuid.UUID) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	now := s.clock.Now()
	if now.After(entry.expiresAt) {
		delete(s.entries, id)
		return nil, false
	}
	entry.expiresAt = now.Add(s.ttl)
	return entry.controller, true
}

// Create starts a new empty session. When the store is full, expired
// entries are dropped first; if it is still full ErrSessionLimit is returned.
func (s *Store) Create() (uuid.UUID, *Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.maxSessions > 0 && len(s.entries) >= s.maxSessions {
		s.evictLocked(now)
		if len(s.entries) >= s.maxSessions {
			return uuid.Nil, nil, fmt.Errorf("%w: limit %d", types.ErrSessionLimit, s.maxSessions)
		}
	}

	id := uuid.New()
	c := s.factory()
	s.entries[id] = &storeEntry{controller: c, expiresAt: now.Add(s.ttl)}
	return id, c, nil
}

func (s *Store) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Len returns the number of entries, including expired ones not yet evicted.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// EvictExpired drops expired sessions and returns how many were removed.
func (s *Store) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictLocked(s.clock.Now())
}

func (s *Store) evictLocked(now time.Time) int {
	evicted := 0
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
			evicted++
		}
	}
	return evicted
}

// StartEvictionTimer runs EvictExpired every interval until the returned stop
// function is called.
func (s *Store) StartEvictionTimer(interval time.Duration) func() {
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if n := s.EvictExpired(); n > 0 {
					slog.Debug("Evicted expired sessions", "count", n, "remaining", s.Len())
				}
			case <-done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}
