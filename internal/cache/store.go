// Package cache holds upstream payloads until the market can have moved them.
package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"MarketLens/internal/model"
)

// Classifier assigns a session class to a symbol.
type Classifier interface {
	Classify(symbol string) model.SessionClass
}

// Clock reports exchange session state.
type Clock interface {
	IsOpen(t time.Time) bool
	NextOpen(t time.Time) time.Time
}

// Policy holds the time-based expiry parameters.
type Policy struct {
	// TwentyFourHourTTL applies to symbols that trade around the clock.
	TwentyFourHourTTL time.Duration
	// OpenSessionTTL applies to session-bound symbols while the session is
	// open. Zero means such entries are stale as soon as they are written.
	OpenSessionTTL time.Duration
}

// DefaultPolicy returns the stock expiry parameters.
func DefaultPolicy() Policy {
	return Policy{TwentyFourHourTTL: 2 * time.Minute}
}

// Entry is one cached payload. Entries are never mutated once stored.
type Entry[T any] struct {
	Symbol    string             `json:"symbol"`
	Payload   T                  `json:"payload"`
	FetchedAt time.Time          `json:"fetched_at"`
	ExpiresAt time.Time          `json:"expires_at"`
	Class     model.SessionClass `json:"-"`
}

// Fresh reports whether the entry may still be served at now.
func (e Entry[T]) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Stats is a point-in-time view of store activity.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Writes  int64 `json:"writes"`
	Entries int   `json:"entries"`
	Fresh   int   `json:"fresh"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Store is a symbol-keyed payload cache with market-aware expiry.
type Store[T any] struct {
	name       string
	classifier Classifier
	clock      Clock
	policy     Policy
	logger     *zap.Logger

	mu      sync.RWMutex
	entries map[string]Entry[T]

	hits   atomic.Int64
	misses atomic.Int64
	writes atomic.Int64
}

// New creates an empty store. name only labels log lines.
func New[T any](name string, classifier Classifier, clock Clock, policy Policy, logger *zap.Logger) *Store[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store[T]{
		name:       name,
		classifier: classifier,
		clock:      clock,
		policy:     policy,
		logger:     logger.With(zap.String("component", "cache"), zap.String("store", name)),
		entries:    make(map[string]Entry[T]),
	}
}

// Get returns the payload for symbol if an entry exists and now is before
// its expiry. Expired entries are left in place until overwritten.
func (s *Store[T]) Get(symbol string, now time.Time) (T, bool) {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	s.mu.RUnlock()

	if !ok || !e.Fresh(now) {
		s.misses.Add(1)
		var zero T
		return zero, false
	}
	s.hits.Add(1)
	s.logger.Debug("hit", zap.String("symbol", symbol), zap.Time("expires_at", e.ExpiresAt))
	return e.Payload, true
}

// Put stores payload for symbol, replacing any previous entry.
func (s *Store[T]) Put(symbol string, payload T, now time.Time) Entry[T] {
	class := s.classifier.Classify(symbol)
	e := Entry[T]{
		Symbol:    symbol,
		Payload:   payload,
		FetchedAt: now,
		ExpiresAt: s.ExpiresAt(class, now),
		Class:     class,
	}

	s.mu.Lock()
	s.entries[symbol] = e
	s.mu.Unlock()
	s.writes.Add(1)

	s.logger.Debug("set",
		zap.String("symbol", symbol),
		zap.Stringer("class", class),
		zap.Time("expires_at", e.ExpiresAt),
	)
	return e
}

// ExpiresAt computes the expiry of an entry of class written at now.
func (s *Store[T]) ExpiresAt(class model.SessionClass, now time.Time) time.Time {
	if class == model.SessionTwentyFourHour {
		return now.Add(s.policy.TwentyFourHourTTL)
	}
	// continuous and derivative symbols only move while the session is open
	if s.clock.IsOpen(now) {
		return now.Add(s.policy.OpenSessionTTL)
	}
	return s.clock.NextOpen(now)
}

// Invalidate drops the entry for symbol, if any.
func (s *Store[T]) Invalidate(symbol string) {
	s.mu.Lock()
	delete(s.entries, symbol)
	s.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a copy of every entry still fresh at now, sorted by symbol.
func (s *Store[T]) Entries(now time.Time) []Entry[T] {
	s.mu.RLock()
	out := make([]Entry[T], 0, len(s.entries))
	for _, e := range s.entries {
		if e.Fresh(now) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Stats returns the counters and entry totals as of now.
func (s *Store[T]) Stats(now time.Time) Stats {
	s.mu.RLock()
	total := len(s.entries)
	fresh := 0
	for _, e := range s.entries {
		if e.Fresh(now) {
			fresh++
		}
	}
	s.mu.RUnlock()

	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Writes:  s.writes.Load(),
		Entries: total,
		Fresh:   fresh,
	}
}

// Name returns the label the store was created with.
func (s *Store[T]) Name() string { return s.name }
