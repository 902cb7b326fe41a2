package cache

// #region imports
import (
	"path"
	"strings"
	"sync"
	"time"

	"github.com/ebrodeur/recoupement/internal/metrics"
)

// #endregion imports

// #region types

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Store is an in-memory TTL cache with glob-pattern invalidation.
// Readers tolerate misses by recomputing; nothing ever blocks on population.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
}

// New creates an empty cache.
func New() *Store {
	return &Store{items: make(map[string]entry)}
}

// #endregion types

// #region get-set

// Get returns the cached value for key, or (nil, false) on miss or expiry.
// Expired entries are removed lazily on access.
func (s *Store) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		metrics.CacheMisses.WithLabelValues(keyPrefix(key)).Inc()
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		metrics.CacheMisses.WithLabelValues(keyPrefix(key)).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(keyPrefix(key)).Inc()
	return e.value, true
}

// Set stores value under key for ttl. Non-positive ttl falls back to one minute.
func (s *Store) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	s.mu.Lock()
	s.items[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

// #endregion get-set

// #region invalidate

// InvalidatePattern removes every key matching the glob pattern (path.Match
// syntax, e.g. "threats*"). Returns the number of entries removed.
func (s *Store) InvalidatePattern(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.items {
		if ok, err := path.Match(pattern, key); err == nil && ok {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// Sweep removes all expired entries. Optional housekeeping; Get already
// evicts lazily.
func (s *Store) Sweep() int {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.items {
		if now.After(e.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries (expired ones may still be counted
// until swept).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// #endregion invalidate

// #region helpers

func keyPrefix(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// #endregion helpers
