package threat

// #region imports
import (
	"sync"
	"time"
)

// #endregion imports

// #region types

// HistoryEntry is one recorded prediction for a threat.
type HistoryEntry struct {
	Score          float64
	Timestamp      time.Time
	PrescriptionID string
}

// HistoryStore is the keyed per-threat score history, capped at the most
// recent entries. Owned by the orchestrator and injected, never a package
// singleton, so tests can instantiate isolated instances.
type HistoryStore struct {
	mu      sync.RWMutex
	cap     int
	entries map[string][]HistoryEntry
}

// NewHistoryStore creates a history store keeping at most cap entries per
// threat (10 if cap is not positive).
func NewHistoryStore(cap int) *HistoryStore {
	if cap <= 0 {
		cap = 10
	}
	return &HistoryStore{
		cap:     cap,
		entries: make(map[string][]HistoryEntry),
	}
}

// #endregion types

// #region delta

// Delta returns newScore minus the mean of the history that exists for the
// threat right now. Must be called before Append for the same score: delta is
// always computed against history recorded before the current score.
// Returns 0 for a threat with no history.
func (h *HistoryStore) Delta(threatID string, newScore float64) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	window := h.entries[threatID]
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, e := range window {
		sum += e.Score
	}
	return newScore - sum/float64(len(window))
}

// #endregion delta

// #region append

// Append records an entry for the threat, evicting the oldest beyond the cap.
// Entries are kept strictly time-ordered: a timestamp not after the last one
// is bumped just past it.
func (h *HistoryStore) Append(threatID string, e HistoryEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	window := h.entries[threatID]
	if n := len(window); n > 0 && !e.Timestamp.After(window[n-1].Timestamp) {
		e.Timestamp = window[n-1].Timestamp.Add(time.Nanosecond)
	}
	window = append(window, e)
	if len(window) > h.cap {
		window = window[len(window)-h.cap:]
	}
	h.entries[threatID] = window
}

// #endregion append

// #region read

// Entries returns a copy of the threat's history, oldest first.
func (h *HistoryStore) Entries(threatID string) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	window := h.entries[threatID]
	out := make([]HistoryEntry, len(window))
	copy(out, window)
	return out
}

// #endregion read
