package collection

// #region imports
import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ebrodeur/recoupement/internal/metrics"
	"github.com/ebrodeur/recoupement/internal/model"
)

// #endregion imports

// #region types

// Trigger carries the signals that may warrant a collection request.
type Trigger struct {
	ScenarioID   string
	ThreatID     string
	PredictionID string
	ThreatType   string
	Zone         string
	Objective    string
	Confidence   float64
}

// Config controls the request guard and lifetime.
type Config struct {
	MinConfidence float64
	RequestTTL    time.Duration
}

// DefaultConfig returns the standard guard parameters.
func DefaultConfig() Config {
	return Config{
		MinConfidence: 0.4,
		RequestTTL:    7 * 24 * time.Hour,
	}
}

// #endregion types

// #region scheduler

// Scheduler decides whether a trigger warrants a new collection request,
// enforcing at most one open request per scenario id and per threat id, with
// automatic expiry. Expired requests are swept lazily before any read or
// write that depends on the "no open request" invariant.
type Scheduler struct {
	config Config
	clock  func() time.Time

	mu         sync.Mutex
	requests   map[string]model.CollectionRequest
	byScenario map[string]string // scenario id → open request id
	byThreat   map[string]string // threat id → open request id

	lockMu   sync.Mutex
	keyLocks map[string]*sync.Mutex
}

// NewScheduler creates an empty scheduler.
func NewScheduler(config Config) *Scheduler {
	if config.RequestTTL <= 0 {
		config.RequestTTL = 7 * 24 * time.Hour
	}
	return &Scheduler{
		config:     config,
		clock:      time.Now,
		requests:   make(map[string]model.CollectionRequest),
		byScenario: make(map[string]string),
		byThreat:   make(map[string]string),
		keyLocks:   make(map[string]*sync.Mutex),
	}
}

// #endregion scheduler

// #region generate

// Generate runs the guard and, if it passes, creates the request. The guard
// check and the creation form one critical section per scenario/threat key:
// two concurrent triggers for the same key cannot both pass the "no existing
// request" check. A *model.GuardRejection error is a deliberate no-op, not a
// failure.
func (s *Scheduler) Generate(trigger Trigger) (model.CollectionRequest, error) {
	unlock := s.lockKeys(trigger.ScenarioID, trigger.ThreatID)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()

	// --- Hard veto pass ---
	if trigger.Confidence < s.config.MinConfidence {
		metrics.GuardRejections.WithLabelValues("low_confidence").Inc()
		return model.CollectionRequest{}, &model.GuardRejection{
			Key:    trigger.ThreatID,
			Reason: fmt.Sprintf("confidence %.2f below floor %.2f", trigger.Confidence, s.config.MinConfidence),
		}
	}
	if trigger.ScenarioID != "" {
		if id, ok := s.byScenario[trigger.ScenarioID]; ok {
			metrics.GuardRejections.WithLabelValues("open_scenario_request").Inc()
			return model.CollectionRequest{}, &model.GuardRejection{
				Key:    trigger.ScenarioID,
				Reason: fmt.Sprintf("open request %s already covers scenario", id),
			}
		}
	}
	if trigger.ThreatID != "" {
		if id, ok := s.byThreat[trigger.ThreatID]; ok {
			metrics.GuardRejections.WithLabelValues("open_threat_request").Inc()
			return model.CollectionRequest{}, &model.GuardRejection{
				Key:    trigger.ThreatID,
				Reason: fmt.Sprintf("open request %s already covers threat", id),
			}
		}
	}

	now := s.clock().UTC()
	req := model.CollectionRequest{
		ID:           uuid.New().String(),
		Zone:         trigger.Zone,
		Objective:    objective(trigger),
		Urgency:      model.UrgencyForConfidence(trigger.Confidence),
		Discipline:   discipline(trigger.ThreatType),
		ScenarioID:   trigger.ScenarioID,
		ThreatID:     trigger.ThreatID,
		PredictionID: trigger.PredictionID,
		Status:       model.RequestPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.config.RequestTTL),
	}

	s.requests[req.ID] = req
	if req.ScenarioID != "" {
		s.byScenario[req.ScenarioID] = req.ID
	}
	if req.ThreatID != "" {
		s.byThreat[req.ThreatID] = req.ID
	}

	log.Printf("[COLL] request %s: zone=%s urgency=%s discipline=%s expires=%s",
		req.ID, req.Zone, req.Urgency, req.Discipline, req.ExpiresAt.Format(time.RFC3339))
	return req, nil
}

// #endregion generate

// #region reads

// GetAll returns all open requests after the expiry sweep, oldest first.
func (s *Scheduler) GetAll() []model.CollectionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	out := make([]model.CollectionRequest, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// GetByZone returns open requests for a zone after the expiry sweep.
func (s *Scheduler) GetByZone(zone string) []model.CollectionRequest {
	var out []model.CollectionRequest
	for _, r := range s.GetAll() {
		if r.Zone == zone {
			out = append(out, r)
		}
	}
	return out
}

// #endregion reads

// #region complete

// Complete marks a request fulfilled and frees its scenario/threat slots.
func (s *Scheduler) Complete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	req, ok := s.requests[id]
	if !ok {
		return &model.NotFoundError{Kind: "collection request", ID: id}
	}
	req.Status = model.RequestCompleted
	delete(s.requests, id)
	s.releaseLocked(req)
	return nil
}

// #endregion complete

// #region sweep

// sweepLocked removes expired requests and frees their key slots.
// Callers must hold s.mu.
func (s *Scheduler) sweepLocked() {
	now := s.clock().UTC()
	for id, req := range s.requests {
		if now.Before(req.ExpiresAt) {
			continue
		}
		delete(s.requests, id)
		s.releaseLocked(req)
		log.Printf("[COLL] request %s expired (zone=%s)", id, req.Zone)
	}
}

func (s *Scheduler) releaseLocked(req model.CollectionRequest) {
	if req.ScenarioID != "" && s.byScenario[req.ScenarioID] == req.ID {
		delete(s.byScenario, req.ScenarioID)
	}
	if req.ThreatID != "" && s.byThreat[req.ThreatID] == req.ID {
		delete(s.byThreat, req.ThreatID)
	}
}

// #endregion sweep

// #region key-locks

// lockKeys serializes check-then-create per scenario/threat key. Keys are
// acquired in sorted order so concurrent triggers over overlapping keys
// cannot deadlock.
func (s *Scheduler) lockKeys(keys ...string) func() {
	uniq := make(map[string]bool)
	var sorted []string
	for _, k := range keys {
		if k != "" && !uniq[k] {
			uniq[k] = true
			sorted = append(sorted, k)
		}
	}
	sort.Strings(sorted)

	locked := make([]*sync.Mutex, 0, len(sorted))
	for _, k := range sorted {
		s.lockMu.Lock()
		m, ok := s.keyLocks[k]
		if !ok {
			m = &sync.Mutex{}
			s.keyLocks[k] = m
		}
		s.lockMu.Unlock()
		m.Lock()
		locked = append(locked, m)
	}

	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].Unlock()
		}
	}
}

// #endregion key-locks

// #region derivations

// discipline maps threat-type keywords to the requested collection discipline.
func discipline(threatType string) string {
	lower := strings.ToLower(threatType)
	for _, kw := range []string{"cyber", "network", "malware", "access"} {
		if strings.Contains(lower, kw) {
			return "SIGINT"
		}
	}
	for _, kw := range []string{"armed", "terror", "militant"} {
		if strings.Contains(lower, kw) {
			return "HUMINT"
		}
	}
	return "SIGINT/HUMINT"
}

func objective(trigger Trigger) string {
	if trigger.Objective != "" {
		return trigger.Objective
	}
	return fmt.Sprintf("Corroborate low-credibility reporting on %s activity in %s",
		strings.ReplaceAll(trigger.ThreatType, "_", " "), trigger.Zone)
}

// #endregion derivations
