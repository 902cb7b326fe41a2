package collection

import (
	"sync"
	"testing"
	"time"

	"github.com/ebrodeur/recoupement/internal/model"
)

// #region helpers

func makeTrigger(threatID string, confidence float64) Trigger {
	return Trigger{
		ScenarioID: "scenario-" + threatID,
		ThreatID:   threatID,
		ThreatType: "network_intrusion",
		Zone:       "sector-north",
		Confidence: confidence,
	}
}

// fixedClock pins the scheduler to a controllable time.
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestScheduler() (*Scheduler, *fixedClock) {
	clock := &fixedClock{now: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)}
	s := NewScheduler(DefaultConfig())
	s.clock = clock.Now
	return s, clock
}

// #endregion helpers

// #region guard-tests

func TestGenerateRejectsLowConfidence(t *testing.T) {
	s, _ := newTestScheduler()

	_, err := s.Generate(makeTrigger("t1", 0.35))
	if !model.IsGuardRejection(err) {
		t.Fatalf("expected guard rejection, got %v", err)
	}
	if len(s.GetAll()) != 0 {
		t.Fatal("rejected trigger must not create a request")
	}
}

func TestGenerateRejectsDuplicateThreat(t *testing.T) {
	s, _ := newTestScheduler()

	first, err := s.Generate(makeTrigger("t1", 0.7))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected request id")
	}

	_, err = s.Generate(makeTrigger("t1", 0.9))
	if !model.IsGuardRejection(err) {
		t.Fatalf("expected guard rejection for open threat request, got %v", err)
	}
	if got := len(s.GetAll()); got != 1 {
		t.Fatalf("expected one open request, got %d", got)
	}
}

func TestGenerateRejectsDuplicateScenario(t *testing.T) {
	s, _ := newTestScheduler()

	trig := makeTrigger("t1", 0.7)
	if _, err := s.Generate(trig); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Different threat, same scenario.
	other := trig
	other.ThreatID = "t2"
	if _, err := s.Generate(other); !model.IsGuardRejection(err) {
		t.Fatalf("expected guard rejection for open scenario request, got %v", err)
	}
}

// #endregion guard-tests

// #region request-tests

func TestGenerateRequestFields(t *testing.T) {
	s, clock := newTestScheduler()

	req, err := s.Generate(makeTrigger("t1", 0.85))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if req.Urgency != model.UrgencyCritique {
		t.Fatalf("expected Critique urgency, got %s", req.Urgency)
	}
	if req.Discipline != "SIGINT" {
		t.Fatalf("expected SIGINT for network threat, got %s", req.Discipline)
	}
	if req.Zone != "sector-north" {
		t.Fatalf("expected zone kept, got %s", req.Zone)
	}
	if req.Status != model.RequestPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	if req.Objective == "" {
		t.Fatal("expected derived objective")
	}
	if want := clock.Now().UTC().Add(7 * 24 * time.Hour); !req.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, req.ExpiresAt)
	}
}

func TestUrgencyBands(t *testing.T) {
	cases := []struct {
		confidence float64
		want       model.Urgency
	}{
		{0.45, model.UrgencyMoyenne},
		{0.65, model.UrgencyHaute},
		{0.85, model.UrgencyCritique},
	}
	for i, tc := range cases {
		s, _ := newTestScheduler()
		req, err := s.Generate(makeTrigger("t1", tc.confidence))
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if req.Urgency != tc.want {
			t.Fatalf("confidence %f: expected %s, got %s", tc.confidence, tc.want, req.Urgency)
		}
	}
}

func TestDisciplineMapping(t *testing.T) {
	cases := []struct {
		threatType string
		want       string
	}{
		{"network_intrusion", "SIGINT"},
		{"malware_campaign", "SIGINT"},
		{"armed_group_activity", "HUMINT"},
		{"smuggling_operation", "SIGINT/HUMINT"},
	}
	for _, tc := range cases {
		if got := discipline(tc.threatType); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.threatType, tc.want, got)
		}
	}
}

func TestGetByZone(t *testing.T) {
	s, _ := newTestScheduler()

	north := makeTrigger("t1", 0.7)
	south := makeTrigger("t2", 0.7)
	south.Zone = "sector-south"
	if _, err := s.Generate(north); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := s.Generate(south); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got := s.GetByZone("sector-south"); len(got) != 1 || got[0].ThreatID != "t2" {
		t.Fatalf("unexpected zone result: %+v", got)
	}
}

// #endregion request-tests

// #region expiry-tests

func TestExpirySweepFreesSlots(t *testing.T) {
	s, clock := newTestScheduler()

	if _, err := s.Generate(makeTrigger("t1", 0.7)); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Still open before the TTL elapses.
	clock.Advance(6 * 24 * time.Hour)
	if got := len(s.GetAll()); got != 1 {
		t.Fatalf("expected request still open at day 6, got %d", got)
	}
	if _, err := s.Generate(makeTrigger("t1", 0.7)); !model.IsGuardRejection(err) {
		t.Fatalf("expected rejection while the slot is held, got %v", err)
	}

	// Past the TTL the sweep removes it and frees the slot.
	clock.Advance(2 * 24 * time.Hour)
	if got := len(s.GetAll()); got != 0 {
		t.Fatalf("expected request expired at day 8, got %d", got)
	}
	if _, err := s.Generate(makeTrigger("t1", 0.7)); err != nil {
		t.Fatalf("expected slot freed after expiry: %v", err)
	}
}

func TestCompleteFreesSlots(t *testing.T) {
	s, _ := newTestScheduler()

	req, err := s.Generate(makeTrigger("t1", 0.7))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := s.Complete(req.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(s.GetAll()) != 0 {
		t.Fatal("completed request still listed")
	}
	if _, err := s.Generate(makeTrigger("t1", 0.7)); err != nil {
		t.Fatalf("expected slot freed after completion: %v", err)
	}
}

func TestCompleteUnknownRequest(t *testing.T) {
	s, _ := newTestScheduler()
	if err := s.Complete("missing"); err == nil {
		t.Fatal("expected error for unknown request")
	}
}

// #endregion expiry-tests

// #region concurrency-tests

func TestConcurrentTriggersCreateOneRequest(t *testing.T) {
	s, _ := newTestScheduler()

	const workers = 16
	var wg sync.WaitGroup
	created := make(chan model.CollectionRequest, workers)
	rejected := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := s.Generate(makeTrigger("t1", 0.7))
			if err != nil {
				rejected <- err
				return
			}
			created <- req
		}()
	}
	wg.Wait()
	close(created)
	close(rejected)

	if got := len(created); got != 1 {
		t.Fatalf("expected exactly one request, got %d", got)
	}
	for err := range rejected {
		if !model.IsGuardRejection(err) {
			t.Fatalf("expected guard rejections only, got %v", err)
		}
	}
}

// #endregion concurrency-tests
