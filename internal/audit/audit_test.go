package audit

import (
	"testing"
	"time"

	"github.com/ebrodeur/recoupement/internal/model"
	"github.com/ebrodeur/recoupement/internal/threat"
)

func validThreat(id string, score float64) model.Threat {
	return model.Threat{
		ID:       id,
		Score:    score,
		Severity: model.SeverityForScore(score),
		Status:   model.ThreatActive,
	}
}

func TestRunPassesConsistentThreats(t *testing.T) {
	h := NewHarness(10)
	history := threat.NewHistoryStore(10)
	history.Append("t1", threat.HistoryEntry{Score: 0.5})
	history.Append("t1", threat.HistoryEntry{Score: 0.6})

	res := h.Run([]model.Threat{validThreat("t1", 0.6), validThreat("t2", 0.3)}, history)
	if !res.Passed {
		t.Fatalf("expected pass, got failures: %v", res.FailReasons)
	}
	if len(res.Checks) == 0 {
		t.Fatal("expected recorded checks")
	}
}

func TestRunFailsOnScoreOutOfBounds(t *testing.T) {
	h := NewHarness(10)
	bad := validThreat("t1", 1.2)
	bad.Severity = model.SeverityCritical

	res := h.Run([]model.Threat{bad}, nil)
	if res.Passed {
		t.Fatal("expected failure for score above 1")
	}
	if len(res.FailReasons) == 0 {
		t.Fatal("expected a fail reason")
	}
}

func TestRunFailsOnSeverityMismatch(t *testing.T) {
	h := NewHarness(10)
	bad := validThreat("t1", 0.9)
	bad.Severity = model.SeverityLow

	res := h.Run([]model.Threat{bad}, nil)
	if res.Passed {
		t.Fatal("expected failure for severity outside its score band")
	}
}

func TestRunFailsOnHistoryOverCap(t *testing.T) {
	h := NewHarness(2)
	history := threat.NewHistoryStore(10) // store allows more than the audited cap
	for i := 0; i < 4; i++ {
		history.Append("t1", threat.HistoryEntry{Score: 0.5, Timestamp: time.Now().UTC()})
	}

	res := h.Run([]model.Threat{validThreat("t1", 0.5)}, history)
	if res.Passed {
		t.Fatal("expected failure for history beyond cap")
	}
}

func TestRunEmptyInput(t *testing.T) {
	h := NewHarness(10)
	if res := h.Run(nil, nil); !res.Passed {
		t.Fatal("expected trivial pass for no threats")
	}
}
