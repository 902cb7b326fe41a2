package audit

// #region imports
import (
	"fmt"

	"github.com/ebrodeur/recoupement/internal/model"
	"github.com/ebrodeur/recoupement/internal/threat"
)

// #endregion imports

// #region types

// Check is one named invariant verification.
type Check struct {
	Name  string
	Value float64
	Pass  bool
}

// Result reports a post-reevaluation audit run.
type Result struct {
	Passed      bool
	Checks      []Check
	FailReasons []string
}

// #endregion types

// #region harness

// Harness runs lightweight post-reevaluation validation: score bounds,
// severity-band consistency, and history ordering. Read-only; it never
// mutates pipeline state.
type Harness struct {
	historyCap int
}

// NewHarness creates a harness expecting histories capped at historyCap.
func NewHarness(historyCap int) *Harness {
	if historyCap <= 0 {
		historyCap = 10
	}
	return &Harness{historyCap: historyCap}
}

// Run validates every touched threat against the engine invariants.
func (h *Harness) Run(threats []model.Threat, history *threat.HistoryStore) Result {
	res := Result{Passed: true}

	fail := func(c Check, reason string) {
		c.Pass = false
		res.Checks = append(res.Checks, c)
		res.Passed = false
		res.FailReasons = append(res.FailReasons, reason)
	}
	pass := func(c Check) {
		c.Pass = true
		res.Checks = append(res.Checks, c)
	}

	for _, t := range threats {
		// 1. Score bounds
		c := Check{Name: "score_bounds:" + t.ID, Value: t.Score}
		if t.Score < 0 || t.Score > 1 {
			fail(c, fmt.Sprintf("threat %s score %.4f outside [0,1]", t.ID, t.Score))
		} else {
			pass(c)
		}

		// 2. Severity matches the score band
		c = Check{Name: "severity_band:" + t.ID, Value: t.Score}
		if model.SeverityForScore(t.Score) != t.Severity {
			fail(c, fmt.Sprintf("threat %s severity %s does not match score %.4f", t.ID, t.Severity, t.Score))
		} else {
			pass(c)
		}

		// 3. History strictly time-ordered and capped
		if history != nil {
			entries := history.Entries(t.ID)
			c = Check{Name: "history:" + t.ID, Value: float64(len(entries))}
			ok := len(entries) <= h.historyCap
			for i := 1; i < len(entries); i++ {
				if !entries[i].Timestamp.After(entries[i-1].Timestamp) {
					ok = false
					break
				}
			}
			if !ok {
				fail(c, fmt.Sprintf("threat %s history violates ordering or cap %d", t.ID, h.historyCap))
			} else {
				pass(c)
			}
		}
	}

	return res
}

// #endregion harness
