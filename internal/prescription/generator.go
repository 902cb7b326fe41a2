package prescription

// #region imports
import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ebrodeur/recoupement/internal/model"
	"github.com/ebrodeur/recoupement/internal/signals"
)

// #endregion imports

// #region thresholds

const (
	escalateDelta   = 0.2  // delta above this escalates priority one band
	actionDelta     = 0.1  // delta above this (with centrality) adds escalation actions
	weakeningDelta  = -0.1 // delta below this marks a weakening threat
	centralityFloor = 0.6  // centrality needed for the escalation action set
)

// #endregion thresholds

// #region generator

// Generator turns a (re)scored threat plus delta/centrality/credibility
// signals into a prioritized action list. Pure: same inputs, same output
// (ids aside).
type Generator struct{}

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// #endregion generator

// #region generate

// Generate builds a fresh prescription for a threat.
func (g *Generator) Generate(t model.Threat, sig signals.Signals) model.Prescription {
	priority := priorityFor(t.Score, t.DeltaScore)
	category := categoryFor(t)
	now := time.Now().UTC()

	return model.Prescription{
		ID:            uuid.New().String(),
		ThreatID:      t.ID,
		Priority:      priority,
		Category:      category,
		Actions:       actionsFor(t, sig),
		EstimatedTime: estimatedTime(priority),
		Resources:     resourcesFor(category),
		Confidence:    sig.Credibility,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Merge folds a regenerated prescription into the existing one for the same
// threat: new actions are appended (matched by action id, never duplicated)
// and priority only ever escalates. Returns the merged prescription and
// whether anything changed.
func (g *Generator) Merge(existing, generated model.Prescription) (model.Prescription, bool) {
	changed := false

	seen := make(map[string]bool, len(existing.Actions))
	for _, a := range existing.Actions {
		seen[a.ID] = true
	}
	for _, a := range generated.Actions {
		if seen[a.ID] {
			continue
		}
		existing.Actions = append(existing.Actions, a)
		seen[a.ID] = true
		changed = true
	}

	if generated.Priority.Rank() > existing.Priority.Rank() {
		existing.Priority = generated.Priority
		existing.Category = generated.Category
		existing.EstimatedTime = generated.EstimatedTime
		existing.Resources = generated.Resources
		changed = true
	}

	if generated.Confidence > existing.Confidence {
		existing.Confidence = generated.Confidence
		changed = true
	}

	if changed {
		existing.UpdatedAt = time.Now().UTC()
	}
	return existing, changed
}

// #endregion generate

// #region priority

// priorityFor takes the base band from the score, then escalates one band
// when the delta exceeds the escalation threshold.
func priorityFor(score, delta float64) model.Priority {
	var p model.Priority
	switch {
	case score < 0.4:
		p = model.PriorityLow
	case score < 0.6:
		p = model.PriorityMedium
	case score < 0.8:
		p = model.PriorityHigh
	default:
		p = model.PriorityCritical
	}
	if delta > escalateDelta {
		p = escalate(p)
	}
	return p
}

func escalate(p model.Priority) model.Priority {
	switch p {
	case model.PriorityLow:
		return model.PriorityMedium
	case model.PriorityMedium:
		return model.PriorityHigh
	default:
		return model.PriorityCritical
	}
}

// #endregion priority

// #region category

func categoryFor(t model.Threat) model.Category {
	if t.Score >= 0.8 || t.DeltaScore > escalateDelta {
		return model.CategoryResponse
	}
	if t.DeltaScore < weakeningDelta {
		// A weakening threat needs verification before de-prioritizing.
		return model.CategoryInvestigation
	}
	if isTechnical(t.Type) {
		return model.CategorySecurity
	}
	return model.CategoryMitigation
}

func isTechnical(threatType string) bool {
	for _, kw := range []string{"network", "malware", "access", "intrusion"} {
		if strings.Contains(threatType, kw) {
			return true
		}
	}
	return false
}

// #endregion category

// #region actions

// actionsFor builds the deterministic rule-driven action list. Actions carry
// stable semantic ids so repeat generation merges instead of duplicating.
func actionsFor(t model.Threat, sig signals.Signals) []model.Action {
	var actions []model.Action
	add := func(id, description string, typ model.ActionType) {
		actions = append(actions, model.Action{
			ID:          id,
			Description: description,
			Type:        typ,
			Completed:   false,
		})
	}

	switch {
	case strings.Contains(t.Type, "network"):
		add("isolate-affected-segments", "Isolate affected network segments pending forensic review", model.ActionAutomatic)
		add("capture-traffic", "Capture and preserve traffic from implicated hosts", model.ActionAutomatic)
		add("review-ingress-logs", "Review ingress logs for lateral movement indicators", model.ActionManual)
	case strings.Contains(t.Type, "malware"):
		add("quarantine-samples", "Quarantine identified samples and block known hashes", model.ActionAutomatic)
		add("trace-delivery-vector", "Trace the delivery vector across correlated documents", model.ActionManual)
	case strings.Contains(t.Type, "access"):
		add("revoke-credentials", "Revoke and rotate implicated credentials", model.ActionAutomatic)
		add("audit-access-trail", "Audit the access trail for the implicated accounts", model.ActionManual)
	case strings.Contains(t.Type, "armed"):
		add("alert-field-units", "Alert field units covering the identified zone", model.ActionManual)
		add("consolidate-humint", "Consolidate HUMINT reporting on the identified group", model.ActionManual)
	default:
		add("monitor-situation", "Maintain watch on correlated reporting for this threat", model.ActionAutomatic)
	}

	if t.DeltaScore > actionDelta && sig.EntityCentrality > centralityFloor {
		add("sigint-escalation", "Escalate to SIGINT collection on the dominant entities", model.ActionManual)
		add("interagency-crosscheck", "Request inter-agency cross-check of corroborating reporting", model.ActionManual)
	}
	if t.DeltaScore < weakeningDelta {
		add("deweight-threat", "De-weight the threat pending confirmation of the downward trend", model.ActionAutomatic)
		add("confirm-weakening", "Confirm the weakening signal against independent sources", model.ActionManual)
	}

	return actions
}

// #endregion actions

// #region estimates

func estimatedTime(p model.Priority) string {
	switch p {
	case model.PriorityCritical:
		return "immediate"
	case model.PriorityHigh:
		return "24h"
	case model.PriorityMedium:
		return "72h"
	default:
		return "1 week"
	}
}

func resourcesFor(c model.Category) []string {
	switch c {
	case model.CategoryResponse:
		return []string{"incident response team", "duty officer"}
	case model.CategoryInvestigation:
		return []string{"analyst cell"}
	case model.CategorySecurity:
		return []string{"security operations", "network engineering"}
	default:
		return []string{"watch floor"}
	}
}

// #endregion estimates
