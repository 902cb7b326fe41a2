package model

// #region imports
import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// #endregion imports

// #region entity

// EntityType buckets extracted entities.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityLocation     EntityType = "location"
)

// Entity is a typed named entity extracted from a document.
type Entity struct {
	Name       string
	Type       EntityType
	Confidence float64
}

// #endregion entity

// #region source

// Source describes where a document came from.
type Source struct {
	Name        string
	Type        string  // e.g. "sigint_intercept", "humint_report", "open_source"
	Reliability float64 // 0-1
}

// #endregion source

// #region document

// Document is an ingested intelligence document. Immutable once hashed;
// duplicates (same content hash) are rejected upstream and never reprocessed.
type Document struct {
	ContentHash string
	Text        string
	Entities    []Entity
	Source      Source
	CreatedAt   time.Time
	Metadata    map[string]string
}

// HashContent derives the stable document identity from normalized content.
func HashContent(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// #endregion document

// #region severity

// Severity maps a threat score to a fixed band.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityForScore maps score bands: <0.4 low, <0.6 medium, <0.8 high, else critical.
func SeverityForScore(score float64) Severity {
	switch {
	case score < 0.4:
		return SeverityLow
	case score < 0.6:
		return SeverityMedium
	case score < 0.8:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// #endregion severity

// #region threat

// ThreatStatus is the lifecycle state of a threat.
type ThreatStatus string

const (
	ThreatActive   ThreatStatus = "active"
	ThreatResolved ThreatStatus = "resolved"
	ThreatArchived ThreatStatus = "archived"
)

// Threat is a scored risk derived from one or more documents.
// Never deleted, only status-transitioned to resolved/archived.
type Threat struct {
	ID               string
	Score            float64 // 0-1
	BaseScore        float64 // content-derived score before cluster corroboration
	Severity         Severity
	Status           ThreatStatus
	ContentHash      string // originating document
	Type             string // keyword-bearing type, e.g. "network_intrusion"
	Description      string
	DeltaScore       float64
	ClusterID        string
	ClusterSize      int
	LastReevaluation time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Metadata         map[string]string
}

// #endregion threat

// #region prescription

// Priority is the urgency band of a prescription.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// priorityRank orders priorities so escalation can be compared.
var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// Rank returns the numeric order of a priority (low=0 .. critical=3).
func (p Priority) Rank() int { return priorityRank[p] }

// ActionType distinguishes operator actions from automated ones.
type ActionType string

const (
	ActionManual    ActionType = "manual"
	ActionAutomatic ActionType = "automatic"
)

// Action is one step in a prescription's action list.
type Action struct {
	ID          string
	Description string
	Type        ActionType
	Completed   bool
}

// Category classifies a prescription's intent.
type Category string

const (
	CategoryResponse      Category = "response"
	CategoryInvestigation Category = "investigation"
	CategorySecurity      Category = "security"
	CategoryMitigation    Category = "mitigation"
)

// Prescription is a prioritized action list attached to a threat.
// Updated in place on cluster growth, never duplicated for the same threat.
type Prescription struct {
	ID            string
	ThreatID      string
	Priority      Priority
	Category      Category
	Actions       []Action
	EstimatedTime string
	Resources     []string
	Confidence    float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// #endregion prescription

// #region collection-request

// Urgency grades a collection request. Labels follow the doctrine scale.
type Urgency string

const (
	UrgencyFaible   Urgency = "Faible"
	UrgencyMoyenne  Urgency = "Moyenne"
	UrgencyHaute    Urgency = "Haute"
	UrgencyCritique Urgency = "Critique"
)

// UrgencyForConfidence maps confidence bands: ≥0.8 Critique, ≥0.6 Haute, ≥0.4 Moyenne, else Faible.
func UrgencyForConfidence(confidence float64) Urgency {
	switch {
	case confidence >= 0.8:
		return UrgencyCritique
	case confidence >= 0.6:
		return UrgencyHaute
	case confidence >= 0.4:
		return UrgencyMoyenne
	default:
		return UrgencyFaible
	}
}

// RequestStatus is the lifecycle state of a collection request.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestCompleted RequestStatus = "completed"
	RequestExpired   RequestStatus = "expired"
)

// CollectionRequest asks for targeted information gathering on a zone.
type CollectionRequest struct {
	ID           string
	Zone         string
	Objective    string
	Urgency      Urgency
	Discipline   string // SIGINT | HUMINT | SIGINT/HUMINT
	ScenarioID   string
	ThreatID     string
	PredictionID string
	Status       RequestStatus
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Open reports whether the request still blocks a new one for its keys.
func (r CollectionRequest) Open(now time.Time) bool {
	return r.Status == RequestPending && now.Before(r.ExpiresAt)
}

// #endregion collection-request
