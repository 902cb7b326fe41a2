package pipeline

// #region imports
import (
	"time"

	"github.com/ebrodeur/recoupement/internal/audit"
	"github.com/ebrodeur/recoupement/internal/cluster"
	"github.com/ebrodeur/recoupement/internal/model"
)

// #endregion imports

// #region cache-contract

// Cache is the shared-cache contract the orchestrator consumes.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	InvalidatePattern(pattern string) int
}

// #endregion cache-contract

// #region result

// ThreatError reports one per-threat failure inside a batch. Sibling threats
// are unaffected.
type ThreatError struct {
	ThreatID     string
	DocumentHash string
	Err          string
}

// Result is the structured outcome of one reevaluation call.
type Result struct {
	DocumentHash string
	ClusterID    string
	ClusterSize  int
	Isolated     bool
	Analysis     *cluster.Analysis

	ThreatsCreated []model.Threat
	ThreatsUpdated []model.Threat
	ThreatErrors   []ThreatError

	PrescriptionsCreated []model.Prescription
	PrescriptionsUpdated []model.Prescription
	PrescriptionErrors   []ThreatError

	CollectionRequests []model.CollectionRequest

	Audit audit.Result
}

// #endregion result
