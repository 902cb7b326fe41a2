package threat

// #region imports
import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ebrodeur/recoupement/internal/feature"
	"github.com/ebrodeur/recoupement/internal/model"
)

// #endregion imports

// #region classifier-contract

// ClassifySignal is the anomaly signal returned by the external classification
// sidecar.
type ClassifySignal struct {
	AnomalyScore float64 // 0-1
	Label        string
}

// Classifier is the optional external classification collaborator. A nil
// Classifier (or any error) degrades to no boost.
type Classifier interface {
	Classify(ctx context.Context, text string, entities []string) (ClassifySignal, error)
}

// #endregion classifier-contract

// #region config

// Config controls cluster-driven rescoring.
type Config struct {
	ClusterBoostPerDoc float64       // score boost per corroborating document
	ClusterFactorCap   float64       // cap on the cluster factor
	ClassifierBoostMax float64       // max boost contributed by the classifier signal
	ClassifierTimeout  time.Duration // bound on one classifier call; 0 means no bound
}

// DefaultConfig returns the standard rescoring parameters.
func DefaultConfig() Config {
	return Config{
		ClusterBoostPerDoc: 0.1,
		ClusterFactorCap:   1.5,
		ClassifierBoostMax: 0.2,
		ClassifierTimeout:  5 * time.Second,
	}
}

// #endregion config

// #region severity-keywords

// severityKeywords weight terms that raise the content-derived base score.
var severityKeywords = map[string]float64{
	"attack":       1.0,
	"explosive":    1.0,
	"bomb":         1.0,
	"ransomware":   0.9,
	"exfiltration": 0.9,
	"intrusion":    0.8,
	"malware":      0.8,
	"armed":        0.8,
	"weapons":      0.8,
	"breach":       0.7,
	"phishing":     0.6,
	"smuggling":    0.6,
	"surveillance": 0.5,
	"suspicious":   0.4,
	"unusual":      0.3,
}

// typeKeywords maps threat types to their trigger terms, checked in order.
var typeOrder = []string{
	"network_intrusion",
	"malware_campaign",
	"unauthorized_access",
	"armed_group_activity",
	"smuggling_operation",
}

var typeKeywords = map[string][]string{
	"network_intrusion":    {"network", "intrusion", "server", "exfiltration", "cyber"},
	"malware_campaign":     {"malware", "ransomware", "phishing", "botnet", "backdoor"},
	"unauthorized_access":  {"access", "credentials", "breach", "login"},
	"armed_group_activity": {"armed", "weapons", "militant", "terrorist", "explosive"},
	"smuggling_operation":  {"smuggling", "trafficking", "cargo", "shipment"},
}

// #endregion severity-keywords

// #region rescorer

// Rescorer owns the per-threat scoring state machine: creation from isolated
// documents and cluster-driven rescoring of active threats.
type Rescorer struct {
	extractor  *feature.Extractor
	history    *HistoryStore
	classifier Classifier
	config     Config
}

// NewRescorer creates a Rescorer. classifier may be nil.
func NewRescorer(extractor *feature.Extractor, history *HistoryStore, classifier Classifier, config Config) *Rescorer {
	return &Rescorer{
		extractor:  extractor,
		history:    history,
		classifier: classifier,
		config:     config,
	}
}

// History exposes the injected history store.
func (r *Rescorer) History() *HistoryStore { return r.history }

// #endregion rescorer

// #region new-threat

// NewFromDocument takes the none→active transition: a document with no threat
// mapped to its content hash becomes a new active threat. The base score is a
// deterministic feature-weighted sum, optionally boosted by the classifier.
func (r *Rescorer) NewFromDocument(ctx context.Context, doc model.Document) (model.Threat, error) {
	if doc.ContentHash == "" {
		return model.Threat{}, &model.ValidationError{Field: "content_hash", Reason: "missing"}
	}
	if strings.TrimSpace(doc.Text) == "" {
		return model.Threat{}, &model.ValidationError{Field: "text", Reason: "empty"}
	}

	feats := r.extractor.Extract(doc)
	base := baseScore(feats, doc)
	threatType := inferType(feats)

	label := ""
	if r.classifier != nil {
		cctx := ctx
		if r.config.ClassifierTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, r.config.ClassifierTimeout)
			defer cancel()
		}
		signal, err := r.classifier.Classify(cctx, doc.Text, entityNames(doc))
		if err != nil {
			log.Printf("[RESC] classifier unavailable, no boost: %v", err)
		} else {
			base = clamp01(base + r.config.ClassifierBoostMax*clamp01(signal.AnomalyScore))
			label = signal.Label
		}
	}

	now := time.Now().UTC()
	t := model.Threat{
		ID:               uuid.New().String(),
		Score:            base,
		BaseScore:        base,
		Severity:         model.SeverityForScore(base),
		Status:           model.ThreatActive,
		ContentHash:      doc.ContentHash,
		Type:             threatType,
		Description:      describeThreat(threatType, doc),
		LastReevaluation: now,
		CreatedAt:        now,
		UpdatedAt:        now,
		Metadata:         map[string]string{},
	}
	if label != "" {
		t.Metadata["classifier_label"] = label
	}
	// Zone rides along so collection requests can target it later.
	if zone := doc.Metadata["zone"]; zone != "" {
		t.Metadata["zone"] = zone
	}
	return t, nil
}

// #endregion new-threat

// #region rescore

// RescoreResult reports one rescoring decision.
type RescoreResult struct {
	Threat   model.Threat
	Decision string // "rescored" | "skipped"
	Reason   string
	Factor   float64
	Delta    float64
}

// Rescore takes the active→active transition when a threat's cluster gains a
// member: score = min(base × clusterFactor, 1), clusterFactor =
// min(1 + boost×(size−1), cap). Non-active threats are skipped, never mutated.
// Malformed cluster context leaves the prior threat untouched and reports the
// failure for this threat only.
func (r *Rescorer) Rescore(t model.Threat, clusterID string, clusterSize int) (RescoreResult, error) {
	if t.ContentHash == "" {
		return RescoreResult{}, &model.ValidationError{Field: "content_hash", Reason: "threat has no originating document"}
	}
	if clusterID == "" || clusterSize < 1 {
		return RescoreResult{}, &model.ValidationError{Field: "cluster", Reason: fmt.Sprintf("malformed cluster context (id=%q size=%d)", clusterID, clusterSize)}
	}

	if t.Status != model.ThreatActive {
		return RescoreResult{
			Threat:   t,
			Decision: "skipped",
			Reason:   fmt.Sprintf("threat status %s, operator-owned", t.Status),
		}, nil
	}

	factor := 1 + r.config.ClusterBoostPerDoc*float64(clusterSize-1)
	if factor > r.config.ClusterFactorCap {
		factor = r.config.ClusterFactorCap
	}

	base := t.BaseScore
	if base == 0 {
		base = t.Score // legacy threats without a recorded base
	}
	newScore := base * factor
	if newScore > 1 {
		newScore = 1
	}

	delta := r.history.Delta(t.ID, newScore)

	now := time.Now().UTC()
	t.Score = newScore
	t.Severity = model.SeverityForScore(newScore)
	t.DeltaScore = delta
	t.ClusterID = clusterID
	t.ClusterSize = clusterSize
	t.LastReevaluation = now
	t.UpdatedAt = now
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}
	t.Metadata["cluster_context"] = clusterID

	return RescoreResult{
		Threat:   t,
		Decision: "rescored",
		Reason:   fmt.Sprintf("cluster %s size %d, factor %.2f", clusterID, clusterSize, factor),
		Factor:   factor,
		Delta:    delta,
	}, nil
}

// #endregion rescore

// #region base-score

// baseScore is the deterministic content-derived score: a bounded weighted
// sum of severity-keyword weight, entity density, and source reliability.
func baseScore(feats *feature.Features, doc model.Document) float64 {
	var kwSum, kwMax float64
	for term := range feats.TermFreq {
		if w, ok := severityKeywords[term]; ok {
			kwSum += w
			if w > kwMax {
				kwMax = w
			}
		}
	}
	// Saturating keyword signal: the strongest keyword dominates, extra
	// matches add a little.
	kwSignal := kwMax + 0.05*(kwSum-kwMax)
	kwSignal = clamp01(kwSignal)

	entityCount := len(feats.Persons) + len(feats.Organizations) + len(feats.Locations)
	density := float64(entityCount) / 10.0
	if density > 1 {
		density = 1
	}

	return clamp01(0.15 + 0.45*kwSignal + 0.2*density + 0.2*clamp01(doc.Source.Reliability))
}

// inferType picks the first threat type whose keywords dominate the text.
func inferType(feats *feature.Features) string {
	bestType := "general"
	bestHits := 0
	for _, typ := range typeOrder {
		hits := 0
		for _, kw := range typeKeywords[typ] {
			if _, ok := feats.TermFreq[kw]; ok {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestType = typ
		}
	}
	return bestType
}

func describeThreat(threatType string, doc model.Document) string {
	excerpt := doc.Text
	if len(excerpt) > 140 {
		excerpt = excerpt[:140]
	}
	return fmt.Sprintf("%s (source: %s): %s", strings.ReplaceAll(threatType, "_", " "), doc.Source.Name, excerpt)
}

func entityNames(doc model.Document) []string {
	names := make([]string, 0, len(doc.Entities))
	for _, e := range doc.Entities {
		names = append(names, e.Name)
	}
	return names
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion base-score
