package pipeline

// #region imports
import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"github.com/ebrodeur/recoupement/internal/audit"
	"github.com/ebrodeur/recoupement/internal/cache"
	"github.com/ebrodeur/recoupement/internal/cluster"
	"github.com/ebrodeur/recoupement/internal/collection"
	"github.com/ebrodeur/recoupement/internal/config"
	"github.com/ebrodeur/recoupement/internal/feature"
	"github.com/ebrodeur/recoupement/internal/logging"
	"github.com/ebrodeur/recoupement/internal/metrics"
	"github.com/ebrodeur/recoupement/internal/model"
	"github.com/ebrodeur/recoupement/internal/notify"
	"github.com/ebrodeur/recoupement/internal/prescription"
	"github.com/ebrodeur/recoupement/internal/signals"
	"github.com/ebrodeur/recoupement/internal/similarity"
	"github.com/ebrodeur/recoupement/internal/store"
	"github.com/ebrodeur/recoupement/internal/threat"
)

// #endregion imports

// #region invalidation

// invalidatePatterns are flushed from the shared cache after every
// successful reevaluation.
var invalidatePatterns = []string{
	"threats*", "predictions*", "prescriptions*", "dashboard*", "clustering*",
}

// #endregion invalidation

// #region trigger-thresholds

const (
	// A collection request is attempted for high-score threats whose
	// credibility leaves room for corroboration.
	requestScoreFloor      = 0.6
	requestCredibilityCeil = 0.75
	escalationNotifyDelta  = 0.2
)

// #endregion trigger-thresholds

// #region orchestrator

// Orchestrator is the entry point invoked on every new-document event. It
// wires extraction, similarity, clustering, rescoring, prescription
// generation, and collection-request scheduling into one pipeline.
type Orchestrator struct {
	docs     store.DocumentStore
	cache    Cache
	notifier notify.Notifier

	extractor *feature.Extractor
	engine    *similarity.Engine
	builder   *cluster.Builder
	analyzer  *cluster.Analyzer
	producer  *signals.Producer
	rescorer  *threat.Rescorer
	generator *prescription.Generator
	scheduler *collection.Scheduler
	harness   *audit.Harness

	provDB *sql.DB // optional provenance sink
}

// New creates a fully wired orchestrator. sharedCache, notifier, and
// classifier may be nil.
func New(docs store.DocumentStore, sharedCache Cache, notifier notify.Notifier, clf threat.Classifier, cfg config.Config) *Orchestrator {
	if sharedCache == nil {
		sharedCache = cache.New()
	}
	extractor := feature.NewExtractor()

	weights := similarity.Weights{
		Text:       cfg.Similarity.TextWeight,
		Entity:     cfg.Similarity.EntityWeight,
		Temporal:   cfg.Similarity.TemporalWeight,
		SourceType: cfg.Similarity.SourceTypeWeight,
		SourceName: cfg.Similarity.SourceNameWeight,
	}
	engine := similarity.NewEngine(extractor, weights, sharedCache, cfg.Cache.SimilarityTTL)

	builder := cluster.NewBuilder(engine, cluster.BuilderConfig{
		Threshold:      cfg.Clustering.Threshold,
		MinClusterSize: cfg.Clustering.MinClusterSize,
		MaxParallel:    cfg.Clustering.MaxParallel,
	})
	analyzer := cluster.NewAnalyzer(extractor, sharedCache, cfg.Cache.AnalysisTTL)
	producer := signals.NewProducer(extractor, engine, signals.DefaultProducerConfig())

	history := threat.NewHistoryStore(cfg.Rescoring.HistoryCap)
	rescorer := threat.NewRescorer(extractor, history, clf, threat.Config{
		ClusterBoostPerDoc: cfg.Rescoring.ClusterBoostPerDoc,
		ClusterFactorCap:   cfg.Rescoring.ClusterFactorCap,
		ClassifierBoostMax: threat.DefaultConfig().ClassifierBoostMax,
		ClassifierTimeout:  cfg.Classifier.Timeout,
	})

	scheduler := collection.NewScheduler(collection.Config{
		MinConfidence: cfg.Collection.MinConfidence,
		RequestTTL:    cfg.Collection.RequestTTL,
	})

	if notifier == nil {
		notifier = notify.LogNotifier{}
	}

	return &Orchestrator{
		docs:      docs,
		cache:     sharedCache,
		notifier:  notifier,
		extractor: extractor,
		engine:    engine,
		builder:   builder,
		analyzer:  analyzer,
		producer:  producer,
		rescorer:  rescorer,
		generator: prescription.NewGenerator(),
		scheduler: scheduler,
		harness:   audit.NewHarness(cfg.Rescoring.HistoryCap),
	}
}

// WithProvenance attaches a provenance sink database.
func (o *Orchestrator) WithProvenance(db *sql.DB) *Orchestrator {
	o.provDB = db
	return o
}

// Scheduler exposes the collection-request scheduler for read paths.
func (o *Orchestrator) Scheduler() *collection.Scheduler { return o.scheduler }

// History exposes the prediction-history store for read paths.
func (o *Orchestrator) History() *threat.HistoryStore { return o.rescorer.History() }

// #endregion orchestrator

// #region reevaluate

// Reevaluate runs the full pipeline for one new document. Safe to invoke
// concurrently for different documents; the document snapshot is immutable
// for the duration of the call. Per-threat failures are recorded in the
// result, never aborting sibling processing. A store failure on the initial
// fetch is fatal for the call.
func (o *Orchestrator) Reevaluate(ctx context.Context, doc model.Document) (Result, error) {
	res := Result{DocumentHash: doc.ContentHash}

	if doc.ContentHash == "" {
		return res, &model.ValidationError{Field: "content_hash", Reason: "missing"}
	}
	if strings.TrimSpace(doc.Text) == "" {
		return res, &model.ValidationError{Field: "text", Reason: "empty"}
	}

	snapshot, err := o.docs.GetAllDocuments(ctx)
	if err != nil {
		metrics.Reevaluations.WithLabelValues("store_error").Inc()
		if model.IsDependencyError(err) {
			return res, err
		}
		return res, &model.DependencyError{Dep: "document store", Err: err}
	}
	if !containsHash(snapshot, doc.ContentHash) {
		snapshot = append(snapshot, doc)
	}

	partition, err := o.builder.Build(ctx, snapshot)
	if err != nil {
		metrics.Reevaluations.WithLabelValues("cancelled").Inc()
		return res, fmt.Errorf("cluster build: %w", err)
	}

	c := partition.ClusterFor(doc.ContentHash)
	if c == nil {
		res.Isolated = true
		o.handleIsolated(ctx, doc, &res)
	} else {
		res.ClusterID = c.ID
		res.ClusterSize = len(c.Documents)
		o.handleCluster(ctx, doc, c, &res)
	}

	res.Audit = o.harness.Run(append(res.ThreatsCreated, res.ThreatsUpdated...), o.rescorer.History())
	if !res.Audit.Passed {
		log.Printf("[PIPE] audit failed for %s: %v", doc.ContentHash, res.Audit.FailReasons)
	}

	for _, pattern := range invalidatePatterns {
		o.cache.InvalidatePattern(pattern)
	}

	metrics.Reevaluations.WithLabelValues("ok").Inc()
	log.Printf("[PIPE] reevaluated %s: cluster=%s size=%d created=%d updated=%d requests=%d errors=%d",
		doc.ContentHash, res.ClusterID, res.ClusterSize,
		len(res.ThreatsCreated), len(res.ThreatsUpdated), len(res.CollectionRequests),
		len(res.ThreatErrors)+len(res.PrescriptionErrors))
	return res, nil
}

// #endregion reevaluate

// #region isolated-path

// handleIsolated takes the new-threat path for a document with no cluster:
// create a threat if none is mapped to the content hash yet.
func (o *Orchestrator) handleIsolated(ctx context.Context, doc model.Document, res *Result) {
	existing, err := o.docs.GetThreatByContentHash(ctx, doc.ContentHash)
	if err != nil {
		res.ThreatErrors = append(res.ThreatErrors, ThreatError{DocumentHash: doc.ContentHash, Err: err.Error()})
		return
	}
	if existing != nil {
		o.logProvenance(logging.ProvenanceEntry{
			DocumentHash: doc.ContentHash,
			Subject:      existing.ID,
			Decision:     "skipped",
			Reason:       "isolated document already mapped to a threat",
			ScoreBefore:  existing.Score,
			ScoreAfter:   existing.Score,
		})
		return
	}

	o.createThreat(ctx, doc, nil, res)
}

// #endregion isolated-path

// #region cluster-path

// handleCluster rescores every threat mapped to a cluster member; when the
// cluster covers no threat at all, the new document takes the creation path.
func (o *Orchestrator) handleCluster(ctx context.Context, doc model.Document, c *cluster.Cluster, res *Result) {
	type mapped struct {
		threat *model.Threat
		doc    model.Document
	}

	var existing []mapped
	threatScores := make(map[string]float64)
	for _, member := range c.Documents {
		t, err := o.docs.GetThreatByContentHash(ctx, member.ContentHash)
		if err != nil {
			res.ThreatErrors = append(res.ThreatErrors, ThreatError{DocumentHash: member.ContentHash, Err: err.Error()})
			continue
		}
		if t != nil {
			existing = append(existing, mapped{threat: t, doc: member})
			threatScores[member.ContentHash] = t.Score
		}
	}

	if len(existing) == 0 {
		o.createThreat(ctx, doc, c, res)
	} else {
		for _, m := range existing {
			o.rescoreThreat(ctx, *m.threat, m.doc, c, res)
		}
	}

	analysis := o.analyzer.Analyze(*c, threatScores)
	res.Analysis = &analysis
}

// #endregion cluster-path

// #region create-threat

func (o *Orchestrator) createThreat(ctx context.Context, doc model.Document, c *cluster.Cluster, res *Result) {
	t, err := o.rescorer.NewFromDocument(ctx, doc)
	if err != nil {
		res.ThreatErrors = append(res.ThreatErrors, ThreatError{DocumentHash: doc.ContentHash, Err: err.Error()})
		return
	}
	if c != nil {
		t.ClusterID = c.ID
		t.ClusterSize = len(c.Documents)
		t.Metadata["cluster_context"] = c.ID
	}

	if err := o.docs.UpsertThreat(ctx, t); err != nil {
		res.ThreatErrors = append(res.ThreatErrors, ThreatError{ThreatID: t.ID, DocumentHash: doc.ContentHash, Err: err.Error()})
		return
	}
	res.ThreatsCreated = append(res.ThreatsCreated, t)

	sig := o.producer.Produce(doc, c)
	p := o.attachPrescription(ctx, t, doc, sig, res)
	o.recordHistory(t, p)

	o.logProvenance(logging.ProvenanceEntry{
		DocumentHash: doc.ContentHash,
		ClusterID:    t.ClusterID,
		Subject:      t.ID,
		Decision:     "threat_created",
		Reason:       fmt.Sprintf("type=%s severity=%s", t.Type, t.Severity),
		ScoreAfter:   t.Score,
	})
	o.pushEvent(ctx, notify.Event{
		Type:    notify.EventThreatCreated,
		Subject: t.ID,
		Level:   string(t.Severity),
		Message: t.Description,
	})

	o.maybeRequestCollection(ctx, t, sig, res)
}

// #endregion create-threat

// #region rescore-threat

func (o *Orchestrator) rescoreThreat(ctx context.Context, t model.Threat, originDoc model.Document, c *cluster.Cluster, res *Result) {
	before := t.Score

	outcome, err := o.rescorer.Rescore(t, c.ID, len(c.Documents))
	if err != nil {
		res.ThreatErrors = append(res.ThreatErrors, ThreatError{ThreatID: t.ID, DocumentHash: t.ContentHash, Err: err.Error()})
		return
	}
	if outcome.Decision == "skipped" {
		o.logProvenance(logging.ProvenanceEntry{
			DocumentHash: t.ContentHash,
			ClusterID:    c.ID,
			Subject:      t.ID,
			Decision:     "skipped",
			Reason:       outcome.Reason,
			ScoreBefore:  before,
			ScoreAfter:   before,
		})
		return
	}

	updated := outcome.Threat
	if err := o.docs.UpsertThreat(ctx, updated); err != nil {
		res.ThreatErrors = append(res.ThreatErrors, ThreatError{ThreatID: updated.ID, DocumentHash: updated.ContentHash, Err: err.Error()})
		return
	}
	res.ThreatsUpdated = append(res.ThreatsUpdated, updated)
	metrics.ThreatsRescored.Inc()

	sig := o.producer.Produce(originDoc, c)
	p := o.attachPrescription(ctx, updated, originDoc, sig, res)
	o.recordHistory(updated, p)

	o.logProvenance(logging.ProvenanceEntry{
		DocumentHash: updated.ContentHash,
		ClusterID:    c.ID,
		Subject:      updated.ID,
		Decision:     "rescored",
		Reason:       outcome.Reason,
		ScoreBefore:  before,
		ScoreAfter:   updated.Score,
	})
	if updated.DeltaScore > escalationNotifyDelta {
		o.pushEvent(ctx, notify.Event{
			Type:    notify.EventThreatEscalated,
			Subject: updated.ID,
			Level:   string(updated.Severity),
			Message: fmt.Sprintf("delta %.2f on cluster %s", updated.DeltaScore, c.ID),
		})
	}

	o.maybeRequestCollection(ctx, updated, sig, res)
}

// #endregion rescore-threat

// #region prescriptions

// attachPrescription creates or merges the threat's prescription. Returns
// the persisted prescription, or nil on failure (recorded, non-fatal).
func (o *Orchestrator) attachPrescription(ctx context.Context, t model.Threat, doc model.Document, sig signals.Signals, res *Result) *model.Prescription {
	generated := o.generator.Generate(t, sig)

	existing, err := o.docs.GetPrescriptionByThreat(ctx, t.ID)
	if err != nil {
		res.PrescriptionErrors = append(res.PrescriptionErrors, ThreatError{ThreatID: t.ID, DocumentHash: doc.ContentHash, Err: err.Error()})
		return nil
	}

	if existing == nil {
		if err := o.docs.UpsertPrescription(ctx, generated); err != nil {
			res.PrescriptionErrors = append(res.PrescriptionErrors, ThreatError{ThreatID: t.ID, DocumentHash: doc.ContentHash, Err: err.Error()})
			return nil
		}
		res.PrescriptionsCreated = append(res.PrescriptionsCreated, generated)
		return &generated
	}

	merged, changed := o.generator.Merge(*existing, generated)
	if !changed {
		return existing
	}
	if err := o.docs.UpsertPrescription(ctx, merged); err != nil {
		res.PrescriptionErrors = append(res.PrescriptionErrors, ThreatError{ThreatID: t.ID, DocumentHash: doc.ContentHash, Err: err.Error()})
		return existing
	}
	res.PrescriptionsUpdated = append(res.PrescriptionsUpdated, merged)
	return &merged
}

func (o *Orchestrator) recordHistory(t model.Threat, p *model.Prescription) {
	prescriptionID := ""
	if p != nil {
		prescriptionID = p.ID
	}
	o.rescorer.History().Append(t.ID, threat.HistoryEntry{
		Score:          t.Score,
		Timestamp:      t.LastReevaluation,
		PrescriptionID: prescriptionID,
	})
}

// #endregion prescriptions

// #region collection

// maybeRequestCollection attempts a collection request for high-score,
// low-credibility threats. Guard rejections are deliberate no-ops.
func (o *Orchestrator) maybeRequestCollection(ctx context.Context, t model.Threat, sig signals.Signals, res *Result) {
	if t.Score < requestScoreFloor || sig.Credibility >= requestCredibilityCeil {
		return
	}

	zone := t.Metadata["zone"]
	if zone == "" {
		zone = "unspecified"
	}
	req, err := o.scheduler.Generate(collection.Trigger{
		ScenarioID: t.Metadata["scenario_id"],
		ThreatID:   t.ID,
		ThreatType: t.Type,
		Zone:       zone,
		Confidence: sig.Credibility,
	})
	if err != nil {
		if model.IsGuardRejection(err) {
			o.logProvenance(logging.ProvenanceEntry{
				DocumentHash: t.ContentHash,
				ClusterID:    t.ClusterID,
				Subject:      t.ID,
				Decision:     "guard_rejected",
				Reason:       err.Error(),
				ScoreBefore:  t.Score,
				ScoreAfter:   t.Score,
			})
			return
		}
		res.ThreatErrors = append(res.ThreatErrors, ThreatError{ThreatID: t.ID, Err: err.Error()})
		return
	}

	res.CollectionRequests = append(res.CollectionRequests, req)
	o.pushEvent(ctx, notify.Event{
		Type:    notify.EventRequestCreated,
		Subject: req.ID,
		Level:   string(req.Urgency),
		Message: req.Objective,
	})
}

// #endregion collection

// #region helpers

func (o *Orchestrator) pushEvent(ctx context.Context, e notify.Event) {
	if err := o.notifier.Notify(ctx, e); err != nil {
		log.Printf("[PIPE] notify failed (ignored): %v", err)
	}
}

func (o *Orchestrator) logProvenance(entry logging.ProvenanceEntry) {
	if o.provDB == nil {
		return
	}
	if err := logging.LogDecision(o.provDB, entry); err != nil {
		log.Printf("[PIPE] provenance log failed (ignored): %v", err)
	}
}

func containsHash(docs []model.Document, hash string) bool {
	for _, d := range docs {
		if d.ContentHash == hash {
			return true
		}
	}
	return false
}

// #endregion helpers
