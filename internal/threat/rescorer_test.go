package threat

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ebrodeur/recoupement/internal/feature"
	"github.com/ebrodeur/recoupement/internal/model"
)

// #region helpers

func makeDoc(hash, text string, reliability float64) model.Document {
	return model.Document{
		ContentHash: hash,
		Text:        text,
		Source:      model.Source{Name: "station-7", Type: "sigint_intercept", Reliability: reliability},
		CreatedAt:   time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
	}
}

func newTestRescorer(clf Classifier) *Rescorer {
	return NewRescorer(feature.NewExtractor(), NewHistoryStore(10), clf, DefaultConfig())
}

func activeThreat(id string, base float64) model.Threat {
	return model.Threat{
		ID:          id,
		Score:       base,
		BaseScore:   base,
		Severity:    model.SeverityForScore(base),
		Status:      model.ThreatActive,
		ContentHash: "doc-" + id,
		Type:        "network_intrusion",
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

type mockClassifier struct {
	signal ClassifySignal
	err    error
	calls  int
}

func (m *mockClassifier) Classify(_ context.Context, _ string, _ []string) (ClassifySignal, error) {
	m.calls++
	return m.signal, m.err
}

// #endregion helpers

// #region new-threat-tests

func TestNewFromDocumentRequiresHashAndText(t *testing.T) {
	r := newTestRescorer(nil)

	if _, err := r.NewFromDocument(context.Background(), makeDoc("", "some text", 0.5)); err == nil {
		t.Fatal("expected error for missing content hash")
	}
	if _, err := r.NewFromDocument(context.Background(), makeDoc("h1", "   ", 0.5)); err == nil {
		t.Fatal("expected error for empty text")
	}

	var ve *model.ValidationError
	_, err := r.NewFromDocument(context.Background(), makeDoc("", "text", 0.5))
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestNewFromDocumentBaseScore(t *testing.T) {
	r := newTestRescorer(nil)

	// No severity keywords, no entities: 0.15 + 0.2×reliability.
	bland, err := r.NewFromDocument(context.Background(), makeDoc("h1", "routine logistics report filed on schedule", 0.5))
	if err != nil {
		t.Fatalf("NewFromDocument: %v", err)
	}
	if !closeTo(bland.Score, 0.25) {
		t.Fatalf("expected base 0.25, got %f", bland.Score)
	}
	if bland.Severity != model.SeverityLow {
		t.Fatalf("expected low severity, got %s", bland.Severity)
	}
	if bland.Status != model.ThreatActive {
		t.Fatalf("expected active status, got %s", bland.Status)
	}
	if bland.BaseScore != bland.Score {
		t.Fatal("base score must equal score at creation")
	}

	// Top-weight keyword saturates the keyword signal.
	hot, err := r.NewFromDocument(context.Background(), makeDoc("h2", "imminent attack reported", 0.5))
	if err != nil {
		t.Fatalf("NewFromDocument: %v", err)
	}
	if !closeTo(hot.Score, 0.7) {
		t.Fatalf("expected base 0.7, got %f", hot.Score)
	}
	if hot.Severity != model.SeverityHigh {
		t.Fatalf("expected high severity, got %s", hot.Severity)
	}
}

func TestNewFromDocumentInfersType(t *testing.T) {
	r := newTestRescorer(nil)

	cases := []struct {
		text string
		want string
	}{
		{"network intrusion traced to a foreign server with exfiltration", "network_intrusion"},
		{"ransomware and phishing wave hitting the malware sinkhole", "malware_campaign"},
		{"armed militant group moving weapons toward the border", "armed_group_activity"},
		{"routine weather report", "general"},
	}
	for _, tc := range cases {
		got, err := r.NewFromDocument(context.Background(), makeDoc("type-"+tc.want+tc.text[:4], tc.text, 0.5))
		if err != nil {
			t.Fatalf("NewFromDocument(%q): %v", tc.text, err)
		}
		if got.Type != tc.want {
			t.Fatalf("text %q: expected type %s, got %s", tc.text, tc.want, got.Type)
		}
	}
}

func TestNewFromDocumentClassifierBoost(t *testing.T) {
	clf := &mockClassifier{signal: ClassifySignal{AnomalyScore: 0.5, Label: "anomalous"}}
	r := newTestRescorer(clf)

	got, err := r.NewFromDocument(context.Background(), makeDoc("h3", "routine logistics report filed on schedule", 0.5))
	if err != nil {
		t.Fatalf("NewFromDocument: %v", err)
	}
	if clf.calls != 1 {
		t.Fatalf("expected one classifier call, got %d", clf.calls)
	}
	// 0.25 base + 0.2×0.5 boost.
	if !closeTo(got.Score, 0.35) {
		t.Fatalf("expected boosted score 0.35, got %f", got.Score)
	}
	if got.Metadata["classifier_label"] != "anomalous" {
		t.Fatalf("expected classifier label recorded, got %v", got.Metadata)
	}
}

// hangingClassifier blocks until its context is done, like a stalled sidecar.
type hangingClassifier struct{}

func (hangingClassifier) Classify(ctx context.Context, _ string, _ []string) (ClassifySignal, error) {
	<-ctx.Done()
	return ClassifySignal{}, ctx.Err()
}

func TestNewFromDocumentClassifierTimeoutDegrades(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClassifierTimeout = 10 * time.Millisecond
	r := NewRescorer(feature.NewExtractor(), NewHistoryStore(10), hangingClassifier{}, cfg)

	start := time.Now()
	got, err := r.NewFromDocument(context.Background(), makeDoc("h7", "routine logistics report filed on schedule", 0.5))
	if err != nil {
		t.Fatalf("stalled classifier must not fail creation: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("classifier call not bounded, took %v", elapsed)
	}
	if !closeTo(got.Score, 0.25) {
		t.Fatalf("expected unboosted score 0.25, got %f", got.Score)
	}
}

func TestNewFromDocumentClassifierFailureDegrades(t *testing.T) {
	clf := &mockClassifier{err: errors.New("sidecar down")}
	r := newTestRescorer(clf)

	got, err := r.NewFromDocument(context.Background(), makeDoc("h4", "routine logistics report filed on schedule", 0.5))
	if err != nil {
		t.Fatalf("classifier failure must not fail creation: %v", err)
	}
	if !closeTo(got.Score, 0.25) {
		t.Fatalf("expected unboosted score 0.25, got %f", got.Score)
	}
}

// #endregion new-threat-tests

// #region rescore-tests

func TestRescoreAppliesClusterFactor(t *testing.T) {
	r := newTestRescorer(nil)
	threat := activeThreat("t1", 0.6)

	res, err := r.Rescore(threat, "cluster-abc", 4)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if res.Decision != "rescored" {
		t.Fatalf("expected rescored, got %s", res.Decision)
	}
	// factor = 1 + 0.1×3 = 1.3
	if !closeTo(res.Factor, 1.3) {
		t.Fatalf("expected factor 1.3, got %f", res.Factor)
	}
	if !closeTo(res.Threat.Score, 0.78) {
		t.Fatalf("expected score 0.78, got %f", res.Threat.Score)
	}
	if res.Threat.Severity != model.SeverityHigh {
		t.Fatalf("expected high severity, got %s", res.Threat.Severity)
	}
	if res.Threat.ClusterID != "cluster-abc" || res.Threat.ClusterSize != 4 {
		t.Fatalf("cluster context not recorded: %+v", res.Threat)
	}
	if res.Threat.Metadata["cluster_context"] != "cluster-abc" {
		t.Fatalf("expected cluster metadata, got %v", res.Threat.Metadata)
	}
}

func TestRescoreFactorCapped(t *testing.T) {
	r := newTestRescorer(nil)

	res, err := r.Rescore(activeThreat("t1", 0.5), "cluster-abc", 20)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if !closeTo(res.Factor, 1.5) {
		t.Fatalf("expected factor capped at 1.5, got %f", res.Factor)
	}
	if !closeTo(res.Threat.Score, 0.75) {
		t.Fatalf("expected score 0.75, got %f", res.Threat.Score)
	}
}

func TestRescoreScoreCappedAtOne(t *testing.T) {
	r := newTestRescorer(nil)

	res, err := r.Rescore(activeThreat("t1", 0.9), "cluster-abc", 10)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if res.Threat.Score != 1.0 {
		t.Fatalf("expected score capped at 1.0, got %f", res.Threat.Score)
	}
	if res.Threat.Severity != model.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", res.Threat.Severity)
	}
}

func TestRescoreDeltaAgainstHistory(t *testing.T) {
	r := newTestRescorer(nil)
	threat := activeThreat("t1", 0.6)
	r.History().Append(threat.ID, HistoryEntry{Score: 0.5})
	r.History().Append(threat.ID, HistoryEntry{Score: 0.6})

	res, err := r.Rescore(threat, "cluster-abc", 4)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	// 0.78 against a mean of 0.55.
	if !closeTo(res.Delta, 0.23) {
		t.Fatalf("expected delta 0.23, got %f", res.Delta)
	}
	if !closeTo(res.Threat.DeltaScore, 0.23) {
		t.Fatalf("expected threat delta 0.23, got %f", res.Threat.DeltaScore)
	}
}

func TestRescoreSkipsNonActiveThreats(t *testing.T) {
	r := newTestRescorer(nil)
	resolved := activeThreat("t1", 0.6)
	resolved.Status = model.ThreatResolved

	res, err := r.Rescore(resolved, "cluster-abc", 4)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if res.Decision != "skipped" {
		t.Fatalf("expected skipped, got %s", res.Decision)
	}
	if res.Threat.Score != 0.6 {
		t.Fatalf("skipped threat must not be mutated, score %f", res.Threat.Score)
	}
}

func TestRescoreRejectsMalformedClusterContext(t *testing.T) {
	r := newTestRescorer(nil)
	threat := activeThreat("t1", 0.6)

	var ve *model.ValidationError
	if _, err := r.Rescore(threat, "", 4); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for empty cluster id, got %v", err)
	}
	if _, err := r.Rescore(threat, "cluster-abc", 0); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for zero size, got %v", err)
	}

	orphan := activeThreat("t2", 0.6)
	orphan.ContentHash = ""
	if _, err := r.Rescore(orphan, "cluster-abc", 3); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for missing content hash, got %v", err)
	}
}

func TestRescoreFallsBackToScoreForLegacyThreats(t *testing.T) {
	r := newTestRescorer(nil)
	legacy := activeThreat("t1", 0.6)
	legacy.BaseScore = 0

	res, err := r.Rescore(legacy, "cluster-abc", 4)
	if err != nil {
		t.Fatalf("Rescore: %v", err)
	}
	if !closeTo(res.Threat.Score, 0.78) {
		t.Fatalf("expected fallback to current score, got %f", res.Threat.Score)
	}
}

// #endregion rescore-tests
