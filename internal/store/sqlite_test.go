package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ebrodeur/recoupement/internal/model"
	_ "modernc.org/sqlite"
)

// #region helpers

func tempStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDocument(hash string) model.Document {
	return model.Document{
		ContentHash: hash,
		Text:        "network intrusion detected on government servers",
		Entities: []model.Entity{
			{Name: "GhostLink Collective", Type: model.EntityOrganization, Confidence: 0.9},
		},
		Source:    model.Source{Name: "station-7", Type: "sigint_intercept", Reliability: 0.8},
		CreatedAt: time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC),
		Metadata:  map[string]string{"zone": "sector-north"},
	}
}

func sampleThreat(id, hash string) model.Threat {
	now := time.Date(2026, 5, 10, 10, 0, 0, 0, time.UTC)
	return model.Threat{
		ID:               id,
		Score:            0.6,
		BaseScore:        0.6,
		Severity:         model.SeverityHigh,
		Status:           model.ThreatActive,
		ContentHash:      hash,
		Type:             "network_intrusion",
		Description:      "network intrusion (source: station-7)",
		LastReevaluation: now,
		CreatedAt:        now,
		UpdatedAt:        now,
		Metadata:         map[string]string{"cluster_context": "cluster-abc"},
	}
}

// #endregion helpers

// #region document-tests

func TestInsertAndGetAllDocuments(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	first := sampleDocument("h1")
	second := sampleDocument("h2")
	second.CreatedAt = first.CreatedAt.Add(time.Hour)

	if err := s.InsertDocument(ctx, first); err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}
	if err := s.InsertDocument(ctx, second); err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}

	docs, err := s.GetAllDocuments(ctx)
	if err != nil {
		t.Fatalf("GetAllDocuments: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	// Oldest first.
	if docs[0].ContentHash != "h1" || docs[1].ContentHash != "h2" {
		t.Fatalf("unexpected order: %s, %s", docs[0].ContentHash, docs[1].ContentHash)
	}

	got := docs[0]
	if got.Text != first.Text {
		t.Fatalf("text mismatch: %q", got.Text)
	}
	if len(got.Entities) != 1 || got.Entities[0].Name != "GhostLink Collective" {
		t.Fatalf("entities mismatch: %+v", got.Entities)
	}
	if got.Source.Reliability != 0.8 {
		t.Fatalf("reliability mismatch: %f", got.Source.Reliability)
	}
	if got.Metadata["zone"] != "sector-north" {
		t.Fatalf("metadata mismatch: %v", got.Metadata)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, first.CreatedAt)
	}
}

func TestInsertDocumentRejectsDuplicateHash(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	if err := s.InsertDocument(ctx, sampleDocument("h1")); err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}
	if err := s.InsertDocument(ctx, sampleDocument("h1")); err == nil {
		t.Fatal("expected error for duplicate content hash")
	}
}

func TestInsertDocumentRequiresHash(t *testing.T) {
	s := tempStore(t)

	var ve *model.ValidationError
	err := s.InsertDocument(context.Background(), sampleDocument(""))
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// #endregion document-tests

// #region threat-tests

func TestUpsertAndGetThreat(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	threat := sampleThreat("t1", "h1")
	if err := s.UpsertThreat(ctx, threat); err != nil {
		t.Fatalf("UpsertThreat: %v", err)
	}

	got, err := s.GetThreatByContentHash(ctx, "h1")
	if err != nil {
		t.Fatalf("GetThreatByContentHash: %v", err)
	}
	if got == nil {
		t.Fatal("expected threat")
	}
	if got.ID != "t1" || got.Score != 0.6 || got.Severity != model.SeverityHigh {
		t.Fatalf("threat mismatch: %+v", got)
	}
	if got.Metadata["cluster_context"] != "cluster-abc" {
		t.Fatalf("metadata mismatch: %v", got.Metadata)
	}

	byID, err := s.GetThreat(ctx, "t1")
	if err != nil {
		t.Fatalf("GetThreat: %v", err)
	}
	if byID == nil || byID.ContentHash != "h1" {
		t.Fatalf("lookup by id mismatch: %+v", byID)
	}
}

func TestGetThreatAbsentReturnsNil(t *testing.T) {
	s := tempStore(t)

	got, err := s.GetThreatByContentHash(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetThreatByContentHash: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for absent threat, got %+v", got)
	}
}

func TestUpsertThreatUpdatesInPlace(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	threat := sampleThreat("t1", "h1")
	if err := s.UpsertThreat(ctx, threat); err != nil {
		t.Fatalf("UpsertThreat: %v", err)
	}

	threat.Score = 0.78
	threat.Severity = model.SeverityForScore(0.78)
	threat.ClusterID = "cluster-abc"
	threat.ClusterSize = 3
	threat.UpdatedAt = threat.UpdatedAt.Add(time.Minute)
	if err := s.UpsertThreat(ctx, threat); err != nil {
		t.Fatalf("UpsertThreat update: %v", err)
	}

	got, err := s.GetThreat(ctx, "t1")
	if err != nil {
		t.Fatalf("GetThreat: %v", err)
	}
	if got.Score != 0.78 || got.ClusterSize != 3 || got.ClusterID != "cluster-abc" {
		t.Fatalf("update not applied: %+v", got)
	}
}

// #endregion threat-tests

// #region prescription-tests

func TestUpsertAndGetPrescription(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 10, 11, 0, 0, 0, time.UTC)
	p := model.Prescription{
		ID:       "p1",
		ThreatID: "t1",
		Priority: model.PriorityHigh,
		Category: model.CategorySecurity,
		Actions: []model.Action{
			{ID: "isolate-affected-segments", Description: "Isolate affected network segments", Type: model.ActionAutomatic},
		},
		EstimatedTime: "24h",
		Resources:     []string{"security operations"},
		Confidence:    0.7,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.UpsertPrescription(ctx, p); err != nil {
		t.Fatalf("UpsertPrescription: %v", err)
	}

	got, err := s.GetPrescriptionByThreat(ctx, "t1")
	if err != nil {
		t.Fatalf("GetPrescriptionByThreat: %v", err)
	}
	if got == nil {
		t.Fatal("expected prescription")
	}
	if got.Priority != model.PriorityHigh || len(got.Actions) != 1 {
		t.Fatalf("prescription mismatch: %+v", got)
	}
	if got.Actions[0].ID != "isolate-affected-segments" {
		t.Fatalf("action mismatch: %+v", got.Actions[0])
	}

	// Merge path: same id, grown action list.
	p.Actions = append(p.Actions, model.Action{ID: "sigint-escalation", Description: "Escalate to SIGINT", Type: model.ActionManual})
	p.Priority = model.PriorityCritical
	if err := s.UpsertPrescription(ctx, p); err != nil {
		t.Fatalf("UpsertPrescription update: %v", err)
	}
	got, err = s.GetPrescriptionByThreat(ctx, "t1")
	if err != nil {
		t.Fatalf("GetPrescriptionByThreat: %v", err)
	}
	if len(got.Actions) != 2 || got.Priority != model.PriorityCritical {
		t.Fatalf("update not applied: %+v", got)
	}
}

func TestGetPrescriptionAbsentReturnsNil(t *testing.T) {
	s := tempStore(t)

	got, err := s.GetPrescriptionByThreat(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetPrescriptionByThreat: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

// #endregion prescription-tests
