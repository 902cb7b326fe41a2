package logging

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE reevaluation_log (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		document_hash TEXT NOT NULL,
		cluster_id    TEXT,
		subject       TEXT NOT NULL,
		decision      TEXT NOT NULL,
		reason        TEXT,
		score_before  REAL,
		score_after   REAL,
		created_at    TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests

func TestLogDecisionAndListRecent(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		DocumentHash: "h1",
		ClusterID:    "cluster-abc",
		Subject:      "threat-1",
		Decision:     "rescored",
		Reason:       "cluster cluster-abc size 3, factor 1.20",
		ScoreBefore:  0.6,
		ScoreAfter:   0.72,
		CreatedAt:    time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
	}
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("LogDecision: %v", err)
	}

	entries, err := ListRecent(db, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.DocumentHash != "h1" || got.Subject != "threat-1" || got.Decision != "rescored" {
		t.Fatalf("entry mismatch: %+v", got)
	}
	if got.ScoreBefore != 0.6 || got.ScoreAfter != 0.72 {
		t.Fatalf("score mismatch: %+v", got)
	}
	if !got.CreatedAt.Equal(entry.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, entry.CreatedAt)
	}
}

func TestLogDecisionNullableFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogDecision(db, ProvenanceEntry{
		DocumentHash: "h2",
		Subject:      "threat-2",
		Decision:     "skipped",
	}); err != nil {
		t.Fatalf("LogDecision: %v", err)
	}

	entries, err := ListRecent(db, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if entries[0].ClusterID != "" || entries[0].Reason != "" {
		t.Fatalf("expected empty optional fields, got %+v", entries[0])
	}
	if entries[0].CreatedAt.IsZero() {
		t.Fatal("expected a defaulted timestamp")
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	for i, decision := range []string{"threat_created", "rescored", "guard_rejected"} {
		if err := LogDecision(db, ProvenanceEntry{
			DocumentHash: "h1",
			Subject:      "threat-1",
			Decision:     decision,
			CreatedAt:    time.Date(2026, 5, 10, 12, i, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}

	entries, err := ListRecent(db, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Decision != "guard_rejected" || entries[1].Decision != "rescored" {
		t.Fatalf("unexpected order: %s, %s", entries[0].Decision, entries[1].Decision)
	}
}

// #endregion log-decision-tests
