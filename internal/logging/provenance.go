package logging

// #region imports
import (
	"database/sql"
	"fmt"
	"time"
)

// #endregion imports

// #region types

// ProvenanceEntry records one pipeline decision for audit: why a threat was
// created, rescored, skipped, or a request rejected.
type ProvenanceEntry struct {
	DocumentHash string
	ClusterID    string
	Subject      string // threat/prescription/request id the decision concerns
	Decision     string // "threat_created" | "rescored" | "skipped" | "guard_rejected" | ...
	Reason       string
	ScoreBefore  float64
	ScoreAfter   float64
	CreatedAt    time.Time
}

// #endregion types

// #region log-decision

// LogDecision appends a provenance entry to the reevaluation_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO reevaluation_log (document_hash, cluster_id, subject, decision, reason, score_before, score_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.DocumentHash,
		nullIfEmpty(entry.ClusterID),
		entry.Subject,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.ScoreBefore,
		entry.ScoreAfter,
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list-recent

// ListRecent returns the latest n provenance entries, newest first.
func ListRecent(db *sql.DB, n int) ([]ProvenanceEntry, error) {
	if n <= 0 {
		n = 20
	}
	rows, err := db.Query(
		`SELECT document_hash, cluster_id, subject, decision, reason, score_before, score_after, created_at
		 FROM reevaluation_log ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list provenance: %w", err)
	}
	defer rows.Close()

	var entries []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var clusterID, reason sql.NullString
		var createdAt string
		if err := rows.Scan(&e.DocumentHash, &clusterID, &e.Subject, &e.Decision,
			&reason, &e.ScoreBefore, &e.ScoreAfter, &createdAt); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		e.ClusterID = clusterID.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-recent

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
