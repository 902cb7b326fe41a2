package store

// #region imports
import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ebrodeur/recoupement/internal/model"
)

// #endregion imports

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	content_hash  TEXT PRIMARY KEY,
	text          TEXT NOT NULL,
	source_name   TEXT NOT NULL,
	source_type   TEXT NOT NULL,
	reliability   REAL NOT NULL DEFAULT 0.5,
	entities_json TEXT,
	metadata_json TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS threats (
	id                TEXT PRIMARY KEY,
	content_hash      TEXT NOT NULL UNIQUE,
	score             REAL NOT NULL,
	base_score        REAL NOT NULL,
	severity          TEXT NOT NULL,
	status            TEXT NOT NULL,
	type              TEXT NOT NULL,
	description       TEXT,
	delta_score       REAL NOT NULL DEFAULT 0,
	cluster_id        TEXT,
	cluster_size      INTEGER NOT NULL DEFAULT 0,
	last_reevaluation TEXT,
	metadata_json     TEXT,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prescriptions (
	id             TEXT PRIMARY KEY,
	threat_id      TEXT NOT NULL UNIQUE,
	priority       TEXT NOT NULL,
	category       TEXT NOT NULL,
	actions_json   TEXT NOT NULL,
	estimated_time TEXT,
	resources_json TEXT,
	confidence     REAL NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS reevaluation_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	document_hash TEXT NOT NULL,
	cluster_id    TEXT,
	subject       TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	score_before  REAL,
	score_after   REAL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reevaluation_log_doc ON reevaluation_log(document_hash);
`

// #endregion schema

// #region store-struct

// SQLiteStore implements DocumentStore over a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region documents

// InsertDocument stores a document. A duplicate content hash is rejected:
// documents are immutable once hashed and never reprocessed.
func (s *SQLiteStore) InsertDocument(ctx context.Context, doc model.Document) error {
	if doc.ContentHash == "" {
		return &model.ValidationError{Field: "content_hash", Reason: "missing"}
	}

	entities, err := json.Marshal(doc.Entities)
	if err != nil {
		return fmt.Errorf("marshal entities: %w", err)
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (content_hash, text, source_name, source_type, reliability, entities_json, metadata_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ContentHash, doc.Text, doc.Source.Name, doc.Source.Type, doc.Source.Reliability,
		string(entities), string(metadata), doc.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetAllDocuments returns the full document snapshot, oldest first.
func (s *SQLiteStore) GetAllDocuments(ctx context.Context) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_hash, text, source_name, source_type, reliability, entities_json, metadata_json, created_at
		 FROM documents ORDER BY created_at ASC`)
	if err != nil {
		return nil, &model.DependencyError{Dep: "document store", Err: err}
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		var entities, metadata sql.NullString
		var createdAt string
		if err := rows.Scan(&doc.ContentHash, &doc.Text, &doc.Source.Name, &doc.Source.Type,
			&doc.Source.Reliability, &entities, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		if entities.Valid && entities.String != "" {
			if err := json.Unmarshal([]byte(entities.String), &doc.Entities); err != nil {
				return nil, fmt.Errorf("unmarshal entities: %w", err)
			}
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.DependencyError{Dep: "document store", Err: err}
	}
	return docs, nil
}

// #endregion documents

// #region threats

// GetThreatByContentHash returns the threat mapped to a document hash, or
// nil when none exists.
func (s *SQLiteStore) GetThreatByContentHash(ctx context.Context, hash string) (*model.Threat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content_hash, score, base_score, severity, status, type, description,
		        delta_score, cluster_id, cluster_size, last_reevaluation, metadata_json, created_at, updated_at
		 FROM threats WHERE content_hash = ?`, hash)
	return scanThreat(row)
}

// GetThreat returns a threat by id, or nil when absent.
func (s *SQLiteStore) GetThreat(ctx context.Context, id string) (*model.Threat, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content_hash, score, base_score, severity, status, type, description,
		        delta_score, cluster_id, cluster_size, last_reevaluation, metadata_json, created_at, updated_at
		 FROM threats WHERE id = ?`, id)
	return scanThreat(row)
}

func scanThreat(row *sql.Row) (*model.Threat, error) {
	var t model.Threat
	var description, clusterID, lastReeval, metadata sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&t.ID, &t.ContentHash, &t.Score, &t.BaseScore, &t.Severity, &t.Status,
		&t.Type, &description, &t.DeltaScore, &clusterID, &t.ClusterSize, &lastReeval,
		&metadata, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan threat: %w", err)
	}
	t.Description = description.String
	t.ClusterID = clusterID.String
	if lastReeval.Valid {
		t.LastReevaluation, _ = time.Parse(time.RFC3339Nano, lastReeval.String)
	}
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &t.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal threat metadata: %w", err)
		}
	}
	return &t, nil
}

// UpsertThreat inserts or replaces a threat keyed by id.
func (s *SQLiteStore) UpsertThreat(ctx context.Context, t model.Threat) error {
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("marshal threat metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO threats (id, content_hash, score, base_score, severity, status, type, description,
		                      delta_score, cluster_id, cluster_size, last_reevaluation, metadata_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   score = excluded.score,
		   base_score = excluded.base_score,
		   severity = excluded.severity,
		   status = excluded.status,
		   type = excluded.type,
		   description = excluded.description,
		   delta_score = excluded.delta_score,
		   cluster_id = excluded.cluster_id,
		   cluster_size = excluded.cluster_size,
		   last_reevaluation = excluded.last_reevaluation,
		   metadata_json = excluded.metadata_json,
		   updated_at = excluded.updated_at`,
		t.ID, t.ContentHash, t.Score, t.BaseScore, string(t.Severity), string(t.Status),
		t.Type, t.Description, t.DeltaScore, t.ClusterID, t.ClusterSize,
		t.LastReevaluation.UTC().Format(time.RFC3339Nano), string(metadata),
		t.CreatedAt.UTC().Format(time.RFC3339Nano), t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &model.DependencyError{Dep: "document store", Err: err}
	}
	return nil
}

// #endregion threats

// #region prescriptions

// GetPrescriptionByThreat returns the (single) prescription for a threat, or
// nil when none exists.
func (s *SQLiteStore) GetPrescriptionByThreat(ctx context.Context, threatID string) (*model.Prescription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, threat_id, priority, category, actions_json, estimated_time, resources_json, confidence, created_at, updated_at
		 FROM prescriptions WHERE threat_id = ?`, threatID)

	var p model.Prescription
	var actions string
	var estimatedTime, resources sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.ThreatID, &p.Priority, &p.Category, &actions,
		&estimatedTime, &resources, &p.Confidence, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan prescription: %w", err)
	}
	p.EstimatedTime = estimatedTime.String
	if err := json.Unmarshal([]byte(actions), &p.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	if resources.Valid && resources.String != "" {
		if err := json.Unmarshal([]byte(resources.String), &p.Resources); err != nil {
			return nil, fmt.Errorf("unmarshal resources: %w", err)
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &p, nil
}

// UpsertPrescription inserts or replaces a prescription keyed by id.
func (s *SQLiteStore) UpsertPrescription(ctx context.Context, p model.Prescription) error {
	actions, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	resources, err := json.Marshal(p.Resources)
	if err != nil {
		return fmt.Errorf("marshal resources: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO prescriptions (id, threat_id, priority, category, actions_json, estimated_time, resources_json, confidence, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   priority = excluded.priority,
		   category = excluded.category,
		   actions_json = excluded.actions_json,
		   estimated_time = excluded.estimated_time,
		   resources_json = excluded.resources_json,
		   confidence = excluded.confidence,
		   updated_at = excluded.updated_at`,
		p.ID, p.ThreatID, string(p.Priority), string(p.Category), string(actions),
		p.EstimatedTime, string(resources), p.Confidence,
		p.CreatedAt.UTC().Format(time.RFC3339Nano), p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &model.DependencyError{Dep: "document store", Err: err}
	}
	return nil
}

// #endregion prescriptions
