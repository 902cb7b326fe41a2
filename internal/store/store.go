package store

// #region imports
import (
	"context"

	"github.com/ebrodeur/recoupement/internal/model"
)

// #endregion imports

// #region contracts

// DocumentStore is the narrow persistence contract the pipeline consumes.
// The core never owns the persistence format.
type DocumentStore interface {
	GetAllDocuments(ctx context.Context) ([]model.Document, error)
	InsertDocument(ctx context.Context, doc model.Document) error
	GetThreatByContentHash(ctx context.Context, hash string) (*model.Threat, error)
	UpsertThreat(ctx context.Context, t model.Threat) error
	GetPrescriptionByThreat(ctx context.Context, threatID string) (*model.Prescription, error)
	UpsertPrescription(ctx context.Context, p model.Prescription) error
}

// #endregion contracts
