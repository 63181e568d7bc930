package store

import (
	"context"
	"errors"

	"callpipe/pkg/models"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface for everything outside the job queue.
// All database operations of the stage handlers go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateCall(ctx context.Context, call *models.Call) error
	GetCall(ctx context.Context, id uuid.UUID) (*models.Call, error)
	// UpdateCallStatus is tolerant of a missing row: smoke-test pipelines run
	// against call ids that were never registered by the API layer.
	UpdateCallStatus(ctx context.Context, id uuid.UUID, status string) error

	// RegisterArtifact is idempotent: a second registration of the same
	// storage path is a no-op, not an error.
	RegisterArtifact(ctx context.Context, artifact *models.Artifact) error
	ListArtifacts(ctx context.Context, callID uuid.UUID) ([]*models.Artifact, error)

	// SaveAnalysis persists a validated analysis document in one transaction.
	// If a call_analyses row already references storagePath the transaction is
	// rolled back and inserted is false. Any mid-sequence failure rolls back
	// every row of the document.
	SaveAnalysis(ctx context.Context, params SaveAnalysisParams) (inserted bool, err error)
	GetAnalysisByPath(ctx context.Context, storagePath string) (*models.CallAnalysis, error)
}

// SaveAnalysisParams carries one analysis document to its transactional write.
type SaveAnalysisParams struct {
	OrgID       uuid.UUID
	CallID      uuid.UUID
	StoragePath string
	Doc         *models.AnalysisDocument
}
