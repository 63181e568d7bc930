// Package queue implements the durable job queue on top of a single
// relational table with row-level locking.
package queue

import (
	"context"
	"time"

	"callpipe/pkg/models"

	"github.com/google/uuid"
)

// MaxErrorLength bounds the stored last_error column.
const MaxErrorLength = 2000

// EnqueueRequest describes a new job. Payload must JSON-encode; nil becomes
// an empty object. MaxAttempts zero means the default ceiling.
type EnqueueRequest struct {
	OrgID       uuid.UUID
	CallID      uuid.UUID
	Stage       models.Stage
	Payload     any
	MaxAttempts int
}

// Queue is the work-table contract. The queue applies whatever backoff the
// caller computes; retry policy lives with the worker loop.
type Queue interface {
	Enqueue(ctx context.Context, req EnqueueRequest) error
	EnqueueAt(ctx context.Context, req EnqueueRequest, availableAt time.Time) error
	// Claim atomically selects the oldest eligible row, marks it processing,
	// and returns it. Concurrent claimers never receive the same row.
	// Returns (nil, nil) when no eligible row exists.
	Claim(ctx context.Context, workerID string) (*models.Job, error)
	Complete(ctx context.Context, jobID uuid.UUID) error
	// Fail increments attempts; when the ceiling is reached the job becomes
	// terminally failed, otherwise it re-queues after backoff.
	Fail(ctx context.Context, jobID uuid.UUID, errMsg string, backoff time.Duration) error
}
