package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"callpipe/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The claim must stay a single statement: the CTE's FOR UPDATE SKIP LOCKED is
// what keeps concurrent claimers off the same row.
const claimSQL = `
WITH next_job AS (
  SELECT id
  FROM processing_jobs
  WHERE status = 'queued'
    AND available_at <= NOW()
  ORDER BY available_at ASC
  FOR UPDATE SKIP LOCKED
  LIMIT 1
)
UPDATE processing_jobs
SET status = 'processing',
    locked_at = NOW(),
    locked_by = $1,
    updated_at = NOW()
WHERE id IN (SELECT id FROM next_job)
RETURNING id, org_id, call_id, stage, status, payload, attempts, max_attempts,
          available_at, locked_by, locked_at, last_error, created_at, updated_at`

const enqueueSQL = `
INSERT INTO processing_jobs (org_id, call_id, stage, status, payload, max_attempts)
VALUES ($1, $2, $3, 'queued', $4, $5)`

const enqueueAtSQL = `
INSERT INTO processing_jobs (org_id, call_id, stage, status, payload, max_attempts, available_at)
VALUES ($1, $2, $3, 'queued', $4, $5, $6)`

const completeSQL = `
UPDATE processing_jobs
SET status = 'done',
    updated_at = NOW()
WHERE id = $1`

// available_at is left untouched on the terminal transition so the failure
// time remains visible for debugging.
const failSQL = `
UPDATE processing_jobs
SET status = CASE
      WHEN attempts + 1 >= max_attempts THEN 'failed'
      ELSE 'queued'
    END,
    attempts = attempts + 1,
    last_error = $2,
    available_at = CASE
      WHEN attempts + 1 >= max_attempts THEN available_at
      ELSE NOW() + ($3 * INTERVAL '1 second')
    END,
    updated_at = NOW()
WHERE id = $1`

// PostgresQueue implements Queue over a pgx connection pool.
type PostgresQueue struct {
	pool *pgxpool.Pool
}

func NewPostgresQueue(pool *pgxpool.Pool) *PostgresQueue {
	return &PostgresQueue{pool: pool}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, req EnqueueRequest) error {
	payload, maxAttempts, err := normalizeRequest(req)
	if err != nil {
		return err
	}
	if _, err := q.pool.Exec(ctx, enqueueSQL,
		req.OrgID, req.CallID, string(req.Stage), payload, maxAttempts); err != nil {
		return fmt.Errorf("enqueue %s job: %w", req.Stage, err)
	}
	return nil
}

func (q *PostgresQueue) EnqueueAt(ctx context.Context, req EnqueueRequest, availableAt time.Time) error {
	payload, maxAttempts, err := normalizeRequest(req)
	if err != nil {
		return err
	}
	if _, err := q.pool.Exec(ctx, enqueueAtSQL,
		req.OrgID, req.CallID, string(req.Stage), payload, maxAttempts, availableAt); err != nil {
		return fmt.Errorf("enqueue %s job at %s: %w", req.Stage, availableAt.Format(time.RFC3339), err)
	}
	return nil
}

func (q *PostgresQueue) Claim(ctx context.Context, workerID string) (*models.Job, error) {
	var (
		j        models.Job
		stageTag string
	)
	err := q.pool.QueryRow(ctx, claimSQL, workerID).Scan(
		&j.ID, &j.OrgID, &j.CallID, &stageTag, &j.Status, &j.Payload,
		&j.Attempts, &j.MaxAttempts, &j.AvailableAt,
		&j.LockedBy, &j.LockedAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	stage, err := models.ParseStage(stageTag)
	if err != nil {
		return nil, fmt.Errorf("claimed job %s: %w", j.ID, err)
	}
	j.Stage = stage
	return &j, nil
}

func (q *PostgresQueue) Complete(ctx context.Context, jobID uuid.UUID) error {
	if _, err := q.pool.Exec(ctx, completeSQL, jobID); err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	return nil
}

func (q *PostgresQueue) Fail(ctx context.Context, jobID uuid.UUID, errMsg string, backoff time.Duration) error {
	backoffSeconds := int64(backoff / time.Second)
	if backoffSeconds < 0 {
		backoffSeconds = 0
	}
	if _, err := q.pool.Exec(ctx, failSQL, jobID, truncateError(errMsg), backoffSeconds); err != nil {
		return fmt.Errorf("fail job %s: %w", jobID, err)
	}
	return nil
}

func normalizeRequest(req EnqueueRequest) ([]byte, int, error) {
	payload := []byte("{}")
	if req.Payload != nil {
		encoded, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode %s payload: %w", req.Stage, err)
		}
		payload = encoded
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxAttempts
	}
	return payload, maxAttempts, nil
}

// truncateError bounds the stored message without splitting UTF-8 runes.
func truncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	cut := MaxErrorLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

var _ Queue = (*PostgresQueue)(nil)
