// Package models contains shared data models used across the callpipe codebase.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage identifies one step of the call-processing pipeline. The set is
// closed; dispatch switches over it exhaustively.
type Stage string

const (
	StageExtractAudio    Stage = "extract_audio"
	StageTranscribeStart Stage = "transcribe_start"
	StageTranscribePoll  Stage = "transcribe_poll"
	StageAnalyze         Stage = "analyze"
	StagePersistAnalysis Stage = "persist_analysis"
)

// ParseStage validates a stage tag read from storage.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageExtractAudio, StageTranscribeStart, StageTranscribePoll, StageAnalyze, StagePersistAnalysis:
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown stage: %q", s)
}

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

// DefaultMaxAttempts is applied when an enqueue request does not set a ceiling.
const DefaultMaxAttempts = 5

// PollMaxAttempts is the ceiling for transcribe_poll jobs, which reschedule
// themselves many times while an external operation runs.
const PollMaxAttempts = 50

// Job is one unit of pipeline work. A row is claimed exclusively by a single
// worker at a time and is never deleted; terminal rows stay behind for audit.
type Job struct {
	ID          uuid.UUID       `db:"id"           json:"id"`
	OrgID       uuid.UUID       `db:"org_id"       json:"org_id"`
	CallID      uuid.UUID       `db:"call_id"      json:"call_id"`
	Stage       Stage           `db:"stage"        json:"stage"`
	Status      string          `db:"status"       json:"status"`
	Payload     json.RawMessage `db:"payload"      json:"payload"`
	Attempts    int             `db:"attempts"     json:"attempts"`
	MaxAttempts int             `db:"max_attempts" json:"max_attempts"`
	AvailableAt time.Time       `db:"available_at" json:"available_at"`
	LockedBy    *string         `db:"locked_by"    json:"locked_by,omitempty"`
	LockedAt    *time.Time      `db:"locked_at"    json:"locked_at,omitempty"`
	LastError   *string         `db:"last_error"   json:"last_error,omitempty"`
	CreatedAt   time.Time       `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"   json:"updated_at"`
}
