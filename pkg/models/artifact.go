package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ArtifactKindAudio      = "audio"
	ArtifactKindTranscript = "transcript"
	ArtifactKindAnalysis   = "analysis"
)

// Artifact is a registered pointer to a stored output blob for a call.
// Registration is idempotent: the storage path is unique and duplicate
// registrations are no-ops.
type Artifact struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	OrgID       uuid.UUID `db:"org_id"       json:"org_id"`
	CallID      uuid.UUID `db:"call_id"      json:"call_id"`
	Kind        string    `db:"kind"         json:"kind"`
	StoragePath string    `db:"storage_path" json:"storage_path"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   *int64    `db:"size_bytes"   json:"size_bytes,omitempty"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}
