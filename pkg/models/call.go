package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	CallStatusQueued      = "queued"
	CallStatusProcessing  = "processing"
	CallStatusTranscribed = "transcribed"
)

// Call is the business entity a pipeline run operates on. The API layer owns
// most of its lifecycle; the pipeline only marks it transcribed once the
// transcript artifact is durable.
type Call struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	OrgID          uuid.UUID `db:"org_id"          json:"org_id"`
	FileName       string    `db:"file_name"       json:"file_name"`
	Status         string    `db:"status"          json:"status"`
	UploadStatus   string    `db:"upload_status"   json:"upload_status"`
	UploadProgress int       `db:"upload_progress" json:"upload_progress"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"      json:"updated_at"`
}
