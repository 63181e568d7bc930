// Package stage implements the pipeline stage handlers. Each handler is
// idempotent: it checks for its own output artifact before doing work, so
// a retried job never duplicates side effects.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"callpipe/internal/media"
	"callpipe/internal/queue"
	"callpipe/internal/speech"
	"callpipe/internal/storage"
	"callpipe/internal/store"
	"callpipe/pkg/models"

	"github.com/google/uuid"
)

// Deps are the collaborators shared by all stage handlers.
type Deps struct {
	Store           store.Store
	Queue           queue.Queue
	Storage         storage.Client
	Bucket          string
	StorageEndpoint string
	Transcoder      media.Transcoder
	Speech          speech.Client
	AI              models.AIProvider
	PollInterval    time.Duration
	Language        string
	Logger          *slog.Logger
}

// Runner dispatches a claimed job to its stage handler.
type Runner struct {
	deps Deps
}

func NewRunner(deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.PollInterval == 0 {
		deps.PollInterval = 10 * time.Second
	}
	return &Runner{deps: deps}
}

// Run executes one job. The stage set is closed; an unknown stage is a
// permanent failure.
func (r *Runner) Run(ctx context.Context, job *models.Job) error {
	switch job.Stage {
	case models.StageExtractAudio:
		return r.runExtractAudio(ctx, job)
	case models.StageTranscribeStart:
		return r.runTranscribeStart(ctx, job)
	case models.StageTranscribePoll:
		return r.runTranscribePoll(ctx, job)
	case models.StageAnalyze:
		return r.runAnalyze(ctx, job)
	case models.StagePersistAnalysis:
		return r.runPersistAnalysis(ctx, job)
	default:
		return fmt.Errorf("unknown stage: %q", job.Stage)
	}
}

// tempDir creates a scratch directory for one job run. The caller must
// call the returned cleanup.
func tempDir() (string, func(), error) {
	dir, err := os.MkdirTemp("", "call-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

func (r *Runner) objectExists(ctx context.Context, path string) (bool, error) {
	return r.deps.Storage.Exists(ctx, r.deps.Bucket, path)
}

// cleanupIfExists removes an object best-effort. Cleanup failures are
// logged and never fail the job.
func (r *Runner) cleanupIfExists(ctx context.Context, path string) {
	exists, err := r.objectExists(ctx, path)
	if err != nil || !exists {
		if err != nil {
			r.deps.Logger.Warn("cleanup check failed", "path", path, "error", err)
		}
		return
	}
	if err := r.deps.Storage.Remove(ctx, r.deps.Bucket, path); err != nil {
		r.deps.Logger.Warn("cleanup failed", "path", path, "error", err)
	}
}

func (r *Runner) registerArtifact(ctx context.Context, job *models.Job, kind, storagePath, contentType string, localFile string) error {
	artifact := &models.Artifact{
		ID:          uuid.New(),
		OrgID:       job.OrgID,
		CallID:      job.CallID,
		Kind:        kind,
		StoragePath: storagePath,
		ContentType: contentType,
	}
	if localFile != "" {
		if info, err := os.Stat(localFile); err == nil {
			size := info.Size()
			artifact.SizeBytes = &size
		}
	}
	if err := r.deps.Store.RegisterArtifact(ctx, artifact); err != nil {
		return fmt.Errorf("failed to register %s artifact: %w", kind, err)
	}
	return nil
}

func (r *Runner) download(ctx context.Context, objectPath, localDest string) error {
	if err := r.deps.Storage.Download(ctx, r.deps.Bucket, objectPath, localDest); err != nil {
		return fmt.Errorf("failed to download %s: %w", objectPath, err)
	}
	return nil
}

func (r *Runner) upload(ctx context.Context, objectPath, localSrc, contentType string) error {
	if err := r.deps.Storage.Upload(ctx, r.deps.Bucket, objectPath, localSrc, contentType); err != nil {
		return fmt.Errorf("failed to upload %s: %w", objectPath, err)
	}
	return nil
}

func localName(dir, name string) string {
	return filepath.Join(dir, filepath.Base(name))
}
