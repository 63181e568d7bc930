package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"callpipe/internal/store"
	"callpipe/pkg/models"
)

// runPersistAnalysis decodes the stored analysis document, validates
// it, and writes it to the database in one transaction. A document
// already persisted under the same storage path is a no-op.
func (r *Runner) runPersistAnalysis(ctx context.Context, job *models.Job) error {
	var p PersistAnalysisPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return err
	}

	dir, cleanup, err := tempDir()
	if err != nil {
		return err
	}
	defer cleanup()

	analysisFile := filepath.Join(dir, job.CallID.String()+".analysis.json")
	if err := r.download(ctx, p.AnalysisObjectPath, analysisFile); err != nil {
		return err
	}

	raw, err := os.ReadFile(analysisFile)
	if err != nil {
		return fmt.Errorf("failed to read analysis file: %w", err)
	}

	var doc models.AnalysisDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode analysis document: %w", err)
	}
	if doc.Meta.TranscriptFilename == "" {
		doc.Meta.TranscriptFilename = p.TranscriptFileName
	}
	if doc.Meta.SalesRepName == "" {
		doc.Meta.SalesRepName = p.SalesRepName
	}
	if doc.Meta.Source == "" {
		doc.Meta.Source = p.Source
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	inserted, err := r.deps.Store.SaveAnalysis(ctx, store.SaveAnalysisParams{
		OrgID:       job.OrgID,
		CallID:      job.CallID,
		StoragePath: p.AnalysisObjectPath,
		Doc:         &doc,
	})
	if err != nil {
		return fmt.Errorf("failed to persist analysis: %w", err)
	}
	if !inserted {
		r.deps.Logger.Info("analysis already persisted",
			"call_id", job.CallID, "path", p.AnalysisObjectPath)
	}
	return nil
}
