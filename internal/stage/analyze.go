package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"callpipe/internal/ai"
	"callpipe/internal/queue"
	"callpipe/internal/storage"
	"callpipe/pkg/models"
)

const defaultSalesRepName = "Unknown"

// runAnalyze feeds the transcript to the AI provider and stores the
// structured review as an artifact. The analysis object is keyed by
// job id so a retried job finds its own output.
func (r *Runner) runAnalyze(ctx context.Context, job *models.Job) error {
	var p AnalyzePayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return err
	}

	analysisObjectPath := storage.AnalysisPath(job.OrgID, job.CallID, job.ID)
	exists, err := r.objectExists(ctx, analysisObjectPath)
	if err != nil {
		return fmt.Errorf("failed to check analysis artifact: %w", err)
	}
	if exists {
		return r.enqueuePersist(ctx, job, &p, analysisObjectPath)
	}

	transcriptFileName := p.TranscriptFileName
	if transcriptFileName == "" {
		transcriptFileName = filepath.Base(p.TranscriptObjectPath)
	}
	salesRepName := p.SalesRepName
	if salesRepName == "" {
		salesRepName = defaultSalesRepName
	}

	dir, cleanup, err := tempDir()
	if err != nil {
		return err
	}
	defer cleanup()

	transcriptFile := filepath.Join(dir, job.CallID.String()+".json")
	if err := r.download(ctx, p.TranscriptObjectPath, transcriptFile); err != nil {
		return err
	}
	transcriptJSON, err := os.ReadFile(transcriptFile)
	if err != nil {
		return fmt.Errorf("failed to read transcript file: %w", err)
	}

	systemPrompt, userTemplate, err := ai.LoadAnalysisPrompt()
	if err != nil {
		return err
	}
	userPrompt := ai.RenderUserPrompt(userTemplate, ai.PromptVars{
		TranscriptFilename: transcriptFileName,
		SalesRepName:       salesRepName,
		TranscriptText:     string(transcriptJSON),
		CallID:             job.CallID.String(),
		Source:             p.Source,
	})

	result, err := r.deps.AI.Generate(ctx, models.GenerateRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		SchemaName:   ai.SchemaName,
		Schema:       ai.ReviewSchema(),
	})
	if err != nil {
		return fmt.Errorf("analysis generation failed: %w", err)
	}

	output := result.JSON
	if output == nil {
		// Keep unparseable output around for inspection instead of
		// losing the run.
		wrapped, marshalErr := json.Marshal(map[string]string{"raw_text": result.Text})
		if marshalErr != nil {
			return fmt.Errorf("failed to wrap raw analysis output: %w", marshalErr)
		}
		output = wrapped
	}

	analysisFile := filepath.Join(dir, job.CallID.String()+".analysis.json")
	if err := os.WriteFile(analysisFile, output, 0o644); err != nil {
		return fmt.Errorf("failed to write analysis file: %w", err)
	}
	if err := r.upload(ctx, analysisObjectPath, analysisFile, "application/json"); err != nil {
		return err
	}
	if err := r.registerArtifact(ctx, job, models.ArtifactKindAnalysis, analysisObjectPath, "application/json", analysisFile); err != nil {
		return err
	}

	return r.enqueuePersist(ctx, job, &p, analysisObjectPath)
}

func (r *Runner) enqueuePersist(ctx context.Context, job *models.Job, p *AnalyzePayload, analysisObjectPath string) error {
	transcriptFileName := p.TranscriptFileName
	if transcriptFileName == "" {
		transcriptFileName = filepath.Base(p.TranscriptObjectPath)
	}
	return r.deps.Queue.Enqueue(ctx, queue.EnqueueRequest{
		OrgID:  job.OrgID,
		CallID: job.CallID,
		Stage:  models.StagePersistAnalysis,
		Payload: PersistAnalysisPayload{
			AnalysisObjectPath: analysisObjectPath,
			TranscriptFileName: transcriptFileName,
			SalesRepName:       p.SalesRepName,
			Source:             p.Source,
		},
	})
}
