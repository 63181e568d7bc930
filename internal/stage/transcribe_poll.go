package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"callpipe/internal/queue"
	"callpipe/internal/speech"
	"callpipe/pkg/models"
)

// transcriptDoc is the durable transcript artifact format.
type transcriptDoc struct {
	Language string           `json:"language"`
	Provider string           `json:"provider"`
	Segments []speech.Segment `json:"segments"`
}

// runTranscribePoll checks the recognition operation and, once done,
// writes the transcript artifact and advances to analysis. Pending
// operations reschedule the poll.
func (r *Runner) runTranscribePoll(ctx context.Context, job *models.Job) error {
	var p TranscribePollPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return err
	}

	exists, err := r.objectExists(ctx, p.TranscriptObjectPath)
	if err != nil {
		return fmt.Errorf("failed to check transcript artifact: %w", err)
	}
	if exists {
		r.cleanupIfExists(ctx, p.TranscriptAudioObjectPath)
		return r.finishTranscription(ctx, job, &p)
	}

	var doc transcriptDoc
	if p.OperationID == manualOperationID {
		doc, err = r.resolveManualTranscript(&p)
		if err != nil {
			return err
		}
	} else {
		status, statusErr := r.deps.Speech.Status(ctx, p.OperationID)
		if statusErr != nil {
			return fmt.Errorf("failed to poll transcription: %w", statusErr)
		}
		if !status.Done {
			return r.enqueuePoll(ctx, job, p, time.Now().Add(r.deps.PollInterval))
		}
		if status.ErrorMessage != "" {
			return fmt.Errorf("transcription operation failed: %s", status.ErrorMessage)
		}

		chunks, fetchErr := r.deps.Speech.FetchResult(ctx, p.OperationID)
		if fetchErr != nil {
			return fmt.Errorf("failed to fetch transcription result: %w", fetchErr)
		}
		segments := speech.BuildSegments(chunks)
		if len(segments) == 0 && !p.AllowEmptyTranscript {
			return fmt.Errorf("speech provider returned empty transcript for operation %s", p.OperationID)
		}
		doc = transcriptDoc{
			Language: r.deps.Language,
			Provider: "speechkit",
			Segments: segments,
		}
	}

	dir, cleanup, err := tempDir()
	if err != nil {
		return err
	}
	defer cleanup()

	transcriptFile := filepath.Join(dir, job.CallID.String()+".json")
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode transcript: %w", err)
	}
	if err := os.WriteFile(transcriptFile, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write transcript file: %w", err)
	}

	if err := r.upload(ctx, p.TranscriptObjectPath, transcriptFile, "application/json"); err != nil {
		return err
	}
	if err := r.registerArtifact(ctx, job, models.ArtifactKindTranscript, p.TranscriptObjectPath, "application/json", transcriptFile); err != nil {
		return err
	}
	r.cleanupIfExists(ctx, p.TranscriptAudioObjectPath)

	return r.finishTranscription(ctx, job, &p)
}

// resolveManualTranscript turns upload-time transcript text into the
// same artifact shape recognition produces. Timing and speaker are
// unknown, so the document carries a single untimed segment.
func (r *Runner) resolveManualTranscript(p *TranscribePollPayload) (transcriptDoc, error) {
	text := strings.TrimSpace(p.TranscriptText)
	if text == "" && !p.AllowEmptyTranscript {
		return transcriptDoc{}, fmt.Errorf("manual transcript is empty")
	}
	doc := transcriptDoc{
		Language: r.deps.Language,
		Provider: "manual",
	}
	if text != "" {
		doc.Segments = []speech.Segment{{Text: text}}
	}
	return doc, nil
}

// finishTranscription marks the call transcribed and hands off to the
// analyze stage.
func (r *Runner) finishTranscription(ctx context.Context, job *models.Job, p *TranscribePollPayload) error {
	if err := r.deps.Store.UpdateCallStatus(ctx, job.CallID, models.CallStatusTranscribed); err != nil {
		return fmt.Errorf("failed to mark call transcribed: %w", err)
	}
	return r.enqueueAnalyze(ctx, job, p.TranscriptObjectPath, p.SalesRepName, p.Source)
}

func (r *Runner) enqueueAnalyze(ctx context.Context, job *models.Job, transcriptObjectPath, salesRepName, source string) error {
	return r.deps.Queue.Enqueue(ctx, queue.EnqueueRequest{
		OrgID:  job.OrgID,
		CallID: job.CallID,
		Stage:  models.StageAnalyze,
		Payload: AnalyzePayload{
			TranscriptObjectPath: transcriptObjectPath,
			TranscriptFileName:   filepath.Base(transcriptObjectPath),
			SalesRepName:         salesRepName,
			Source:               source,
		},
	})
}
