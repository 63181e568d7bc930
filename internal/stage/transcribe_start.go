package stage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"callpipe/internal/queue"
	"callpipe/internal/storage"
	"callpipe/pkg/models"
)

// manualOperationID marks a transcript supplied at upload time; the
// poll stage resolves it without calling the speech provider.
const manualOperationID = "manual"

// runTranscribeStart submits the normalized audio to the speech
// provider and schedules the first poll. A manual transcript bypasses
// conversion and the provider entirely.
func (r *Runner) runTranscribeStart(ctx context.Context, job *models.Job) error {
	var p TranscribeStartPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return err
	}

	transcriptObjectPath := storage.TranscriptPath(job.OrgID, job.CallID)
	transcriptAudioObjectPath := storage.TranscriptAudioPath(job.OrgID, job.CallID)

	exists, err := r.objectExists(ctx, transcriptObjectPath)
	if err != nil {
		return fmt.Errorf("failed to check transcript artifact: %w", err)
	}
	if exists {
		r.cleanupIfExists(ctx, transcriptAudioObjectPath)
		return r.enqueueAnalyze(ctx, job, transcriptObjectPath, p.SalesRepName, p.Source)
	}

	pollPayload := TranscribePollPayload{
		TranscriptObjectPath:      transcriptObjectPath,
		TranscriptAudioObjectPath: transcriptAudioObjectPath,
		TranscriptText:            p.TranscriptText,
		AllowEmptyTranscript:      p.AllowEmptyTranscript,
		SalesRepName:              p.SalesRepName,
		Source:                    p.Source,
	}

	if strings.TrimSpace(p.TranscriptText) != "" {
		pollPayload.OperationID = manualOperationID
		return r.enqueuePoll(ctx, job, pollPayload, time.Now())
	}

	audioExists, err := r.objectExists(ctx, p.AudioObjectPath)
	if err != nil {
		return fmt.Errorf("failed to check audio object: %w", err)
	}
	if !audioExists {
		// The uploader may still be writing; try again after a delay.
		return r.deps.Queue.EnqueueAt(ctx, queue.EnqueueRequest{
			OrgID:       job.OrgID,
			CallID:      job.CallID,
			Stage:       models.StageTranscribeStart,
			Payload:     p,
			MaxAttempts: job.MaxAttempts,
		}, time.Now().Add(r.deps.PollInterval))
	}

	dir, cleanup, err := tempDir()
	if err != nil {
		return err
	}
	defer cleanup()

	audioFile := filepath.Join(dir, job.CallID.String()+".mp3")
	oggFile := filepath.Join(dir, job.CallID.String()+".ogg")

	if err := r.download(ctx, p.AudioObjectPath, audioFile); err != nil {
		return err
	}
	if err := r.deps.Transcoder.ConvertOggOpus(ctx, audioFile, oggFile); err != nil {
		return fmt.Errorf("failed to convert audio for recognition: %w", err)
	}
	if err := r.upload(ctx, transcriptAudioObjectPath, oggFile, "audio/ogg"); err != nil {
		return err
	}

	audioURI := storage.ObjectURI(r.deps.StorageEndpoint, r.deps.Bucket, transcriptAudioObjectPath)
	operationID, err := r.deps.Speech.Start(ctx, audioURI)
	if err != nil {
		return fmt.Errorf("failed to start transcription: %w", err)
	}

	pollPayload.OperationID = operationID
	return r.enqueuePoll(ctx, job, pollPayload, time.Now().Add(r.deps.PollInterval))
}

func (r *Runner) enqueuePoll(ctx context.Context, job *models.Job, payload TranscribePollPayload, availableAt time.Time) error {
	return r.deps.Queue.EnqueueAt(ctx, queue.EnqueueRequest{
		OrgID:       job.OrgID,
		CallID:      job.CallID,
		Stage:       models.StageTranscribePoll,
		Payload:     payload,
		MaxAttempts: models.PollMaxAttempts,
	}, availableAt)
}
