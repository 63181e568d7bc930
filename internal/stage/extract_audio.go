package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"callpipe/internal/media"
	"callpipe/internal/queue"
	"callpipe/internal/storage"
	"callpipe/pkg/models"
)

// runExtractAudio promotes the raw upload into the normalized audio
// artifact. Transcript uploads skip audio entirely and feed their text
// straight into the transcription bypass.
func (r *Runner) runExtractAudio(ctx context.Context, job *models.Job) error {
	var p ExtractAudioPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return err
	}

	kind := media.InferProcessingKind(p.FileName)
	switch kind {
	case media.KindUnknown:
		return fmt.Errorf("unsupported file type for extract_audio: %s", p.FileName)
	case media.KindVideo:
		return fmt.Errorf("video uploads must be extracted client-side before upload: %s", p.FileName)
	}

	rawObjectPath := storage.RawPath(job.OrgID, job.CallID, p.FileName)

	if kind == media.KindTranscript {
		return r.extractTranscriptUpload(ctx, job, &p, rawObjectPath)
	}

	audioObjectPath := storage.AudioPath(job.OrgID, job.CallID)
	exists, err := r.objectExists(ctx, audioObjectPath)
	if err != nil {
		return fmt.Errorf("failed to check audio artifact: %w", err)
	}
	if exists {
		r.cleanupIfExists(ctx, rawObjectPath)
		return r.enqueueTranscribeStartIfNeeded(ctx, job, &p, audioObjectPath)
	}

	dir, cleanup, err := tempDir()
	if err != nil {
		return err
	}
	defer cleanup()

	rawFile := localName(dir, p.FileName)
	if err := r.download(ctx, rawObjectPath, rawFile); err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(p.FileName), ".mp3") {
		contentType := p.ContentType
		if contentType == "" {
			contentType = media.AudioContentType(p.FileName)
		}
		if err := r.upload(ctx, audioObjectPath, rawFile, contentType); err != nil {
			return err
		}
		if err := r.registerArtifact(ctx, job, models.ArtifactKindAudio, audioObjectPath, contentType, rawFile); err != nil {
			return err
		}
	} else {
		// Normalize everything else to mono 16 kHz mp3 so downstream
		// stages handle a single format.
		audioFile := filepath.Join(dir, job.CallID.String()+".mp3")
		if err := r.deps.Transcoder.ExtractMP3(ctx, rawFile, audioFile); err != nil {
			return fmt.Errorf("failed to extract audio from %s: %w", p.FileName, err)
		}
		if err := r.upload(ctx, audioObjectPath, audioFile, "audio/mpeg"); err != nil {
			return err
		}
		if err := r.registerArtifact(ctx, job, models.ArtifactKindAudio, audioObjectPath, "audio/mpeg", audioFile); err != nil {
			return err
		}
	}

	if err := r.deps.Storage.Remove(ctx, r.deps.Bucket, rawObjectPath); err != nil {
		return fmt.Errorf("failed to remove raw upload %s: %w", rawObjectPath, err)
	}
	return r.enqueueTranscribeStartIfNeeded(ctx, job, &p, audioObjectPath)
}

// extractTranscriptUpload reads a .vtt or .txt upload and routes its
// text into the manual transcription bypass.
func (r *Runner) extractTranscriptUpload(ctx context.Context, job *models.Job, p *ExtractAudioPayload, rawObjectPath string) error {
	transcriptText := p.TranscriptText
	if transcriptText == "" {
		dir, cleanup, err := tempDir()
		if err != nil {
			return err
		}
		defer cleanup()

		rawFile := localName(dir, p.FileName)
		if err := r.download(ctx, rawObjectPath, rawFile); err != nil {
			return err
		}
		content, err := os.ReadFile(rawFile)
		if err != nil {
			return fmt.Errorf("failed to read transcript upload: %w", err)
		}
		transcriptText = string(content)
	}
	r.cleanupIfExists(ctx, rawObjectPath)

	return r.deps.Queue.Enqueue(ctx, queue.EnqueueRequest{
		OrgID:  job.OrgID,
		CallID: job.CallID,
		Stage:  models.StageTranscribeStart,
		Payload: TranscribeStartPayload{
			AudioObjectPath:      storage.AudioPath(job.OrgID, job.CallID),
			TranscriptText:       transcriptText,
			AllowEmptyTranscript: p.AllowEmptyTranscript,
			SalesRepName:         p.SalesRepName,
			Source:               p.Source,
		},
	})
}

// enqueueTranscribeStartIfNeeded advances the pipeline unless a
// transcript artifact already exists from a previous run.
func (r *Runner) enqueueTranscribeStartIfNeeded(ctx context.Context, job *models.Job, p *ExtractAudioPayload, audioObjectPath string) error {
	transcriptObjectPath := storage.TranscriptPath(job.OrgID, job.CallID)
	exists, err := r.objectExists(ctx, transcriptObjectPath)
	if err != nil {
		return fmt.Errorf("failed to check transcript artifact: %w", err)
	}
	if exists {
		return nil
	}
	return r.deps.Queue.Enqueue(ctx, queue.EnqueueRequest{
		OrgID:  job.OrgID,
		CallID: job.CallID,
		Stage:  models.StageTranscribeStart,
		Payload: TranscribeStartPayload{
			AudioObjectPath:      audioObjectPath,
			TranscriptText:       p.TranscriptText,
			AllowEmptyTranscript: p.AllowEmptyTranscript,
			SalesRepName:         p.SalesRepName,
			Source:               p.Source,
		},
	})
}
