package stage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Payloads are typed per stage and validated as soon as a job is
// decoded; a malformed payload fails the job before any side effects.

type payload interface {
	Validate() error
}

func decodePayload[T payload](raw json.RawMessage, dst T) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	if err := dst.Validate(); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// ExtractAudioPayload describes the uploaded file the pipeline starts
// from.
type ExtractAudioPayload struct {
	FileName             string `json:"fileName"`
	ContentType          string `json:"contentType,omitempty"`
	SalesRepName         string `json:"salesRepName,omitempty"`
	Source               string `json:"source,omitempty"`
	TranscriptText       string `json:"transcriptText,omitempty"`
	AllowEmptyTranscript bool   `json:"allowEmptyTranscript,omitempty"`
}

func (p *ExtractAudioPayload) Validate() error {
	if p.FileName == "" {
		return errors.New("fileName is required")
	}
	return nil
}

// TranscribeStartPayload points at the normalized audio artifact.
type TranscribeStartPayload struct {
	AudioObjectPath      string `json:"audioObjectPath"`
	TranscriptText       string `json:"transcriptText,omitempty"`
	AllowEmptyTranscript bool   `json:"allowEmptyTranscript,omitempty"`
	SalesRepName         string `json:"salesRepName,omitempty"`
	Source               string `json:"source,omitempty"`
}

func (p *TranscribeStartPayload) Validate() error {
	if p.AudioObjectPath == "" {
		return errors.New("audioObjectPath is required")
	}
	return nil
}

// TranscribePollPayload tracks a started recognition operation.
// OperationID "manual" marks a transcript supplied at upload time.
type TranscribePollPayload struct {
	OperationID               string `json:"operationId"`
	TranscriptObjectPath      string `json:"transcriptObjectPath"`
	TranscriptAudioObjectPath string `json:"transcriptAudioObjectPath"`
	TranscriptText            string `json:"transcriptText,omitempty"`
	AllowEmptyTranscript      bool   `json:"allowEmptyTranscript,omitempty"`
	SalesRepName              string `json:"salesRepName,omitempty"`
	Source                    string `json:"source,omitempty"`
}

func (p *TranscribePollPayload) Validate() error {
	if p.OperationID == "" {
		return errors.New("operationId is required")
	}
	if p.TranscriptObjectPath == "" {
		return errors.New("transcriptObjectPath is required")
	}
	if p.TranscriptAudioObjectPath == "" {
		return errors.New("transcriptAudioObjectPath is required")
	}
	return nil
}

// AnalyzePayload points at the transcript artifact to review.
type AnalyzePayload struct {
	TranscriptObjectPath string `json:"transcriptObjectPath"`
	TranscriptFileName   string `json:"transcriptFileName,omitempty"`
	SalesRepName         string `json:"salesRepName,omitempty"`
	Source               string `json:"source,omitempty"`
}

func (p *AnalyzePayload) Validate() error {
	if p.TranscriptObjectPath == "" {
		return errors.New("transcriptObjectPath is required")
	}
	return nil
}

// PersistAnalysisPayload points at the analysis artifact to persist.
type PersistAnalysisPayload struct {
	AnalysisObjectPath string `json:"analysisObjectPath"`
	TranscriptFileName string `json:"transcriptFileName,omitempty"`
	SalesRepName       string `json:"salesRepName,omitempty"`
	Source             string `json:"source,omitempty"`
}

func (p *PersistAnalysisPayload) Validate() error {
	if p.AnalysisObjectPath == "" {
		return errors.New("analysisObjectPath is required")
	}
	return nil
}
