package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Storage paths are deterministic per (org, call, stage) so re-runs find
// their own artifacts and different calls never collide.

func RawPath(orgID, callID uuid.UUID, fileName string) string {
	return fmt.Sprintf("orgs/%s/calls/%s/raw/%s", orgID, callID, fileName)
}

func AudioPath(orgID, callID uuid.UUID) string {
	return fmt.Sprintf("orgs/%s/calls/%s/artifacts/audio/%s.mp3", orgID, callID, callID)
}

func TranscriptPath(orgID, callID uuid.UUID) string {
	return fmt.Sprintf("orgs/%s/calls/%s/artifacts/transcript/%s.json", orgID, callID, callID)
}

// TranscriptAudioPath is the intermediate ogg/opus object submitted to the
// transcription provider; it is removed once the transcript is durable.
func TranscriptAudioPath(orgID, callID uuid.UUID) string {
	return fmt.Sprintf("orgs/%s/calls/%s/artifacts/transcript/%s.ogg", orgID, callID, callID)
}

func AnalysisPath(orgID, callID, analysisID uuid.UUID) string {
	return fmt.Sprintf("orgs/%s/calls/%s/artifacts/analysis/%s.json", orgID, callID, analysisID)
}

// ObjectURI builds the provider-facing URI for a stored object.
func ObjectURI(endpoint, bucket, objectPath string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(endpoint, "/"), bucket, objectPath)
}
