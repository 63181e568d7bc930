// Package media classifies uploaded call recordings and shells out to
// ffmpeg for the conversions the pipeline needs.
package media

import (
	"path/filepath"
	"strings"
)

// Kind is the processing category of an uploaded file.
type Kind string

const (
	KindAudio      Kind = "audio"
	KindVideo      Kind = "video"
	KindTranscript Kind = "transcript"
	KindUnknown    Kind = "unknown"
)

// InferProcessingKind decides how the pipeline should treat a file,
// based on its name alone. Files carrying an ".audio." marker are
// client-side audio extractions of a video and count as audio even
// when the outer extension is a container format.
func InferProcessingKind(fileName string) Kind {
	name := strings.ToLower(fileName)
	ext := filepath.Ext(name)

	switch ext {
	case ".vtt", ".txt":
		return KindTranscript
	}

	if strings.Contains(name, ".audio.") && (ext == ".m4a" || ext == ".webm") {
		return KindAudio
	}

	switch ext {
	case ".mp3", ".wav", ".ogg", ".m4a":
		return KindAudio
	case ".mp4", ".webm":
		return KindVideo
	}
	return KindUnknown
}

// AudioContentType returns the MIME type to store an audio upload
// under. Unrecognized extensions fall back to octet-stream.
func AudioContentType(fileName string) string {
	switch filepath.Ext(strings.ToLower(fileName)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".webm":
		return "audio/webm"
	}
	return "application/octet-stream"
}
