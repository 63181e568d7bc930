package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// stderr tail kept on ffmpeg failure, in bytes.
const stderrTailLimit = 8000

// Transcoder converts audio files between the formats the pipeline
// uses. Implementations operate on local file paths.
type Transcoder interface {
	// ExtractMP3 converts src into a mono 16 kHz MP3 at dst.
	ExtractMP3(ctx context.Context, src, dst string) error
	// ConvertOggOpus converts src into an OGG/Opus file at dst,
	// 48 kHz at 32 kbps, the format the speech provider ingests.
	ConvertOggOpus(ctx context.Context, src, dst string) error
}

// FFmpeg runs a local ffmpeg binary.
type FFmpeg struct {
	// Binary is the ffmpeg executable. Empty means "ffmpeg" on PATH.
	Binary string
}

func (f *FFmpeg) binary() string {
	if f.Binary != "" {
		return f.Binary
	}
	return "ffmpeg"
}

func (f *FFmpeg) ExtractMP3(ctx context.Context, src, dst string) error {
	return f.run(ctx, "-y", "-i", src, "-vn", "-acodec", "libmp3lame", "-ar", "16000", "-ac", "1", dst)
}

func (f *FFmpeg) ConvertOggOpus(ctx context.Context, src, dst string) error {
	return f.run(ctx, "-y", "-i", src, "-vn", "-c:a", "libopus", "-ar", "48000", "-b:a", "32k", dst)
}

func (f *FFmpeg) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, f.binary(), args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, stderrTail(stderr.Bytes()))
	}
	return nil
}

func stderrTail(b []byte) string {
	if len(b) > stderrTailLimit {
		b = b[len(b)-stderrTailLimit:]
	}
	return string(b)
}
