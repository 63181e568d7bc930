package speech

import (
	"strconv"
	"strings"
)

// Word is a recognized word with provider timing, in the provider's
// wire shape. Times are strings like "3.200s" or plain numbers.
type Word struct {
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Text       string `json:"text"`
	SpeakerTag string `json:"speakerTag"`
}

// Chunk is one recognition result for a channel.
type Chunk struct {
	ChannelTag string `json:"channelTag"`
	Words      []Word `json:"words"`
}

// Segment is a contiguous run of words by one speaker. Times and
// speaker stay nil when the provider did not supply them.
type Segment struct {
	StartSec *float64 `json:"start_sec"`
	EndSec   *float64 `json:"end_sec"`
	Speaker  *string  `json:"speaker"`
	Text     string   `json:"text"`
}

// ParseSeconds converts a provider duration like "12.5s" or "12.5"
// into seconds. It returns nil for empty or unparseable input.
func ParseSeconds(s string) *float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "s")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// BuildSegments groups consecutive same-speaker words into segments.
// Speaker runs never cross chunk boundaries. Segments whose text is
// empty after joining are dropped.
func BuildSegments(chunks []Chunk) []Segment {
	var segments []Segment
	for _, chunk := range chunks {
		var (
			cur   *Segment
			words []string
		)
		flush := func() {
			if cur == nil {
				return
			}
			cur.Text = strings.TrimSpace(strings.Join(words, " "))
			if cur.Text != "" {
				segments = append(segments, *cur)
			}
			cur = nil
			words = nil
		}
		for _, w := range chunk.Words {
			speaker := speakerLabel(w.SpeakerTag, chunk.ChannelTag)
			if cur == nil || !sameSpeaker(cur.Speaker, speaker) {
				flush()
				cur = &Segment{
					StartSec: ParseSeconds(w.StartTime),
					Speaker:  speaker,
				}
			}
			// A word without an end time keeps the last known end.
			if end := ParseSeconds(w.EndTime); end != nil {
				cur.EndSec = end
			}
			words = append(words, w.Text)
		}
		flush()
	}
	return segments
}

func speakerLabel(speakerTag, channelTag string) *string {
	if speakerTag != "" {
		s := "SPK" + speakerTag
		return &s
	}
	if channelTag != "" {
		s := "S" + channelTag
		return &s
	}
	return nil
}

func sameSpeaker(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
