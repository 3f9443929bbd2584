package whisper

import (
	"fmt"
	"time"
)

// Segment is a span of transcribed text with offsets from the start of
// the audio.
type Segment struct {
	Num     int    `json:"num" yaml:"num"`
	StartMs int64  `json:"start_ms" yaml:"start_ms"`
	EndMs   int64  `json:"end_ms" yaml:"end_ms"`
	Text    string `json:"text" yaml:"text"`
	Tokens  []int  `json:"tokens" yaml:"tokens"`
}

// Start returns the segment start as a duration.
func (s Segment) Start() time.Duration { return time.Duration(s.StartMs) * time.Millisecond }

// End returns the segment end as a duration.
func (s Segment) End() time.Duration { return time.Duration(s.EndMs) * time.Millisecond }

func (s Segment) String() string {
	return fmt.Sprintf("[%s --> %s] %s", FormatTimestamp(s.StartMs, '.'), FormatTimestamp(s.EndMs, '.'), s.Text)
}

// FormatTimestamp renders ms as hh:mm:ss followed by sep and milliseconds.
func FormatTimestamp(ms int64, sep byte) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, ms%1000)
}
