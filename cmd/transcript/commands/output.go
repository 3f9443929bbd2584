package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-yaml"

	whisper "github.com/ieee0824/whisper-go"
)

var (
	timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	fileStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
)

// fileResult is one file in structured output.
type fileResult struct {
	File     string            `json:"file" yaml:"file"`
	Segments []whisper.Segment `json:"segments" yaml:"segments"`
}

type writer struct {
	format string
	out    io.Writer
	files  int
}

func newWriter(format string, out io.Writer) (*writer, error) {
	switch format {
	case "text", "json", "yaml", "srt":
		return &writer{format: format, out: out}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text, json, yaml or srt)", format)
}

// segment prints one text line as it completes.
func (w *writer) segment(s whisper.Segment) {
	fmt.Fprintln(w.out, textLine(s))
}

// write emits the segments of one file. streamed reports whether text
// lines were already printed by segment.
func (w *writer) write(file string, segs []whisper.Segment, streamed bool) error {
	defer func() { w.files++ }()
	switch w.format {
	case "json":
		data, err := json.MarshalIndent(fileResult{File: file, Segments: nonNil(segs)}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w.out, "%s\n", data)
		return err
	case "yaml":
		data, err := yaml.Marshal([]fileResult{{File: file, Segments: nonNil(segs)}})
		if err != nil {
			return err
		}
		_, err = w.out.Write(data)
		return err
	case "srt":
		_, err := io.WriteString(w.out, SRT(segs))
		return err
	}
	if w.files > 0 {
		fmt.Fprintln(w.out)
	}
	fmt.Fprintln(w.out, fileStyle.Render(file))
	if streamed {
		return nil
	}
	for _, s := range segs {
		if _, err := fmt.Fprintln(w.out, textLine(s)); err != nil {
			return err
		}
	}
	return nil
}

func textLine(s whisper.Segment) string {
	ts := fmt.Sprintf("[%s --> %s]", whisper.FormatTimestamp(s.StartMs, '.'), whisper.FormatTimestamp(s.EndMs, '.'))
	return timeStyle.Render(ts) + " " + strings.TrimSpace(s.Text)
}

// SRT renders segments as SubRip subtitles.
func SRT(segs []whisper.Segment) string {
	var b strings.Builder
	for i, s := range segs {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1,
			whisper.FormatTimestamp(s.StartMs, ','),
			whisper.FormatTimestamp(s.EndMs, ','),
			strings.TrimSpace(s.Text))
	}
	return b.String()
}

func nonNil(segs []whisper.Segment) []whisper.Segment {
	if segs == nil {
		return []whisper.Segment{}
	}
	return segs
}
