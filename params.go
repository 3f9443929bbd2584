package whisper

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ieee0824/whisper-go/decoder"
	"github.com/ieee0824/whisper-go/vocab"
)

// Task selects transcription or translation to English.
type Task = decoder.Task

const (
	TaskTranscribe = decoder.Transcribe
	TaskTranslate  = decoder.Translate
)

// Strategy selects the token search.
type Strategy = decoder.Strategy

const (
	Greedy     = decoder.Greedy
	BeamSearch = decoder.BeamSearch
)

// Params controls one Transcribe call.
type Params struct {
	// Language is a code ("de") or English name; "" or "auto" detects it
	// per window on multilingual models.
	Language string
	Task     Task

	Strategy      Strategy
	BeamWidth     int
	LengthPenalty float64

	MaxTokens           int // per window; 0 means half the text context
	Temperature         float64
	RepetitionPenalty   float64
	MaxInitialTimestamp time.Duration
	SuppressBlank       bool

	// CarryPrompt feeds the text of earlier windows to the next one.
	CarryPrompt bool
	// MaxWindows stops after that many windows; 0 means no limit.
	MaxWindows int

	// OnSegment is called in order for every segment as its window
	// completes.
	OnSegment func(Segment)
}

// DefaultParams returns greedy transcription with language detection.
func DefaultParams() Params {
	d := decoder.DefaultOptions()
	return Params{
		Language:            "auto",
		Task:                TaskTranscribe,
		Strategy:            Greedy,
		BeamWidth:           d.BeamWidth,
		LengthPenalty:       d.LengthPenalty,
		Temperature:         d.Temperature,
		RepetitionPenalty:   d.RepetitionPenalty,
		MaxInitialTimestamp: d.MaxInitialTimestamp,
		SuppressBlank:       d.SuppressBlank,
		CarryPrompt:         true,
	}
}

// language resolves p.Language against the model.
func (p Params) language(m *Model) (int, error) {
	raw := p.Language
	if strings.IndexByte(raw, 0) >= 0 {
		return 0, errors.New("language contains a NUL byte")
	}
	if !utf8.ValidString(raw) {
		return 0, errors.New("language is not valid UTF-8")
	}
	lang := vocab.NormalizeLang(raw)
	if lang == "" || lang == "auto" {
		return decoder.AutoLanguage, nil
	}
	id, ok := vocab.LangID(lang)
	if !ok {
		return 0, fmt.Errorf("unknown language %q", raw)
	}
	if n := m.vocab.NumLanguages(); n == 0 && id != 0 || n > 0 && id >= n {
		return 0, fmt.Errorf("language %q not supported by the model", raw)
	}
	return id, nil
}

// options validates p and converts it to decoder options.
func (p Params) options(m *Model) (decoder.Options, error) {
	lang, err := p.language(m)
	if err != nil {
		return decoder.Options{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if p.MaxWindows < 0 {
		return decoder.Options{}, fmt.Errorf("%w: max windows %d", ErrInvalidParams, p.MaxWindows)
	}
	if p.Temperature < 0 {
		return decoder.Options{}, fmt.Errorf("%w: temperature %g", ErrInvalidParams, p.Temperature)
	}
	opts := decoder.Options{
		Language:            lang,
		Task:                p.Task,
		Strategy:            p.Strategy,
		BeamWidth:           p.BeamWidth,
		LengthPenalty:       p.LengthPenalty,
		MaxTokens:           p.MaxTokens,
		Temperature:         p.Temperature,
		RepetitionPenalty:   p.RepetitionPenalty,
		MaxInitialTimestamp: p.MaxInitialTimestamp,
		SuppressBlank:       p.SuppressBlank,
	}
	if err := opts.Validate(m.vocab.NumLanguages()); err != nil {
		return decoder.Options{}, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return opts, nil
}
