package decoder

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Strategy selects how the next token is chosen.
type Strategy int

const (
	Greedy Strategy = iota
	BeamSearch
)

func (s Strategy) String() string {
	switch s {
	case Greedy:
		return "greedy"
	case BeamSearch:
		return "beam_search"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// Task selects the task token written after the language.
type Task int

const (
	Transcribe Task = iota
	Translate
)

func (t Task) String() string {
	if t == Translate {
		return "translate"
	}
	return "transcribe"
}

// AutoLanguage asks the decoder to detect the language.
const AutoLanguage = -1

// Options holds decoding parameters for one window.
type Options struct {
	Language int // language id, or AutoLanguage
	Task     Task

	Strategy      Strategy
	BeamWidth     int     // hypotheses kept per step (BeamSearch)
	LengthPenalty float64 // <= 0 divides by length, otherwise ((5+L)/6)^α

	MaxTokens           int     // generated tokens per window; 0 means n_text_ctx/2
	Temperature         float64 // logits are divided by it when > 0
	RepetitionPenalty   float64 // 1 disables
	MaxInitialTimestamp time.Duration
	SuppressBlank       bool

	// Prompt holds text tokens of earlier windows, fed after Prev.
	Prompt []int

	Logger *slog.Logger
}

// DefaultOptions returns greedy decoding with language detection.
func DefaultOptions() Options {
	return Options{
		Language:          AutoLanguage,
		Task:              Transcribe,
		Strategy:          Greedy,
		BeamWidth:         5,
		LengthPenalty:     0,
		Temperature:       0,
		RepetitionPenalty: 1,
		SuppressBlank:     true,
	}
}

// ErrInvalidOptions is returned by Decode for inconsistent options.
var ErrInvalidOptions = errors.New("decoder: invalid options")

// Validate checks the options against a model with nLangs languages.
func (o Options) Validate(nLangs int) error {
	var errs []error
	switch o.Strategy {
	case Greedy:
	case BeamSearch:
		if o.BeamWidth < 1 {
			errs = append(errs, fmt.Errorf("beam width %d", o.BeamWidth))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown strategy %v", o.Strategy))
	}
	if o.Task != Transcribe && o.Task != Translate {
		errs = append(errs, fmt.Errorf("unknown task %d", int(o.Task)))
	}
	if o.Language != AutoLanguage && (o.Language < 0 || (nLangs > 0 && o.Language >= nLangs)) {
		errs = append(errs, fmt.Errorf("language %d not in model", o.Language))
	}
	if o.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("max tokens %d", o.MaxTokens))
	}
	if o.RepetitionPenalty < 0 {
		errs = append(errs, fmt.Errorf("repetition penalty %g", o.RepetitionPenalty))
	}
	if o.MaxInitialTimestamp < 0 {
		errs = append(errs, fmt.Errorf("max initial timestamp %v", o.MaxInitialTimestamp))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
	}
	return nil
}
