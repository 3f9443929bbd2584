// Package whisper transcribes speech with an encoder-decoder transformer
// running entirely in Go.
//
// A Model is loaded once and shared; each caller drives transcription
// through its own Session:
//
//	m, err := whisper.Load("tiny.wggm")
//	...
//	segs, err := m.NewSession().Transcribe(ctx, samples, whisper.DefaultParams())
package whisper

import (
	"fmt"
	"log/slog"

	"github.com/ieee0824/whisper-go/feature"
	"github.com/ieee0824/whisper-go/internal/telemetry"
	"github.com/ieee0824/whisper-go/model"
	"github.com/ieee0824/whisper-go/tensor"
	"github.com/ieee0824/whisper-go/vocab"
)

// Model is a loaded speech model with its compute backend. It is
// immutable and safe for concurrent use by many sessions, and must outlive
// them.
type Model struct {
	model    *model.Model
	vocab    *vocab.Vocab
	features feature.Config
	backend  tensor.Backend
	threads  int
	log      *slog.Logger
	recorder *telemetry.Recorder
}

// Option configures a Model.
type Option func(*Model)

// WithBackend selects the compute backend.
func WithBackend(be tensor.Backend) Option {
	return func(m *Model) {
		m.backend = be
	}
}

// WithThreads sets the worker count of the default accelerated backend.
// It has no effect together with WithBackend.
func WithThreads(n int) Option {
	return func(m *Model) {
		m.threads = n
	}
}

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		m.log = l
	}
}

// Load reads a model file.
func Load(path string, opts ...Option) (*Model, error) {
	mm, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	return New(mm, opts...)
}

// New wraps an already loaded model.
func New(mm *model.Model, opts ...Option) (*Model, error) {
	m := &Model{model: mm}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	m.log = m.log.With("component", "whisper")
	if m.backend == nil {
		m.backend = tensor.Accelerated(m.threads)
	}

	hp := mm.HParams()
	voc, err := vocab.New(mm.Tokens(), hp.NLangs, hp.NAudioCtx+1)
	if err != nil {
		return nil, fmt.Errorf("whisper: vocabulary: %w", err)
	}
	m.vocab = voc
	m.features = feature.Config{
		SampleRate:   hp.SampleRate,
		NumMels:      hp.NMels,
		FFTSize:      hp.NFFT,
		WindowLength: hp.WindowLength,
		HopLength:    hp.HopLength,
		ChunkFrames:  hp.WindowFrames(),
	}
	if err := m.features.Validate(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	m.recorder = telemetry.NewRecorder(m.log)

	m.log.Debug("model ready",
		"backend", m.backend.Name(),
		"vocab", voc.Size(),
		"multilingual", hp.IsMultilingual(),
		"audio_ctx", hp.NAudioCtx)
	return m, nil
}

// HParams returns the architecture hyperparameters.
func (m *Model) HParams() model.HParams { return m.model.HParams() }

// Vocab returns the model vocabulary.
func (m *Model) Vocab() *vocab.Vocab { return m.vocab }

// Backend returns the name of the compute backend.
func (m *Model) Backend() string { return m.backend.Name() }

// IsMultilingual reports whether the model has more than one language.
func (m *Model) IsMultilingual() bool { return m.model.HParams().IsMultilingual() }

// TokenTranslate returns the id of the Translate task token.
func (m *Model) TokenTranslate() int { return m.vocab.Translate() }

// TokenTranscribe returns the id of the Transcribe task token.
func (m *Model) TokenTranscribe() int { return m.vocab.Transcribe() }

// Stats are cumulative counters over every session of a Model.
type Stats struct {
	Runs          uint64
	ActiveRuns    int64
	Windows       uint64
	Tokens        uint64
	Segments      uint64
	BudgetHits    uint64
	Cancellations uint64
	Errors        uint64
}

// Stats returns the counters recorded so far.
func (m *Model) Stats() Stats {
	s := m.recorder.Snapshot()
	return Stats{
		Runs:          s.TotalRuns,
		ActiveRuns:    s.ActiveRuns,
		Windows:       s.TotalWindows,
		Tokens:        s.TotalTokens,
		Segments:      s.TotalSegments,
		BudgetHits:    s.TotalBudgetHits,
		Cancellations: s.TotalCancellations,
		Errors:        s.TotalErrors,
	}
}
