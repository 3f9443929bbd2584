package whisper

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ieee0824/whisper-go/audio"
	"github.com/ieee0824/whisper-go/decoder"
	"github.com/ieee0824/whisper-go/encoder"
	"github.com/ieee0824/whisper-go/feature"
	"github.com/ieee0824/whisper-go/internal/telemetry"
	"github.com/ieee0824/whisper-go/model"
)

// minTailFrames is the smallest remainder, in frames, worth another window.
const minTailFrames = 100

// Session transcribes audio with a shared Model. It carries the prompt
// between windows and calls and must not be used concurrently; overlapping
// calls fail with ErrSessionBusy.
type Session struct {
	m   *Model
	id  string
	log *slog.Logger

	busy      atomic.Bool
	cancelled atomic.Bool

	prompt   []int
	segments []Segment
}

// NewSession returns an idle session.
func (m *Model) NewSession() *Session {
	id := uuid.NewString()
	return &Session{
		m:   m,
		id:  id,
		log: m.log.With("session_id", id),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Cancelled reports whether the last Transcribe call stopped because its
// context was cancelled.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// Segments returns the segments of the last Transcribe call.
func (s *Session) Segments() []Segment { return slices.Clone(s.segments) }

// Reset forgets the carried prompt and the last segments.
func (s *Session) Reset() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrSessionBusy
	}
	defer s.busy.Store(false)
	s.prompt = nil
	s.segments = nil
	s.cancelled.Store(false)
	return nil
}

// Transcribe is shorthand for m.NewSession().Transcribe.
func Transcribe(ctx context.Context, m *Model, samples []float32, p Params) ([]Segment, error) {
	return m.NewSession().Transcribe(ctx, samples, p)
}

// TranscribePCM resamples mono samples recorded at rate to the model rate
// and transcribes them.
func (s *Session) TranscribePCM(ctx context.Context, samples []float32, rate int, p Params) ([]Segment, error) {
	want := s.m.features.SampleRate
	if rate != want {
		if err := audio.Validate(samples); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
		var err error
		if samples, err = audio.Resample(samples, rate, want); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}
	return s.Transcribe(ctx, samples, p)
}

// Transcribe converts mono samples at the model sample rate into segments
// ordered by time. A cancelled ctx ends the call early with the segments
// completed so far and a nil error; Cancelled then reports true.
func (s *Session) Transcribe(ctx context.Context, samples []float32, p Params) (segs []Segment, err error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrSessionBusy
	}
	defer s.busy.Store(false)
	s.cancelled.Store(false)

	opts, err := p.options(s.m)
	if err != nil {
		return nil, err
	}
	opts.Logger = s.log
	if len(samples) > 0 {
		if err := audio.Validate(samples); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}

	cfg := s.m.features
	durationMs := int64(len(samples)) * 1000 / int64(cfg.SampleRate)
	run := s.m.recorder.StartRun(s.id, durationMs)
	defer func() { run.Finish(err) }()

	spec, err := feature.Extract(samples, cfg)
	if err != nil {
		return nil, err
	}

	var (
		frameMs   = int64(model.FrameMs)
		window    = cfg.ChunkFrames
		content   = spec.ContentFrames
		seek      int
		windows   int
		allBudget = true
		out       []Segment
	)
	for seek < content {
		if windows > 0 && content-seek < minTailFrames {
			break
		}
		if p.MaxWindows > 0 && windows >= p.MaxWindows {
			break
		}
		if ctx.Err() != nil {
			s.markCancelled(run)
			break
		}

		enc, err := encoder.Encode(spec.Window(seek, window), s.m.model, s.m.backend)
		if err != nil {
			return nil, &TranscribeError{Window: windows, Err: err}
		}
		if p.CarryPrompt {
			opts.Prompt = s.prompt
		}
		res, err := decoder.Decode(ctx, enc, s.m.model, s.m.vocab, s.m.backend, opts)
		if err != nil {
			return nil, &TranscribeError{Window: windows, Err: err}
		}

		offsetMs := int64(seek) * frameMs
		added := 0
		for _, ds := range res.Segments {
			start := offsetMs + ds.StartMs
			if start >= durationMs {
				continue
			}
			seg := Segment{
				Num:     len(out),
				StartMs: start,
				EndMs:   min(offsetMs+ds.EndMs, durationMs),
				Text:    ds.Text,
				Tokens:  ds.Tokens,
			}
			out = append(out, seg)
			added++
			if p.CarryPrompt {
				s.carry(ds.Tokens)
			}
			if p.OnSegment != nil {
				p.OnSegment(seg)
			}
		}
		if !res.BudgetHit {
			allBudget = false
		}
		run.RecordWindow(windows, offsetMs, len(res.Tokens), added, res.BudgetHit)
		windows++

		if res.Cancelled {
			s.markCancelled(run)
			break
		}
		if end, ok := res.LastEndMs(); ok {
			seek += int(end / frameMs)
		} else {
			seek += window
		}
	}

	s.segments = out
	if s.Cancelled() {
		return out, nil
	}
	if windows > 0 && allBudget && len(out) == 0 {
		return nil, ErrBudgetExceeded
	}
	return out, nil
}

// carry appends text tokens to the prompt, keeping at most one text
// context worth.
func (s *Session) carry(tokens []int) {
	s.prompt = append(s.prompt, tokens...)
	if limit := s.m.model.HParams().NTextCtx; len(s.prompt) > limit {
		s.prompt = slices.Clone(s.prompt[len(s.prompt)-limit:])
	}
}

func (s *Session) markCancelled(run *telemetry.Run) {
	s.cancelled.Store(true)
	run.RecordCancel()
	s.log.Debug("transcription cancelled")
}
