// Package telemetry keeps process-wide transcription counters and logs a
// summary per run.
package telemetry

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Recorder tracks totals across every session that shares it.
type Recorder struct {
	log *slog.Logger

	totalRuns          atomic.Uint64
	activeRuns         atomic.Int64
	totalWindows       atomic.Uint64
	totalTokens        atomic.Uint64
	totalSegments      atomic.Uint64
	totalBudgetHits    atomic.Uint64
	totalCancellations atomic.Uint64
	totalErrors        atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalRuns          uint64
	ActiveRuns         int64
	TotalWindows       uint64
	TotalTokens        uint64
	TotalSegments      uint64
	TotalBudgetHits    uint64
	TotalCancellations uint64
	TotalErrors        uint64
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalRuns:          r.totalRuns.Load(),
		ActiveRuns:         r.activeRuns.Load(),
		TotalWindows:       r.totalWindows.Load(),
		TotalTokens:        r.totalTokens.Load(),
		TotalSegments:      r.totalSegments.Load(),
		TotalBudgetHits:    r.totalBudgetHits.Load(),
		TotalCancellations: r.totalCancellations.Load(),
		TotalErrors:        r.totalErrors.Load(),
	}
}

// Run accumulates statistics for one Transcribe call.
type Run struct {
	recorder *Recorder
	log      *slog.Logger

	started    time.Time
	audioMs    int64
	windows    int
	tokens     int
	segments   int
	budgetHits int
	cancelled  bool
	closed     atomic.Bool
}

// StartRun begins a run for sessionID over audioMs of audio. A nil
// Recorder yields a nil Run whose methods do nothing.
func (r *Recorder) StartRun(sessionID string, audioMs int64) *Run {
	if r == nil {
		return nil
	}
	r.totalRuns.Add(1)
	r.activeRuns.Add(1)
	return &Run{
		recorder: r,
		log:      r.log.With("session_id", sessionID),
		started:  time.Now(),
		audioMs:  audioMs,
	}
}

// RecordWindow updates counters after one decoded window.
func (s *Run) RecordWindow(index int, seekMs int64, tokens, segments int, budgetHit bool) {
	if s == nil {
		return
	}
	s.windows++
	s.tokens += tokens
	s.segments += segments
	s.recorder.totalWindows.Add(1)
	s.recorder.totalTokens.Add(uint64(tokens))
	s.recorder.totalSegments.Add(uint64(segments))
	if budgetHit {
		s.budgetHits++
		s.recorder.totalBudgetHits.Add(1)
	}

	s.log.Debug("window decoded",
		"window", index,
		"seek_ms", seekMs,
		"tokens", tokens,
		"segments", segments,
		"budget_hit", budgetHit,
	)
}

// RecordCancel marks the run as cancelled.
func (s *Run) RecordCancel() {
	if s == nil || s.cancelled {
		return
	}
	s.cancelled = true
	s.recorder.totalCancellations.Add(1)
}

// Finish logs a summary and updates active run counters. Only the first
// call has an effect.
func (s *Run) Finish(err error) {
	if s == nil {
		return
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	defer s.recorder.activeRuns.Add(-1)

	elapsed := time.Since(s.started)
	args := []any{
		"duration_ms", elapsed.Milliseconds(),
		"audio_ms", s.audioMs,
		"windows", s.windows,
		"tokens", s.tokens,
		"segments", s.segments,
		"budget_hits", s.budgetHits,
		"cancelled", s.cancelled,
	}
	if s.audioMs > 0 {
		args = append(args, "realtime_factor", float64(elapsed.Milliseconds())/float64(s.audioMs))
	}

	if err != nil {
		s.recorder.totalErrors.Add(1)
		s.log.Error("transcription failed", append(args, "error", err)...)
		return
	}

	s.log.Info("transcription completed", args...)
}
