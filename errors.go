package whisper

import (
	"errors"
	"fmt"

	"github.com/ieee0824/whisper-go/feature"
)

var (
	// ErrAudioTooShort is returned for audio shorter than one analysis
	// window.
	ErrAudioTooShort = feature.ErrAudioTooShort
	// ErrBudgetExceeded is returned when every window ran out of tokens
	// and no segment was completed.
	ErrBudgetExceeded = errors.New("whisper: token budget exceeded")
	// ErrSessionBusy is returned when a session is used concurrently.
	ErrSessionBusy = errors.New("whisper: session busy")
	// ErrInvalidParams is returned for parameters or audio rejected at
	// the boundary.
	ErrInvalidParams = errors.New("whisper: invalid params")
)

// TranscribeError reports a failure while processing one window.
type TranscribeError struct {
	Window int
	Err    error
}

func (e *TranscribeError) Error() string {
	return fmt.Sprintf("whisper: window %d: %v", e.Window, e.Err)
}

func (e *TranscribeError) Unwrap() error { return e.Err }
