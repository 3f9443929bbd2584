package model

import (
	"errors"
	"fmt"
)

// Kind classifies a load failure.
type Kind int

const (
	// CorruptModel covers bad magic, malformed blocks, shape or inventory
	// mismatches, truncation and checksum failures.
	CorruptModel Kind = iota + 1
	// UnsupportedVersion is a well-formed header with an unknown version.
	UnsupportedVersion
	// IO is a failure of the underlying storage.
	IO
)

func (k Kind) String() string {
	switch k {
	case CorruptModel:
		return "corrupt model"
	case UnsupportedVersion:
		return "unsupported version"
	case IO:
		return "i/o error"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels matched by LoadError.Is.
var (
	ErrCorruptModel       = errors.New("corrupt model")
	ErrUnsupportedVersion = errors.New("unsupported model version")
	ErrIO                 = errors.New("model i/o error")
)

// LoadError is returned by every failed load. No partial model accompanies it.
type LoadError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("load model %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("load model: %s: %v", e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is matches the sentinel corresponding to e.Kind.
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrCorruptModel:
		return e.Kind == CorruptModel
	case ErrUnsupportedVersion:
		return e.Kind == UnsupportedVersion
	case ErrIO:
		return e.Kind == IO
	}
	return false
}

func corrupt(format string, args ...any) *LoadError {
	return &LoadError{Kind: CorruptModel, Err: fmt.Errorf(format, args...)}
}
