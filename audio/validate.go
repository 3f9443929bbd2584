package audio

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmpty is returned for a buffer without samples.
	ErrEmpty = errors.New("audio buffer is empty")
	// ErrNonFinite is returned for a buffer containing NaN or Inf.
	ErrNonFinite = errors.New("audio buffer contains non-finite samples")
)

// Validate checks that samples is non-empty and every sample is finite.
func Validate(samples []float32) error {
	if len(samples) == 0 {
		return ErrEmpty
	}
	for i, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return fmt.Errorf("%w: sample %d is %v", ErrNonFinite, i, s)
		}
	}
	return nil
}
