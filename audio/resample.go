package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono samples from one sample rate to another with a
// high-quality polyphase filter. The result has exactly
// round(len(samples)·to/from) samples; the filter tail is flushed with
// trailing silence.
func Resample(samples []float32, from, to int) ([]float32, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("resample %d Hz to %d Hz: rates must be positive", from, to)
	}
	if from == to {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	// a tenth of a second of silence pushes the filter delay out
	input := make([]float64, len(samples)+from/10)
	for i, s := range samples {
		input[i] = float64(s)
	}
	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}

	want := int((int64(len(samples))*int64(to) + int64(from)/2) / int64(from))
	out := make([]float32, want)
	for i := 0; i < want && i < len(output); i++ {
		out[i] = float32(output[i])
	}
	return out, nil
}
