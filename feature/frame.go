package feature

import "math"

// ReflectPad extends samples by pad samples on each side, mirroring around
// the first and last sample without repeating them. pad must be smaller
// than len(samples).
func ReflectPad(samples []float64, pad int) []float64 {
	n := len(samples)
	out := make([]float64, n+2*pad)
	copy(out[pad:], samples)
	for i := 1; i <= pad; i++ {
		out[pad-i] = samples[i]
		out[pad+n-1+i] = samples[n-1-i]
	}
	return out
}

// HannWindow returns the periodic Hann window of length n.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
