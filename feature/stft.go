package feature

import (
	"math"
	"math/bits"

	"github.com/ieee0824/whisper-go/internal/simd"
)

// stft turns windowed real frames into one-sided power spectra. The n-point
// real transform is evaluated as an n/2-point complex FFT over interleaved
// even/odd samples, then split back into the n/2+1 real-signal bins.
type stft struct {
	n      int
	window []float64

	re, im     []float64
	perm       []int
	twRe, twIm [][]float64
	spRe, spIm []float64
}

// newSTFT prepares a transform of size n (a power of two, at least 4) with the
// given analysis window. Samples past len(window) are zero padded.
func newSTFT(n int, window []float64) *stft {
	half := n / 2
	shift := bits.UintSize - bits.Len(uint(half-1))
	s := &stft{
		n:      n,
		window: window,
		re:     make([]float64, half),
		im:     make([]float64, half),
		perm:   make([]int, half),
		spRe:   make([]float64, half),
		spIm:   make([]float64, half),
	}
	for i := range s.perm {
		s.perm[i] = int(bits.Reverse(uint(i)) >> shift)
	}
	for span := 1; span < half; span *= 2 {
		re := make([]float64, span)
		im := make([]float64, span)
		for k := range re {
			im[k], re[k] = math.Sincos(-math.Pi * float64(k) / float64(span))
		}
		s.twRe = append(s.twRe, re)
		s.twIm = append(s.twIm, im)
	}
	for k := range s.spRe {
		s.spIm[k], s.spRe[k] = math.Sincos(-2 * math.Pi * float64(k) / float64(n))
	}
	return s
}

// bins is the number of values power writes.
func (s *stft) bins() int { return s.n/2 + 1 }

// power writes |X[k]|^2 for k in [0, n/2] into dst and returns it.
func (s *stft) power(dst, frame []float64) []float64 {
	dst = dst[:s.bins()]
	s.load(frame)
	span := 1
	for st := range s.twRe {
		simd.RadixStage(s.re, s.im, span, s.twRe[st], s.twIm[st])
		span *= 2
	}

	half := s.n / 2
	z0r, z0i := s.re[0], s.im[0]
	dst[0] = (z0r + z0i) * (z0r + z0i)
	dst[half] = (z0r - z0i) * (z0r - z0i)
	for k := 1; k < half; k++ {
		ar, ai := s.re[k], s.im[k]
		br, bi := s.re[half-k], -s.im[half-k]
		er, ei := (ar+br)/2, (ai+bi)/2
		or, oi := (ai-bi)/2, (br-ar)/2
		wr, wi := s.spRe[k], s.spIm[k]
		xr := er + wr*or - wi*oi
		xi := ei + wr*oi + wi*or
		dst[k] = xr*xr + xi*xi
	}
	return dst
}

// load packs the windowed frame as z[m] = x[2m] + i*x[2m+1] in bit-reversed
// order.
func (s *stft) load(frame []float64) {
	sample := func(t int) float64 {
		if t >= len(s.window) || t >= len(frame) {
			return 0
		}
		return frame[t] * s.window[t]
	}
	for m, j := range s.perm {
		s.re[j] = sample(2 * m)
		s.im[j] = sample(2*m + 1)
	}
}
