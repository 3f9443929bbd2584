package feature

import "math"

// melBand is one triangular filter, stored from its first non-zero bin.
type melBand struct {
	lo int
	w  []float64
}

// MelBank projects one-sided power spectra onto triangular bands spaced
// evenly on the HTK mel scale. Every band has unit area in Hz.
type MelBank struct {
	bins  int
	bands []melBand
}

// NewMelBank builds n bands spanning [fmin, fmax] for an fftSize-point
// spectrum at sampleRate. Triangles are sampled at each bin's centre
// frequency.
func NewMelBank(n, fftSize, sampleRate int, fmin, fmax float64) *MelBank {
	b := &MelBank{bins: fftSize/2 + 1, bands: make([]melBand, n)}
	binHz := float64(sampleRate) / float64(fftSize)
	lo, hi := hzToMel(fmin), hzToMel(fmax)
	edge := func(i int) float64 {
		return melToHz(lo + (hi-lo)*float64(i)/float64(n+1))
	}
	for i := range b.bands {
		left, centre, right := edge(i), edge(i+1), edge(i+2)
		scale := 2 / (right - left)
		first := max(0, int(math.Ceil(left/binHz)))
		var w []float64
		for k := first; k < b.bins; k++ {
			f := float64(k) * binHz
			if f >= right {
				break
			}
			up := (f - left) / (centre - left)
			down := (right - f) / (right - centre)
			v := math.Min(up, down)
			if v <= 0 {
				if w == nil {
					first = k + 1
					continue
				}
				break
			}
			w = append(w, v*scale)
		}
		b.bands[i] = melBand{lo: first, w: w}
	}
	return b
}

// Len is the number of bands.
func (b *MelBank) Len() int { return len(b.bands) }

// Weight is the coefficient band i applies to spectrum bin k.
func (b *MelBank) Weight(i, k int) float64 {
	band := b.bands[i]
	if k < band.lo || k >= band.lo+len(band.w) {
		return 0
	}
	return band.w[k-band.lo]
}

// Project writes the band energies of power into dst, allocating when dst is
// too small, and returns dst.
func (b *MelBank) Project(dst, power []float64) []float64 {
	if cap(dst) < len(b.bands) {
		dst = make([]float64, len(b.bands))
	}
	dst = dst[:len(b.bands)]
	for i, band := range b.bands {
		var e float64
		for j, w := range band.w {
			if k := band.lo + j; k < len(power) {
				e += w * power[k]
			}
		}
		dst[i] = e
	}
	return dst
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }
