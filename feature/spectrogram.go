// Package feature turns raw audio into the log-Mel spectrogram the encoder
// consumes.
package feature

import (
	"errors"
	"fmt"
	"math"

	"github.com/ieee0824/whisper-go/tensor"
)

// ErrAudioTooShort is returned when the input holds fewer samples than one
// analysis window.
var ErrAudioTooShort = errors.New("audio shorter than one analysis window")

const (
	logFloor     = 1e-10
	dynamicRange = 8.0
)

// Config holds the front-end parameters. They come from the model header.
type Config struct {
	SampleRate   int
	NumMels      int
	FFTSize      int
	WindowLength int // analysis window in samples
	HopLength    int // frame shift in samples
	ChunkFrames  int // frames per encoder window; this much silence is appended
}

// DefaultConfig returns the standard 16 kHz, 80-band, 10 ms configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		NumMels:      80,
		FFTSize:      512,
		WindowLength: 400,
		HopLength:    160,
		ChunkFrames:  3000,
	}
}

// FrameMs returns the duration of one spectrogram frame in milliseconds.
func (c Config) FrameMs() float64 {
	return float64(c.HopLength) * 1000 / float64(c.SampleRate)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SampleRate <= 0 || c.NumMels <= 0 || c.WindowLength <= 1 || c.HopLength <= 0 || c.ChunkFrames < 0 {
		return fmt.Errorf("feature config %+v: sizes must be positive", c)
	}
	if c.FFTSize < 4 || c.FFTSize < c.WindowLength || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("feature config: fft size %d must be a power of two >= window %d", c.FFTSize, c.WindowLength)
	}
	return nil
}

// Spectrogram is a normalised log-Mel spectrogram stored mel-major:
// Data[m*NumFrames+t]. It is read-only once built.
type Spectrogram struct {
	NumMels       int
	NumFrames     int // including the appended silence
	ContentFrames int // frames that cover input samples
	Data          []float32
	floor         float32
}

// At returns the value of Mel band m at frame t.
func (s *Spectrogram) At(m, t int) float32 {
	return s.Data[m*s.NumFrames+t]
}

// Window copies frames [start, start+n) into a [NumMels, n] tensor. Frames
// past the end are filled with the spectrogram floor.
func (s *Spectrogram) Window(start, n int) *tensor.Tensor {
	out := tensor.New(s.NumMels, n)
	for m := 0; m < s.NumMels; m++ {
		dst := out.Row(m)
		src := s.Data[m*s.NumFrames : (m+1)*s.NumFrames]
		for t := range dst {
			if i := start + t; i >= 0 && i < s.NumFrames {
				dst[t] = src[i]
			} else {
				dst[t] = s.floor
			}
		}
	}
	return out
}

// Extract computes the log-Mel spectrogram of mono samples.
//
// The input is zero-padded to a multiple of the hop plus ChunkFrames frames
// of silence, reflect-padded by half a window and framed with a periodic
// Hann window. Band energies are compressed with log10 (floored at 1e-10),
// clamped to 8 below the maximum and mapped through (x+4)/4.
func Extract(samples []float32, cfg Config) (*Spectrogram, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(samples) < cfg.WindowLength {
		return nil, fmt.Errorf("%w: %d samples, need %d", ErrAudioTooShort, len(samples), cfg.WindowLength)
	}

	hop := cfg.HopLength
	content := (len(samples) + hop - 1) / hop
	nFrames := content + cfg.ChunkFrames
	padded := make([]float64, nFrames*hop)
	for i, s := range samples {
		padded[i] = float64(s)
	}
	centred := ReflectPad(padded, cfg.WindowLength/2)

	bank := NewMelBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, 0, float64(cfg.SampleRate)/2)
	tr := newSTFT(cfg.FFTSize, HannWindow(cfg.WindowLength))
	power := make([]float64, tr.bins())
	melBuf := make([]float64, cfg.NumMels)

	spec := &Spectrogram{
		NumMels:       cfg.NumMels,
		NumFrames:     nFrames,
		ContentFrames: content,
		Data:          make([]float32, cfg.NumMels*nFrames),
	}
	peak := math.Inf(-1)
	for t := 0; t < nFrames; t++ {
		frame := centred[t*hop : t*hop+cfg.WindowLength]
		melBuf = bank.Project(melBuf, tr.power(power, frame))
		for m, e := range melBuf {
			v := math.Log10(math.Max(e, logFloor))
			peak = math.Max(peak, v)
			spec.Data[m*nFrames+t] = float32(v)
		}
	}

	lo := peak - dynamicRange
	for i, v := range spec.Data {
		spec.Data[i] = float32((math.Max(float64(v), lo) + 4) / 4)
	}
	spec.floor = float32((lo + 4) / 4)
	return spec, nil
}
