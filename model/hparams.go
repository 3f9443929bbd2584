package model

import (
	"errors"
	"fmt"
)

// MaxLanguages is the size of the fixed language table a model may use.
const MaxLanguages = 99

// FrameMs is the duration of one spectrogram frame. Timestamp tokens step
// by two frames, so HopLength must be exactly FrameMs of audio.
const FrameMs = 10

// Upper bounds on header values.
const (
	maxLayers = 64
	maxWidth  = 1 << 16
)

// specialsBeforeLangs counts EndOfText and StartOfTranscript.
const specialsBeforeLangs = 2

// specialsAfterLangs counts Translate, Transcribe, StartOfLM, Previous,
// NoSpeech and NoTimestamps.
const specialsAfterLangs = 6

// HParams are the architecture hyperparameters stored in the model header.
type HParams struct {
	NVocab      int `msgpack:"n_vocab" yaml:"n_vocab"`
	NAudioCtx   int `msgpack:"n_audio_ctx" yaml:"n_audio_ctx"`
	NAudioState int `msgpack:"n_audio_state" yaml:"n_audio_state"`
	NAudioHead  int `msgpack:"n_audio_head" yaml:"n_audio_head"`
	NAudioLayer int `msgpack:"n_audio_layer" yaml:"n_audio_layer"`
	NTextCtx    int `msgpack:"n_text_ctx" yaml:"n_text_ctx"`
	NTextState  int `msgpack:"n_text_state" yaml:"n_text_state"`
	NTextHead   int `msgpack:"n_text_head" yaml:"n_text_head"`
	NTextLayer  int `msgpack:"n_text_layer" yaml:"n_text_layer"`
	NMels       int `msgpack:"n_mels" yaml:"n_mels"`
	NLangs      int `msgpack:"n_langs" yaml:"n_langs"`

	SampleRate   int `msgpack:"sample_rate" yaml:"sample_rate"`
	NFFT         int `msgpack:"n_fft" yaml:"n_fft"`
	WindowLength int `msgpack:"window_length" yaml:"window_length"`
	HopLength    int `msgpack:"hop_length" yaml:"hop_length"`
}

// DefaultHParams returns a small multilingual architecture with the
// standard 16 kHz front-end. NVocab is left zero; NewRandom fills it in
// from the token list.
func DefaultHParams() HParams {
	return HParams{
		NAudioCtx:    150,
		NAudioState:  64,
		NAudioHead:   4,
		NAudioLayer:  2,
		NTextCtx:     64,
		NTextState:   64,
		NTextHead:    4,
		NTextLayer:   2,
		NMels:        80,
		NLangs:       MaxLanguages,
		SampleRate:   16000,
		NFFT:         512,
		WindowLength: 400,
		HopLength:    160,
	}
}

// NumSpecial returns the number of non-text tokens: control tokens, one
// token per language and NAudioCtx+1 timestamp tokens.
func (hp HParams) NumSpecial() int {
	return specialsBeforeLangs + hp.NLangs + specialsAfterLangs + hp.NAudioCtx + 1
}

// VocabSize returns the full vocabulary size for nText text tokens.
func (hp HParams) VocabSize(nText int) int {
	return nText + hp.NumSpecial()
}

// IsMultilingual reports whether the model carries more than one language token.
func (hp HParams) IsMultilingual() bool {
	return hp.NLangs > 1
}

// WindowFrames is the number of spectrogram frames one encoder pass consumes.
func (hp HParams) WindowFrames() int {
	return 2 * hp.NAudioCtx
}

// Validate checks internal consistency of the hyperparameters against the
// number of text tokens that accompany them.
func (hp HParams) Validate(nText int) error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	positive("n_audio_ctx", hp.NAudioCtx)
	positive("n_audio_state", hp.NAudioState)
	positive("n_audio_head", hp.NAudioHead)
	positive("n_audio_layer", hp.NAudioLayer)
	positive("n_text_ctx", hp.NTextCtx)
	positive("n_text_state", hp.NTextState)
	positive("n_text_head", hp.NTextHead)
	positive("n_text_layer", hp.NTextLayer)
	positive("n_mels", hp.NMels)
	positive("sample_rate", hp.SampleRate)
	positive("window_length", hp.WindowLength)
	positive("hop_length", hp.HopLength)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	bounded := func(name string, v, limit int) {
		if v > limit {
			errs = append(errs, fmt.Errorf("%s %d exceeds %d", name, v, limit))
		}
	}
	bounded("n_audio_layer", hp.NAudioLayer, maxLayers)
	bounded("n_text_layer", hp.NTextLayer, maxLayers)
	for _, w := range []struct {
		name string
		v    int
	}{
		{"n_audio_ctx", hp.NAudioCtx}, {"n_audio_state", hp.NAudioState}, {"n_audio_head", hp.NAudioHead},
		{"n_text_ctx", hp.NTextCtx}, {"n_text_state", hp.NTextState}, {"n_text_head", hp.NTextHead},
		{"n_mels", hp.NMels}, {"n_fft", hp.NFFT}, {"window_length", hp.WindowLength},
		{"hop_length", hp.HopLength},
	} {
		bounded(w.name, w.v, maxWidth)
	}
	bounded("sample_rate", hp.SampleRate, maxWidth*1000/FrameMs)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if hp.HopLength*1000 != FrameMs*hp.SampleRate {
		errs = append(errs, fmt.Errorf("hop_length %d at %d Hz is not a %d ms frame", hp.HopLength, hp.SampleRate, FrameMs))
	}

	if hp.NAudioState%hp.NAudioHead != 0 {
		errs = append(errs, fmt.Errorf("n_audio_state %d not divisible by n_audio_head %d", hp.NAudioState, hp.NAudioHead))
	}
	if hp.NTextState%hp.NTextHead != 0 {
		errs = append(errs, fmt.Errorf("n_text_state %d not divisible by n_text_head %d", hp.NTextState, hp.NTextHead))
	}
	if hp.NLangs < 0 || hp.NLangs > MaxLanguages {
		errs = append(errs, fmt.Errorf("n_langs %d outside [0, %d]", hp.NLangs, MaxLanguages))
	}
	if hp.NFFT < 4 || hp.NFFT < hp.WindowLength || hp.NFFT&(hp.NFFT-1) != 0 {
		errs = append(errs, fmt.Errorf("n_fft %d must be a power of two >= window_length %d", hp.NFFT, hp.WindowLength))
	}
	if nText <= 0 {
		errs = append(errs, errors.New("no text tokens"))
	}
	if want := hp.VocabSize(nText); hp.NVocab != want {
		errs = append(errs, fmt.Errorf("n_vocab %d, want %d for %d text tokens", hp.NVocab, want, nText))
	}
	return errors.Join(errs...)
}
