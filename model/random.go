package model

import (
	"math"
	"math/rand"
	"strings"

	"github.com/ieee0824/whisper-go/tensor"
)

// NewRandom builds a model with Xavier-initialised weights for tooling and
// tests. Layer norms start as identity, biases as zero and the encoder
// positional embedding as sinusoids. hp.NVocab is derived from tokens.
func NewRandom(hp HParams, tokens [][]byte, seed int64) (*Model, error) {
	hp.NVocab = hp.VocabSize(len(tokens))
	rng := rand.New(rand.NewSource(seed))
	tensors := make(map[string]*tensor.Tensor)
	for _, s := range TensorSpecs(hp) {
		t := tensor.New(s.Shape...)
		switch {
		case s.Name == "encoder.positional_embedding":
			copy(t.Data, Sinusoids(hp.NAudioCtx, hp.NAudioState).Data)
		case strings.HasSuffix(s.Name, "ln.weight") || strings.HasSuffix(s.Name, "ln_post.weight"):
			for i := range t.Data {
				t.Data[i] = 1
			}
		case strings.HasSuffix(s.Name, ".bias"):
		case len(s.Shape) == 3:
			// conv kernels: fan over input channels × width
			xavierInit(rng, t.Data, s.Shape[1]*s.Shape[2], s.Shape[0])
		default:
			xavierInit(rng, t.Data, s.Shape[len(s.Shape)-1], s.Shape[0])
		}
		tensors[s.Name] = t
	}
	return New(hp, tokens, tensors, nil)
}

func xavierInit(rng *rand.Rand, w []float32, fanIn, fanOut int) {
	scale := math.Sqrt(2.0 / float64(fanIn+fanOut))
	for i := range w {
		w[i] = float32(rng.NormFloat64() * scale)
	}
}

// Sinusoids returns the [length, channels] sinusoidal position table used
// for the encoder: sin terms in the first half of each row, cos in the second.
func Sinusoids(length, channels int) *tensor.Tensor {
	t := tensor.New(length, channels)
	half := channels / 2
	if half == 0 {
		return t
	}
	logInc := math.Log(10000)
	if half > 1 {
		logInc /= float64(half - 1)
	}
	for p := 0; p < length; p++ {
		row := t.Row(p)
		for i := 0; i < half; i++ {
			angle := float64(p) * math.Exp(-logInc*float64(i))
			row[i] = float32(math.Sin(angle))
			row[half+i] = float32(math.Cos(angle))
		}
	}
	return t
}
