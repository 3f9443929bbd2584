// Package modeltest builds small models for tests. The scripted model
// ignores its input: the decoder's final layer norm has zero gain, so every
// step yields the same logits and greedy decoding always transcribes one
// window as a single segment "hello" spanning the whole window.
package modeltest

import (
	"math"
	"testing"

	"github.com/ieee0824/whisper-go/model"
	"github.com/ieee0824/whisper-go/vocab"
)

// Tokens is the text vocabulary of every test model.
var Tokens = []string{"hello", " world", " ", "!"}

// Token ids into Tokens.
const (
	Hello = iota
	World
	Blank
	Bang
)

// Scripted logits.
const (
	HelloLogit    = 3
	EOTLogit      = 2
	EnglishLogit  = 1
	TimestampStep = 0.01 // logit of timestamp k is k·TimestampStep
)

// Fixture bundles a model and its vocabulary.
type Fixture struct {
	Model *model.Model
	Vocab *vocab.Vocab
}

// HParams returns a small architecture with a 3 s window.
func HParams(nLangs int) model.HParams {
	hp := model.DefaultHParams()
	hp.NAudioCtx = 150
	hp.NAudioState = 16
	hp.NAudioHead = 2
	hp.NAudioLayer = 1
	hp.NTextCtx = 32
	hp.NTextState = 16
	hp.NTextHead = 2
	hp.NTextLayer = 1
	hp.NLangs = nLangs
	return hp
}

// WindowMs is the duration of one window of HParams.
const WindowMs = 3000

func tokenBytes() [][]byte {
	out := make([][]byte, len(Tokens))
	for i, s := range Tokens {
		out[i] = []byte(s)
	}
	return out
}

// Random returns a model with random weights.
func Random(tb testing.TB, nLangs int, seed int64) *Fixture {
	tb.Helper()
	m, err := model.NewRandom(HParams(nLangs), tokenBytes(), seed)
	if err != nil {
		tb.Fatalf("modeltest: %v", err)
	}
	return fixture(tb, m)
}

// Scripted returns the model whose logits are fixed by the constants above.
func Scripted(tb testing.TB, nLangs int) *Fixture {
	tb.Helper()
	f := Random(tb, nLangs, 1)
	hp := f.Model.HParams()
	voc := f.Vocab

	gamma, _ := f.Model.Tensor("decoder.ln.weight")
	beta, _ := f.Model.Tensor("decoder.ln.bias")
	for i := range gamma.Data {
		gamma.Data[i] = 0
		beta.Data[i] = 0
	}
	// logits = beta · E^T, so column 0 of E carries the score.
	beta.Data[0] = 1
	emb, _ := f.Model.Tensor("decoder.token_embedding.weight")
	score := func(id int, v float32) { emb.Row(id)[0] = v }
	for id := 0; id < hp.NVocab; id++ {
		score(id, 0)
	}
	score(Hello, HelloLogit)
	score(voc.EOT(), EOTLogit)
	if tok, ok := voc.LanguageToken(0); ok {
		score(tok, EnglishLogit)
	}
	for k := 0; k < voc.NumTimestamps(); k++ {
		score(voc.TimestampBegin()+k, float32(k)*TimestampStep)
	}
	return f
}

func fixture(tb testing.TB, m *model.Model) *Fixture {
	tb.Helper()
	hp := m.HParams()
	voc, err := vocab.New(m.Tokens(), hp.NLangs, hp.NAudioCtx+1)
	if err != nil {
		tb.Fatalf("modeltest: %v", err)
	}
	return &Fixture{Model: m, Vocab: voc}
}

// Sine returns seconds of a 440 Hz tone at 16 kHz.
func Sine(seconds float64) []float32 {
	n := int(seconds * 16000)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}
