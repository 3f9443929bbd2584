// Package encoder runs the audio encoder over one spectrogram window.
package encoder

import (
	"fmt"

	"github.com/ieee0824/whisper-go/model"
	"github.com/ieee0824/whisper-go/tensor"
)

// Output is the encoded audio of one window, [n_audio_ctx, n_audio_state].
type Output struct {
	Embeddings *tensor.Tensor
}

// Encode maps a [n_mels, 2·n_audio_ctx] mel window to audio embeddings:
// two GELU convolutions (the second with stride 2), positional embedding,
// the transformer blocks and a final layer norm. It keeps no state between
// calls.
func Encode(mel *tensor.Tensor, m *model.Model, be tensor.Backend) (*Output, error) {
	hp := m.HParams()
	if len(mel.Shape) != 2 || mel.Shape[0] != hp.NMels || mel.Shape[1] != hp.WindowFrames() {
		return nil, fmt.Errorf("encode: mel window %v, want [%d %d]", mel.Shape, hp.NMels, hp.WindowFrames())
	}
	w := m.Weights().Encoder

	x := be.GELU(be.Conv1D(mel, w.Conv1W, w.Conv1B, 1, 1))
	x = be.GELU(be.Conv1D(x, w.Conv2W, w.Conv2B, 2, 1))
	// [d, ctx] -> [ctx, d]
	x = be.Add(x.Transpose(), w.PosEmb)

	for i := range w.Blocks {
		x = w.Blocks[i].Encode(be, x)
	}
	return &Output{Embeddings: w.LNPost.Forward(be, x)}, nil
}
