package decoder

import (
	"fmt"

	"github.com/ieee0824/whisper-go/encoder"
	"github.com/ieee0824/whisper-go/internal/nn"
	"github.com/ieee0824/whisper-go/model"
	"github.com/ieee0824/whisper-go/tensor"
)

// runner evaluates the text decoder for one window.
type runner struct {
	w     *model.DecoderWeights
	be    tensor.Backend
	cross []nn.KV
	ctx   int
	d     int
}

func newRunner(m *model.Model, be tensor.Backend, enc *encoder.Output) (*runner, error) {
	hp := m.HParams()
	e := enc.Embeddings
	if len(e.Shape) != 2 || e.Shape[0] != hp.NAudioCtx || e.Shape[1] != hp.NAudioState {
		return nil, fmt.Errorf("decode: encoder output %v, want [%d %d]", e.Shape, hp.NAudioCtx, hp.NAudioState)
	}
	w := &m.Weights().Decoder
	r := &runner{w: w, be: be, ctx: hp.NTextCtx, d: hp.NTextState}
	r.cross = make([]nn.KV, len(w.Blocks))
	for i := range w.Blocks {
		r.cross[i] = w.Blocks[i].CrossAttn.Project(be, e)
	}
	return r, nil
}

func (r *runner) newCache() *KVCache {
	return NewKVCache(len(r.w.Blocks), r.d)
}

// forward feeds tokens at the positions following the cache and returns the
// logits of the last one. The cache gains len(tokens) rows per layer.
func (r *runner) forward(tokens []int, cache *KVCache) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("decode: no tokens to feed")
	}
	off := cache.Len()
	if off+len(tokens) > r.ctx {
		return nil, fmt.Errorf("decode: %d positions exceed text context %d", off+len(tokens), r.ctx)
	}
	nVocab := r.w.TokenEmb.Rows()
	x := tensor.New(len(tokens), r.d)
	for i, tok := range tokens {
		if tok < 0 || tok >= nVocab {
			return nil, fmt.Errorf("decode: token %d outside embedding of %d", tok, nVocab)
		}
		row := x.Row(i)
		emb := r.w.TokenEmb.Row(tok)
		pos := r.w.PosEmb.Row(off + i)
		for j := range row {
			row[j] = emb[j] + pos[j]
		}
	}
	for i := range r.w.Blocks {
		x = r.w.Blocks[i].Decode(r.be, x, &cache.layers[i], r.cross[i])
	}
	last := x.SliceRows(x.Rows()-1, x.Rows())
	h := r.w.LN.Forward(r.be, last)
	return r.be.MatMul(h, r.w.TokenEmb, true).Data, nil
}
