// Package nn holds the transformer layers shared by the encoder and the
// decoder. Layers are views over model tensors and carry no state.
package nn

import "github.com/ieee0824/whisper-go/tensor"

// Linear is a fully-connected layer. W is [out, in] row-major and B is
// [out], or nil for projections without bias.
type Linear struct {
	W *tensor.Tensor
	B *tensor.Tensor
}

// Forward computes x·Wᵀ + B.
func (l Linear) Forward(be tensor.Backend, x *tensor.Tensor) *tensor.Tensor {
	y := be.MatMul(x, l.W, true)
	if l.B != nil {
		y = be.AddRow(y, l.B)
	}
	return y
}

// LayerNorm is a row-wise layer normalisation with affine parameters.
type LayerNorm struct {
	Gamma *tensor.Tensor
	Beta  *tensor.Tensor
}

// Forward normalises every row of x.
func (n LayerNorm) Forward(be tensor.Backend, x *tensor.Tensor) *tensor.Tensor {
	return be.LayerNorm(x, n.Gamma, n.Beta, tensor.LayerNormEps)
}

// MLP is the two-layer feed-forward network: Down(GELU(Up(x))).
type MLP struct {
	Up   Linear
	Down Linear
}

// Forward runs the feed-forward network.
func (m MLP) Forward(be tensor.Backend, x *tensor.Tensor) *tensor.Tensor {
	return m.Down.Forward(be, be.GELU(m.Up.Forward(be, x)))
}

// KV holds the keys and values one attention layer attends over.
type KV struct {
	K *tensor.Tensor
	V *tensor.Tensor
}

// NewKV returns an empty key/value store of row width d.
func NewKV(d int) KV {
	return KV{K: tensor.New(0, d), V: tensor.New(0, d)}
}

// Len returns the number of cached rows.
func (kv KV) Len() int { return kv.K.Rows() }

// Clone returns a deep copy.
func (kv KV) Clone() KV {
	return KV{K: kv.K.Clone(), V: kv.V.Clone()}
}

// Attention is a multi-head attention layer. Key has no bias.
type Attention struct {
	Query Linear
	Key   Linear
	Value Linear
	Out   Linear
	Heads int
}

// Project computes the keys and values of src, used once per window for
// cross-attention over the encoder output.
func (a Attention) Project(be tensor.Backend, src *tensor.Tensor) KV {
	return KV{K: a.Key.Forward(be, src), V: a.Value.Forward(be, src)}
}

// Forward attends from the normalised input h. When cache is non-nil the
// new keys and values are appended to it and attention runs over the whole
// cache.
func (a Attention) Forward(be tensor.Backend, h *tensor.Tensor, cache *KV, causal bool) *tensor.Tensor {
	q := a.Query.Forward(be, h)
	kv := a.Project(be, h)
	if cache != nil {
		cache.K.AppendRows(kv.K)
		cache.V.AppendRows(kv.V)
		kv = *cache
	}
	return a.Out.Forward(be, be.Attention(q, kv.K, kv.V, a.Heads, causal))
}

// Cross attends from h over precomputed keys and values.
func (a Attention) Cross(be tensor.Backend, h *tensor.Tensor, kv KV) *tensor.Tensor {
	q := a.Query.Forward(be, h)
	return a.Out.Forward(be, be.Attention(q, kv.K, kv.V, a.Heads, false))
}

// Block is a pre-norm residual transformer block. CrossAttn is nil for
// encoder blocks.
type Block struct {
	AttnLN      LayerNorm
	Attn        Attention
	CrossAttnLN LayerNorm
	CrossAttn   *Attention
	MLPLN       LayerNorm
	MLP         MLP
}

// Encode runs an encoder block: bidirectional self-attention then MLP.
func (b *Block) Encode(be tensor.Backend, x *tensor.Tensor) *tensor.Tensor {
	x = be.Add(x, b.Attn.Forward(be, b.AttnLN.Forward(be, x), nil, false))
	return be.Add(x, b.MLP.Forward(be, b.MLPLN.Forward(be, x)))
}

// Decode runs a decoder block over the new rows x: causal self-attention
// through self, cross-attention over cross, then MLP.
func (b *Block) Decode(be tensor.Backend, x *tensor.Tensor, self *KV, cross KV) *tensor.Tensor {
	x = be.Add(x, b.Attn.Forward(be, b.AttnLN.Forward(be, x), self, true))
	if b.CrossAttn != nil {
		x = be.Add(x, b.CrossAttn.Cross(be, b.CrossAttnLN.Forward(be, x), cross))
	}
	return be.Add(x, b.MLP.Forward(be, b.MLPLN.Forward(be, x)))
}
