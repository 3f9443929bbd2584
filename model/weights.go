package model

import (
	"fmt"

	"github.com/ieee0824/whisper-go/internal/nn"
	"github.com/ieee0824/whisper-go/tensor"
)

// EncoderWeights are the audio encoder parameters.
type EncoderWeights struct {
	Conv1W, Conv1B *tensor.Tensor
	Conv2W, Conv2B *tensor.Tensor
	PosEmb         *tensor.Tensor
	Blocks         []nn.Block
	LNPost         nn.LayerNorm
}

// DecoderWeights are the text decoder parameters. TokenEmb doubles as the
// output projection.
type DecoderWeights struct {
	TokenEmb *tensor.Tensor
	PosEmb   *tensor.Tensor
	Blocks   []nn.Block
	LN       nn.LayerNorm
}

// Weights groups encoder and decoder parameters.
type Weights struct {
	Encoder EncoderWeights
	Decoder DecoderWeights
}

// bindWeights builds typed views. The inventory has already been checked.
func bindWeights(hp HParams, t map[string]*tensor.Tensor) *Weights {
	w := &Weights{
		Encoder: EncoderWeights{
			Conv1W: t["encoder.conv1.weight"],
			Conv1B: t["encoder.conv1.bias"],
			Conv2W: t["encoder.conv2.weight"],
			Conv2B: t["encoder.conv2.bias"],
			PosEmb: t["encoder.positional_embedding"],
			LNPost: bindLN(t, "encoder.ln_post"),
		},
		Decoder: DecoderWeights{
			TokenEmb: t["decoder.token_embedding.weight"],
			PosEmb:   t["decoder.positional_embedding"],
			LN:       bindLN(t, "decoder.ln"),
		},
	}
	for i := 0; i < hp.NAudioLayer; i++ {
		w.Encoder.Blocks = append(w.Encoder.Blocks, bindBlock(t, fmt.Sprintf("encoder.blocks.%d", i), hp.NAudioHead, false))
	}
	for i := 0; i < hp.NTextLayer; i++ {
		w.Decoder.Blocks = append(w.Decoder.Blocks, bindBlock(t, fmt.Sprintf("decoder.blocks.%d", i), hp.NTextHead, true))
	}
	return w
}

func bindLN(t map[string]*tensor.Tensor, prefix string) nn.LayerNorm {
	return nn.LayerNorm{Gamma: t[prefix+".weight"], Beta: t[prefix+".bias"]}
}

func bindLinear(t map[string]*tensor.Tensor, prefix string) nn.Linear {
	// key projections have no bias; the map lookup yields nil
	return nn.Linear{W: t[prefix+".weight"], B: t[prefix+".bias"]}
}

func bindAttn(t map[string]*tensor.Tensor, prefix string, heads int) nn.Attention {
	return nn.Attention{
		Query: bindLinear(t, prefix+".query"),
		Key:   bindLinear(t, prefix+".key"),
		Value: bindLinear(t, prefix+".value"),
		Out:   bindLinear(t, prefix+".out"),
		Heads: heads,
	}
}

func bindBlock(t map[string]*tensor.Tensor, prefix string, heads int, cross bool) nn.Block {
	b := nn.Block{
		AttnLN: bindLN(t, prefix+".attn_ln"),
		Attn:   bindAttn(t, prefix+".attn", heads),
		MLPLN:  bindLN(t, prefix+".mlp_ln"),
		MLP: nn.MLP{
			Up:   bindLinear(t, prefix+".mlp.0"),
			Down: bindLinear(t, prefix+".mlp.2"),
		},
	}
	if cross {
		c := bindAttn(t, prefix+".cross_attn", heads)
		b.CrossAttn = &c
		b.CrossAttnLN = bindLN(t, prefix+".cross_attn_ln")
	}
	return b
}
