package model

import "fmt"

// TensorSpec names one tensor of the compute graph and its shape.
type TensorSpec struct {
	Name  string
	Shape []int
}

// TensorSpecs returns the tensor inventory implied by hp, in file order.
// Linear weights are [out, in].
func TensorSpecs(hp HParams) []TensorSpec {
	da, dt := hp.NAudioState, hp.NTextState
	specs := []TensorSpec{
		{"encoder.conv1.weight", []int{da, hp.NMels, 3}},
		{"encoder.conv1.bias", []int{da}},
		{"encoder.conv2.weight", []int{da, da, 3}},
		{"encoder.conv2.bias", []int{da}},
		{"encoder.positional_embedding", []int{hp.NAudioCtx, da}},
	}
	for i := 0; i < hp.NAudioLayer; i++ {
		specs = append(specs, blockSpecs(fmt.Sprintf("encoder.blocks.%d", i), da, false)...)
	}
	specs = append(specs,
		TensorSpec{"encoder.ln_post.weight", []int{da}},
		TensorSpec{"encoder.ln_post.bias", []int{da}},
		TensorSpec{"decoder.token_embedding.weight", []int{hp.NVocab, dt}},
		TensorSpec{"decoder.positional_embedding", []int{hp.NTextCtx, dt}},
	)
	for i := 0; i < hp.NTextLayer; i++ {
		specs = append(specs, blockSpecs(fmt.Sprintf("decoder.blocks.%d", i), dt, true)...)
	}
	specs = append(specs,
		TensorSpec{"decoder.ln.weight", []int{dt}},
		TensorSpec{"decoder.ln.bias", []int{dt}},
	)
	return specs
}

func attnSpecs(prefix string, d int) []TensorSpec {
	return []TensorSpec{
		{prefix + ".query.weight", []int{d, d}},
		{prefix + ".query.bias", []int{d}},
		{prefix + ".key.weight", []int{d, d}},
		{prefix + ".value.weight", []int{d, d}},
		{prefix + ".value.bias", []int{d}},
		{prefix + ".out.weight", []int{d, d}},
		{prefix + ".out.bias", []int{d}},
	}
}

func lnSpecs(prefix string, d int) []TensorSpec {
	return []TensorSpec{
		{prefix + ".weight", []int{d}},
		{prefix + ".bias", []int{d}},
	}
}

func blockSpecs(prefix string, d int, cross bool) []TensorSpec {
	var specs []TensorSpec
	specs = append(specs, lnSpecs(prefix+".attn_ln", d)...)
	specs = append(specs, attnSpecs(prefix+".attn", d)...)
	if cross {
		specs = append(specs, lnSpecs(prefix+".cross_attn_ln", d)...)
		specs = append(specs, attnSpecs(prefix+".cross_attn", d)...)
	}
	specs = append(specs, lnSpecs(prefix+".mlp_ln", d)...)
	specs = append(specs,
		TensorSpec{prefix + ".mlp.0.weight", []int{4 * d, d}},
		TensorSpec{prefix + ".mlp.0.bias", []int{4 * d}},
		TensorSpec{prefix + ".mlp.2.weight", []int{d, 4 * d}},
		TensorSpec{prefix + ".mlp.2.bias", []int{d}},
	)
	return specs
}
