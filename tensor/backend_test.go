package tensor

import (
	"math"
	"math/rand"
	"testing"
)

// relTol is the documented cross-backend tolerance: |a-b| <= relTol·max(1, |a|, |b|).
const relTol = 1e-4

func randTensor(rng *rand.Rand, shape ...int) *Tensor {
	x := New(shape...)
	for i := range x.Data {
		x.Data[i] = rng.Float32()*2 - 1
	}
	return x
}

func assertClose(t *testing.T, name string, want, got *Tensor) {
	t.Helper()
	if !want.SameShape(got) {
		t.Fatalf("%s: shape %v, want %v", name, got.Shape, want.Shape)
	}
	for i := range want.Data {
		a, b := float64(want.Data[i]), float64(got.Data[i])
		scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
		if math.Abs(a-b) > relTol*scale {
			t.Fatalf("%s: [%d] = %g, want %g", name, i, b, a)
		}
	}
}

func assertIdentical(t *testing.T, name string, want, got *Tensor) {
	t.Helper()
	for i := range want.Data {
		if math.Float32bits(want.Data[i]) != math.Float32bits(got.Data[i]) {
			t.Fatalf("%s: [%d] = %g on rerun, want %g", name, i, got.Data[i], want.Data[i])
		}
	}
}

type primitive struct {
	name string
	run  func(Backend) *Tensor
}

func primitives() []primitive {
	rng := rand.New(rand.NewSource(7))
	a := randTensor(rng, 37, 64)
	b := randTensor(rng, 64, 48)
	bt := randTensor(rng, 48, 64)
	c := randTensor(rng, 37, 64)
	row := randTensor(rng, 64)
	gamma := randTensor(rng, 64)
	beta := randTensor(rng, 64)
	wide := randTensor(rng, 5, 300)
	for i := range wide.Data {
		wide.Data[i] *= 8
	}
	x := randTensor(rng, 6, 40)
	w1 := randTensor(rng, 16, 6, 3)
	b1 := randTensor(rng, 16)
	q := randTensor(rng, 7, 32)
	k := randTensor(rng, 11, 32)
	v := randTensor(rng, 11, 32)

	return []primitive{
		{"MatMul", func(be Backend) *Tensor { return be.MatMul(a, b, false) }},
		{"MatMulTransB", func(be Backend) *Tensor { return be.MatMul(a, bt, true) }},
		{"Add", func(be Backend) *Tensor { return be.Add(a, c) }},
		{"AddRow", func(be Backend) *Tensor { return be.AddRow(a, row) }},
		{"Scale", func(be Backend) *Tensor { return be.Scale(a, 0.125) }},
		{"LayerNorm", func(be Backend) *Tensor { return be.LayerNorm(a, gamma, beta, LayerNormEps) }},
		{"Softmax", func(be Backend) *Tensor { return be.Softmax(wide) }},
		{"GELU", func(be Backend) *Tensor { return be.GELU(wide) }},
		{"Conv1D", func(be Backend) *Tensor { return be.Conv1D(x, w1, b1, 1, 1) }},
		{"Conv1DStride2", func(be Backend) *Tensor { return be.Conv1D(x, w1, b1, 2, 1) }},
		{"Conv1DNoBias", func(be Backend) *Tensor { return be.Conv1D(x, w1, nil, 1, 0) }},
		{"Attention", func(be Backend) *Tensor { return be.Attention(q, k, v, 4, false) }},
		{"AttentionCausal", func(be Backend) *Tensor { return be.Attention(q, k, v, 4, true) }},
		{"AttentionSelfCausal", func(be Backend) *Tensor { return be.Attention(k, k, v, 2, true) }},
	}
}

func TestBackends_Agree(t *testing.T) {
	ref := Reference()
	for _, threads := range []int{1, 3} {
		acc := Accelerated(threads)
		for _, p := range primitives() {
			t.Run(p.name, func(t *testing.T) {
				assertClose(t, acc.Name(), p.run(ref), p.run(acc))
			})
		}
	}
}

func TestBackends_Reproducible(t *testing.T) {
	for _, be := range []Backend{Reference(), Accelerated(1), Accelerated(4)} {
		for _, p := range primitives() {
			t.Run(be.Name()+"/"+p.name, func(t *testing.T) {
				first := p.run(be)
				for i := 0; i < 3; i++ {
					assertIdentical(t, p.name, first, p.run(be))
				}
			})
		}
	}
}

func TestBackends_InputsUntouched(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := randTensor(rng, 4, 8)
	row := randTensor(rng, 8)
	orig := a.Clone()
	for _, be := range []Backend{Reference(), Accelerated(2)} {
		be.Add(a, a)
		be.AddRow(a, row)
		be.Softmax(a)
		be.GELU(a)
		be.LayerNorm(a, row, row, LayerNormEps)
		assertIdentical(t, be.Name(), orig, a)
	}
}

func TestMatMul_Known(t *testing.T) {
	a := FromData([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := FromData([]float32{7, 8, 9, 10, 11, 12}, 3, 2)
	want := FromData([]float32{58, 64, 139, 154}, 2, 2)
	for _, be := range []Backend{Reference(), Accelerated(2)} {
		assertClose(t, be.Name(), want, be.MatMul(a, b, false))
	}
}

func TestSoftmax_RowsSumToOne(t *testing.T) {
	x := FromData([]float32{1, 2, 3, float32(math.Inf(-1)), 0, 0}, 2, 3)
	for _, be := range []Backend{Reference(), Accelerated(1)} {
		out := be.Softmax(x)
		for i := 0; i < out.Rows(); i++ {
			sum := 0.0
			for _, v := range out.Row(i) {
				sum += float64(v)
			}
			if math.Abs(sum-1) > 1e-6 {
				t.Errorf("%s: row %d sums to %f", be.Name(), i, sum)
			}
		}
		if out.Data[3] != 0 {
			t.Errorf("%s: softmax(-Inf) = %f, want 0", be.Name(), out.Data[3])
		}
	}
}

func TestLayerNorm_ZeroMeanUnitVar(t *testing.T) {
	x := FromData([]float32{1, 2, 3, 4}, 1, 4)
	ones := FromData([]float32{1, 1, 1, 1}, 4)
	zeros := New(4)
	out := Reference().LayerNorm(x, ones, zeros, 0)
	mean, sq := 0.0, 0.0
	for _, v := range out.Data {
		mean += float64(v)
		sq += float64(v) * float64(v)
	}
	if math.Abs(mean) > 1e-6 || math.Abs(sq/4-1) > 1e-5 {
		t.Errorf("LayerNorm: mean %f var %f", mean/4, sq/4)
	}
}

func TestGELU_Known(t *testing.T) {
	x := FromData([]float32{0, 1, -1}, 3)
	out := Reference().GELU(x)
	want := []float32{0, 0.8413447, -0.15865526}
	for i := range want {
		if math.Abs(float64(out.Data[i]-want[i])) > 1e-6 {
			t.Errorf("GELU(%f) = %f, want %f", x.Data[i], out.Data[i], want[i])
		}
	}
}

func TestConv1D_Shape(t *testing.T) {
	x := New(3, 10)
	w := New(5, 3, 3)
	for _, tt := range []struct {
		stride, pad, want int
	}{
		{1, 1, 10},
		{2, 1, 5},
		{1, 0, 8},
	} {
		out := Reference().Conv1D(x, w, nil, tt.stride, tt.pad)
		if out.Shape[0] != 5 || out.Shape[1] != tt.want {
			t.Errorf("stride %d pad %d: shape %v, want [5 %d]", tt.stride, tt.pad, out.Shape, tt.want)
		}
	}
}

// A causal query block appended after a cached prefix must produce the same
// rows as running the full sequence at once.
func TestAttention_CausalMatchesPrefix(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	q := randTensor(rng, 5, 16)
	k := randTensor(rng, 5, 16)
	v := randTensor(rng, 5, 16)
	for _, be := range []Backend{Reference(), Accelerated(2)} {
		full := be.Attention(q, k, v, 2, true)
		last := be.Attention(q.SliceRows(4, 5), k, v, 2, true)
		assertClose(t, be.Name(), full.SliceRows(4, 5), last)

		first := be.Attention(q.SliceRows(0, 1), k.SliceRows(0, 1), v.SliceRows(0, 1), 2, true)
		assertClose(t, be.Name(), full.SliceRows(0, 1), first)
	}
}

func BenchmarkMatMul(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	x := randTensor(rng, 150, 384)
	w := randTensor(rng, 384, 384)
	for _, be := range []Backend{Reference(), Accelerated(0)} {
		b.Run(be.Name(), func(b *testing.B) {
			for b.Loop() {
				be.MatMul(x, w, true)
			}
		})
	}
}
