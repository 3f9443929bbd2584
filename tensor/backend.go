package tensor

import (
	"fmt"
	"math"
)

// Backend is the set of primitives the encoder and decoder are built from.
// Every method is pure: inputs are never modified and a freshly allocated
// tensor is returned. Shape mismatches are programming errors and panic;
// model loading guarantees the shapes that reach a backend.
type Backend interface {
	// Name identifies the backend in capability strings.
	Name() string

	// MatMul returns a·b, or a·bᵀ when transB is set.
	// a is [m,k]; b is [k,n], or [n,k] when transB.
	MatMul(a, b *Tensor, transB bool) *Tensor
	// Add returns a+b element-wise. Shapes must match.
	Add(a, b *Tensor) *Tensor
	// AddRow adds the vector row to every row of x.
	AddRow(x, row *Tensor) *Tensor
	// Scale returns s·x.
	Scale(x *Tensor, s float32) *Tensor
	// LayerNorm normalises each row to zero mean and unit variance, then
	// applies gamma and beta.
	LayerNorm(x, gamma, beta *Tensor, eps float32) *Tensor
	// Softmax applies a max-subtracted softmax to each row.
	Softmax(x *Tensor) *Tensor
	// GELU applies the erf form of the Gaussian error linear unit.
	GELU(x *Tensor) *Tensor
	// Conv1D convolves x [inCh, T] with w [outCh, inCh, k] and adds b
	// [outCh] (b may be nil). The result is [outCh, (T+2·pad-k)/stride+1].
	Conv1D(x, w, b *Tensor, stride, pad int) *Tensor
	// Attention computes multi-head scaled dot-product attention.
	// q is [Tq, d]; k and v are [Tk, d]. With causal set, query i may
	// attend to key j only when j <= i + (Tk - Tq), so a query block
	// appended after a cached prefix sees the whole prefix.
	Attention(q, k, v *Tensor, heads int, causal bool) *Tensor
}

// LayerNormEps is the epsilon used by every layer norm of the model.
const LayerNormEps = 1e-5

func gelu(x float32) float32 {
	v := float64(x)
	return float32(0.5 * v * (1 + math.Erf(v/math.Sqrt2)))
}

func mustSameShape(op string, a, b *Tensor) {
	if !a.SameShape(b) {
		panic(fmt.Sprintf("tensor: %s shape mismatch %v vs %v", op, a.Shape, b.Shape))
	}
}

func mustRowWidth(op string, x, row *Tensor) {
	if row.Numel() != x.Cols() {
		panic(fmt.Sprintf("tensor: %s row width %d, want %d", op, row.Numel(), x.Cols()))
	}
}

type matmulDims struct{ m, n, k int }

func checkMatMul(a, b *Tensor, transB bool) matmulDims {
	d := matmulDims{m: a.Rows(), k: a.Cols()}
	if transB {
		d.n = b.Rows()
		if b.Cols() != d.k {
			panic(fmt.Sprintf("tensor: matmul %v x %vᵀ", a.Shape, b.Shape))
		}
	} else {
		d.n = b.Cols()
		if b.Rows() != d.k {
			panic(fmt.Sprintf("tensor: matmul %v x %v", a.Shape, b.Shape))
		}
	}
	return d
}

type convDims struct{ inCh, t, outCh, k, tOut int }

func checkConv(x, w, b *Tensor, stride, pad int) convDims {
	if len(x.Shape) != 2 || len(w.Shape) != 3 || stride < 1 || pad < 0 {
		panic(fmt.Sprintf("tensor: conv1d x%v w%v stride %d pad %d", x.Shape, w.Shape, stride, pad))
	}
	d := convDims{inCh: x.Shape[0], t: x.Shape[1], outCh: w.Shape[0], k: w.Shape[2]}
	if w.Shape[1] != d.inCh {
		panic(fmt.Sprintf("tensor: conv1d weight %v for %d input channels", w.Shape, d.inCh))
	}
	if b != nil && b.Numel() != d.outCh {
		panic(fmt.Sprintf("tensor: conv1d bias %v for %d output channels", b.Shape, d.outCh))
	}
	d.tOut = (d.t+2*pad-d.k)/stride + 1
	if d.tOut < 0 {
		d.tOut = 0
	}
	return d
}

type attnDims struct{ tq, tk, d, dh int }

func checkAttention(q, k, v *Tensor, heads int) attnDims {
	d := attnDims{tq: q.Rows(), tk: k.Rows(), d: q.Cols()}
	if heads < 1 || d.d%heads != 0 || k.Cols() != d.d || !k.SameShape(v) {
		panic(fmt.Sprintf("tensor: attention q%v k%v v%v heads %d", q.Shape, k.Shape, v.Shape, heads))
	}
	d.dh = d.d / heads
	return d
}

// causalLimit returns the last key index query i may attend to.
func causalLimit(i, tq, tk int) int {
	return i + tk - tq
}
