package tensor

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/whisper-go/internal/blas"
	"github.com/ieee0824/whisper-go/internal/simd"
)

type accelerated struct {
	threads int
}

// Accelerated returns a backend that runs matrix products through SGEMM
// (Apple Accelerate on darwin with cgo, gonum elsewhere), uses the
// unrolled float32 kernels for reductions and splits rows and attention
// heads across at most threads goroutines. threads <= 0 means one per CPU.
// For a fixed threads value results are bit-reproducible.
func Accelerated(threads int) Backend {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &accelerated{threads: threads}
}

func (a *accelerated) Name() string {
	return fmt.Sprintf("accelerated(%s, threads=%d)", blas.Name(), a.threads)
}

// parallel calls fn over contiguous [lo, hi) chunks covering [0, n).
func (a *accelerated) parallel(n int, fn func(lo, hi int)) {
	if a.threads <= 1 || n < 2 {
		fn(0, n)
		return
	}
	chunk := (n + a.threads - 1) / a.threads
	var g errgroup.Group
	g.SetLimit(a.threads)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}

func (a *accelerated) MatMul(x, w *Tensor, transB bool) *Tensor {
	d := checkMatMul(x, w, transB)
	out := New(d.m, d.n)
	ldb := d.n
	if transB {
		ldb = d.k
	}
	a.parallel(d.m, func(lo, hi int) {
		blas.Sgemm(false, transB, hi-lo, d.n, d.k,
			1.0, x.Data[lo*d.k:], d.k, w.Data, ldb, 0.0, out.Data[lo*d.n:], d.n)
	})
	return out
}

func (a *accelerated) Add(x, y *Tensor) *Tensor {
	mustSameShape("add", x, y)
	out := x.Clone()
	simd.Axpy(1, y.Data, out.Data)
	return out
}

func (a *accelerated) AddRow(x, row *Tensor) *Tensor {
	mustRowWidth("addrow", x, row)
	out := x.Clone()
	a.parallel(x.Rows(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			simd.Axpy(1, row.Data, out.Row(i))
		}
	})
	return out
}

func (a *accelerated) Scale(x *Tensor, s float32) *Tensor {
	out := New(x.Shape...)
	for i, v := range x.Data {
		out.Data[i] = v * s
	}
	return out
}

func (a *accelerated) LayerNorm(x, gamma, beta *Tensor, eps float32) *Tensor {
	mustRowWidth("layernorm gamma", x, gamma)
	mustRowWidth("layernorm beta", x, beta)
	out := New(x.Shape...)
	c := x.Cols()
	a.parallel(x.Rows(), func(lo, hi int) {
		cent := make([]float32, c)
		for i := lo; i < hi; i++ {
			row := x.Row(i)
			mean := simd.Sum(row) / float32(c)
			for j, v := range row {
				cent[j] = v - mean
			}
			variance := simd.Dot(cent, cent) / float32(c)
			inv := float32(1 / math.Sqrt(float64(variance+eps)))
			dst := out.Row(i)
			for j, v := range cent {
				dst[j] = v*inv*gamma.Data[j] + beta.Data[j]
			}
		}
	})
	return out
}

func (a *accelerated) Softmax(x *Tensor) *Tensor {
	out := New(x.Shape...)
	a.parallel(x.Rows(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			softmaxRow32(out.Row(i), x.Row(i))
		}
	})
	return out
}

func softmaxRow32(dst, src []float32) {
	if len(src) == 0 {
		return
	}
	m := simd.Max(src)
	if math.IsInf(float64(m), -1) {
		for j := range dst {
			dst[j] = 0
		}
		return
	}
	for j, v := range src {
		dst[j] = float32(math.Exp(float64(v - m)))
	}
	inv := 1 / simd.Sum(dst)
	for j := range dst {
		dst[j] *= inv
	}
}

func (a *accelerated) GELU(x *Tensor) *Tensor {
	out := New(x.Shape...)
	a.parallel(len(x.Data), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			out.Data[i] = gelu(x.Data[i])
		}
	})
	return out
}

// Conv1D lowers the convolution to one GEMM over an im2col buffer.
func (a *accelerated) Conv1D(x, w, b *Tensor, stride, pad int) *Tensor {
	d := checkConv(x, w, b, stride, pad)
	kk := d.inCh * d.k
	cols := make([]float32, kk*d.tOut)
	for c := 0; c < d.inCh; c++ {
		for j := 0; j < d.k; j++ {
			dst := cols[(c*d.k+j)*d.tOut : (c*d.k+j+1)*d.tOut]
			for t := range dst {
				src := t*stride + j - pad
				if src >= 0 && src < d.t {
					dst[t] = x.Data[c*d.t+src]
				}
			}
		}
	}
	out := New(d.outCh, d.tOut)
	a.parallel(d.outCh, func(lo, hi int) {
		blas.Sgemm(false, false, hi-lo, d.tOut, kk,
			1.0, w.Data[lo*kk:], kk, cols, d.tOut, 0.0, out.Data[lo*d.tOut:], d.tOut)
		if b == nil {
			return
		}
		for o := lo; o < hi; o++ {
			row := out.Data[o*d.tOut : (o+1)*d.tOut]
			for t := range row {
				row[t] += b.Data[o]
			}
		}
	})
	return out
}

// Attention runs one head per goroutine. Each head gathers its columns
// into contiguous blocks and computes softmax(QKᵀ/√dh)·V with two GEMMs.
func (a *accelerated) Attention(q, k, v *Tensor, heads int, causal bool) *Tensor {
	d := checkAttention(q, k, v, heads)
	out := New(d.tq, d.d)
	scale := float32(1 / math.Sqrt(float64(d.dh)))
	a.parallel(heads, func(lo, hi int) {
		qh := make([]float32, d.tq*d.dh)
		kh := make([]float32, d.tk*d.dh)
		vh := make([]float32, d.tk*d.dh)
		scores := make([]float32, d.tq*d.tk)
		oh := make([]float32, d.tq*d.dh)
		for h := lo; h < hi; h++ {
			off := h * d.dh
			gatherHead(qh, q.Data, d.tq, d.d, off, d.dh)
			gatherHead(kh, k.Data, d.tk, d.d, off, d.dh)
			gatherHead(vh, v.Data, d.tk, d.d, off, d.dh)
			blas.Sgemm(false, true, d.tq, d.tk, d.dh, scale, qh, d.dh, kh, d.dh, 0.0, scores, d.tk)
			for i := 0; i < d.tq; i++ {
				row := scores[i*d.tk : (i+1)*d.tk]
				if causal {
					for j := max(causalLimit(i, d.tq, d.tk)+1, 0); j < d.tk; j++ {
						row[j] = float32(math.Inf(-1))
					}
				}
				softmaxRow32(row, row)
			}
			blas.Sgemm(false, false, d.tq, d.dh, d.tk, 1.0, scores, d.tk, vh, d.dh, 0.0, oh, d.dh)
			for i := 0; i < d.tq; i++ {
				copy(out.Data[i*d.d+off:i*d.d+off+d.dh], oh[i*d.dh:(i+1)*d.dh])
			}
		}
	})
	return out
}

func gatherHead(dst, src []float32, rows, width, off, dh int) {
	for i := 0; i < rows; i++ {
		copy(dst[i*dh:(i+1)*dh], src[i*width+off:i*width+off+dh])
	}
}
