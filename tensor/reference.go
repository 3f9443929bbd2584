package tensor

import "math"

type reference struct{}

// Reference returns the scalar backend. Every reduction accumulates in
// float64 in index order; it is the numerical baseline for Accelerated.
func Reference() Backend { return reference{} }

func (reference) Name() string { return "reference" }

func (reference) MatMul(a, b *Tensor, transB bool) *Tensor {
	d := checkMatMul(a, b, transB)
	out := New(d.m, d.n)
	for i := 0; i < d.m; i++ {
		ar := a.Data[i*d.k : (i+1)*d.k]
		for j := 0; j < d.n; j++ {
			sum := 0.0
			if transB {
				br := b.Data[j*d.k : (j+1)*d.k]
				for p, av := range ar {
					sum += float64(av) * float64(br[p])
				}
			} else {
				for p, av := range ar {
					sum += float64(av) * float64(b.Data[p*d.n+j])
				}
			}
			out.Data[i*d.n+j] = float32(sum)
		}
	}
	return out
}

func (reference) Add(a, b *Tensor) *Tensor {
	mustSameShape("add", a, b)
	out := New(a.Shape...)
	for i := range out.Data {
		out.Data[i] = a.Data[i] + b.Data[i]
	}
	return out
}

func (reference) AddRow(x, row *Tensor) *Tensor {
	mustRowWidth("addrow", x, row)
	out := New(x.Shape...)
	c := x.Cols()
	for i := range out.Data {
		out.Data[i] = x.Data[i] + row.Data[i%c]
	}
	return out
}

func (reference) Scale(x *Tensor, s float32) *Tensor {
	out := New(x.Shape...)
	for i, v := range x.Data {
		out.Data[i] = v * s
	}
	return out
}

func (reference) LayerNorm(x, gamma, beta *Tensor, eps float32) *Tensor {
	mustRowWidth("layernorm gamma", x, gamma)
	mustRowWidth("layernorm beta", x, beta)
	out := New(x.Shape...)
	c := x.Cols()
	for i := 0; i < x.Rows(); i++ {
		row := x.Row(i)
		mean := 0.0
		for _, v := range row {
			mean += float64(v)
		}
		mean /= float64(c)
		variance := 0.0
		for _, v := range row {
			d := float64(v) - mean
			variance += d * d
		}
		variance /= float64(c)
		inv := 1 / math.Sqrt(variance+float64(eps))
		dst := out.Row(i)
		for j, v := range row {
			dst[j] = float32((float64(v)-mean)*inv*float64(gamma.Data[j]) + float64(beta.Data[j]))
		}
	}
	return out
}

func (reference) Softmax(x *Tensor) *Tensor {
	out := New(x.Shape...)
	for i := 0; i < x.Rows(); i++ {
		softmaxRow64(out.Row(i), x.Row(i))
	}
	return out
}

// softmaxRow64 writes softmax(src) to dst. -Inf entries become 0.
func softmaxRow64(dst, src []float32) {
	maxVal := math.Inf(-1)
	for _, v := range src {
		if float64(v) > maxVal {
			maxVal = float64(v)
		}
	}
	if math.IsInf(maxVal, -1) {
		for j := range dst {
			dst[j] = 0
		}
		return
	}
	sum := 0.0
	exps := make([]float64, len(src))
	for j, v := range src {
		exps[j] = math.Exp(float64(v) - maxVal)
		sum += exps[j]
	}
	for j := range dst {
		dst[j] = float32(exps[j] / sum)
	}
}

func (reference) GELU(x *Tensor) *Tensor {
	out := New(x.Shape...)
	for i, v := range x.Data {
		out.Data[i] = gelu(v)
	}
	return out
}

func (reference) Conv1D(x, w, b *Tensor, stride, pad int) *Tensor {
	d := checkConv(x, w, b, stride, pad)
	out := New(d.outCh, d.tOut)
	for o := 0; o < d.outCh; o++ {
		for t := 0; t < d.tOut; t++ {
			sum := 0.0
			if b != nil {
				sum = float64(b.Data[o])
			}
			for c := 0; c < d.inCh; c++ {
				for kk := 0; kk < d.k; kk++ {
					src := t*stride + kk - pad
					if src < 0 || src >= d.t {
						continue
					}
					sum += float64(w.Data[(o*d.inCh+c)*d.k+kk]) * float64(x.Data[c*d.t+src])
				}
			}
			out.Data[o*d.tOut+t] = float32(sum)
		}
	}
	return out
}

func (reference) Attention(q, k, v *Tensor, heads int, causal bool) *Tensor {
	d := checkAttention(q, k, v, heads)
	out := New(d.tq, d.d)
	scale := 1 / math.Sqrt(float64(d.dh))
	scores := make([]float32, d.tk)
	probs := make([]float32, d.tk)
	for h := 0; h < heads; h++ {
		off := h * d.dh
		for i := 0; i < d.tq; i++ {
			qi := q.Data[i*d.d+off : i*d.d+off+d.dh]
			for j := 0; j < d.tk; j++ {
				if causal && j > causalLimit(i, d.tq, d.tk) {
					scores[j] = float32(math.Inf(-1))
					continue
				}
				kj := k.Data[j*d.d+off : j*d.d+off+d.dh]
				sum := 0.0
				for p, qv := range qi {
					sum += float64(qv) * float64(kj[p])
				}
				scores[j] = float32(sum * scale)
			}
			softmaxRow64(probs, scores)
			dst := out.Data[i*d.d+off : i*d.d+off+d.dh]
			for p := range dst {
				sum := 0.0
				for j, pj := range probs {
					sum += float64(pj) * float64(v.Data[j*d.d+off+p])
				}
				dst[p] = float32(sum)
			}
		}
	}
	return out
}
