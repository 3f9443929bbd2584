package mathutil

import "math"

// LogSumExp returns log(sum(exp(x))). It is -Inf for an empty input or one
// where every entry is -Inf.
func LogSumExp(x []float32) float64 {
	peak := math.Inf(-1)
	for _, v := range x {
		peak = math.Max(peak, float64(v))
	}
	if math.IsInf(peak, -1) {
		return peak
	}
	var sum float64
	for _, v := range x {
		sum += math.Exp(float64(v) - peak)
	}
	return peak + math.Log(sum)
}

// LogSoftmax stores log-softmax(x) in dst. dst and x may alias.
// -Inf logits stay -Inf; an all -Inf row stays all -Inf.
func LogSoftmax(dst, x []float32) {
	lse := LogSumExp(x)
	if math.IsInf(lse, -1) {
		Fill(dst[:len(x)], float32(lse))
		return
	}
	for i, v := range x {
		dst[i] = float32(float64(v) - lse)
	}
}
