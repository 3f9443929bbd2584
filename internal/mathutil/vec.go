package mathutil

import "sort"

// Argmax returns the index of the largest element. Ties resolve to the
// lowest index. Returns -1 for an empty slice.
func Argmax(x []float32) int {
	best := -1
	for i, v := range x {
		if best < 0 || v > x[best] {
			best = i
		}
	}
	return best
}

// TopK returns the indices of the k largest elements ordered by value
// descending; equal values keep ascending index order.
func TopK(x []float32, k int) []int {
	if k > len(x) {
		k = len(x)
	}
	if k <= 0 {
		return nil
	}
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return x[idx[a]] > x[idx[b]]
	})
	return idx[:k:k]
}

// Fill sets every element of v to val.
func Fill(v []float32, val float32) {
	for i := range v {
		v[i] = val
	}
}
