// Package tensor provides dense float32 tensors and the compute backends
// that run the transformer graph over them.
package tensor

import (
	"fmt"
	"slices"
)

// Tensor is a dense row-major float32 buffer with shape metadata.
// The last dimension is the row width; all leading dimensions are
// flattened into rows.
type Tensor struct {
	Shape []int
	Data  []float32
}

// New allocates a zero-filled tensor of the given shape.
func New(shape ...int) *Tensor {
	return &Tensor{Shape: slices.Clone(shape), Data: make([]float32, numel(shape))}
}

// FromData wraps data in a tensor. It panics if len(data) does not match shape.
func FromData(data []float32, shape ...int) *Tensor {
	if n := numel(shape); n != len(data) {
		panic(fmt.Sprintf("tensor: %d elements do not fit shape %v (%d)", len(data), shape, n))
	}
	return &Tensor{Shape: slices.Clone(shape), Data: data}
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Numel returns the number of elements.
func (t *Tensor) Numel() int { return len(t.Data) }

// Cols returns the size of the last dimension.
func (t *Tensor) Cols() int {
	if len(t.Shape) == 0 {
		return 1
	}
	return t.Shape[len(t.Shape)-1]
}

// Rows returns the product of all leading dimensions.
func (t *Tensor) Rows() int {
	c := t.Cols()
	if c == 0 {
		return 0
	}
	return len(t.Data) / c
}

// Row returns row i as a slice sharing the tensor's storage.
func (t *Tensor) Row(i int) []float32 {
	c := t.Cols()
	return t.Data[i*c : (i+1)*c]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: slices.Clone(t.Shape), Data: slices.Clone(t.Data)}
}

// SameShape reports whether t and u have identical shapes.
func (t *Tensor) SameShape(u *Tensor) bool {
	return slices.Equal(t.Shape, u.Shape)
}

// AppendRows appends the rows of src to t in place. t must be 2-D and
// src must have the same row width. This is the only mutating operation
// on a tensor and backs the decoder key/value cache.
func (t *Tensor) AppendRows(src *Tensor) {
	if len(t.Shape) != 2 || src.Cols() != t.Cols() {
		panic(fmt.Sprintf("tensor: cannot append %v rows to %v", src.Shape, t.Shape))
	}
	t.Data = append(t.Data, src.Data...)
	t.Shape[0] += src.Rows()
}

// SliceRows returns a copy of rows [start, end) of a 2-D tensor.
func (t *Tensor) SliceRows(start, end int) *Tensor {
	c := t.Cols()
	return FromData(slices.Clone(t.Data[start*c:end*c]), end-start, c)
}

// Transpose returns the transpose of a 2-D tensor.
func (t *Tensor) Transpose() *Tensor {
	r, c := t.Rows(), t.Cols()
	out := New(c, r)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Data[j*r+i] = t.Data[i*c+j]
		}
	}
	return out
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.Shape)
}
