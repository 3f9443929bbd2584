// Package model loads, validates and writes speech model files and exposes
// their immutable weight tensors.
package model

import (
	"fmt"
	"slices"

	"github.com/ieee0824/whisper-go/tensor"
)

// Model is an immutable set of hyperparameters, text tokens and weights.
// It is safe for concurrent use and must outlive every session using it.
type Model struct {
	hp      HParams
	tokens  [][]byte
	names   []string
	tensors map[string]*tensor.Tensor
	weights *Weights
}

// New assembles a model from parts after checking that tensors matches the
// inventory derived from hp exactly. names gives the tensor order; when
// nil, the canonical order of TensorSpecs is used.
func New(hp HParams, tokens [][]byte, tensors map[string]*tensor.Tensor, names []string) (*Model, error) {
	if err := hp.Validate(len(tokens)); err != nil {
		return nil, corrupt("hparams: %w", err)
	}
	specs := TensorSpecs(hp)
	if len(tensors) != len(specs) {
		return nil, corrupt("model has %d tensors, want %d", len(tensors), len(specs))
	}
	for _, s := range specs {
		t, ok := tensors[s.Name]
		if !ok {
			return nil, corrupt("missing tensor %q", s.Name)
		}
		if !slices.Equal(t.Shape, s.Shape) {
			return nil, corrupt("tensor %q has shape %v, want %v", s.Name, t.Shape, s.Shape)
		}
	}
	if names == nil {
		names = make([]string, len(specs))
		for i, s := range specs {
			names[i] = s.Name
		}
	}
	m := &Model{hp: hp, tokens: tokens, names: names, tensors: tensors}
	m.weights = bindWeights(hp, tensors)
	return m, nil
}

// HParams returns the architecture hyperparameters.
func (m *Model) HParams() HParams { return m.hp }

// Tokens returns the text token byte strings indexed by token id. The
// returned slice is shared and must not be modified.
func (m *Model) Tokens() [][]byte { return m.tokens }

// Tensor returns the named tensor.
func (m *Model) Tensor(name string) (*tensor.Tensor, bool) {
	t, ok := m.tensors[name]
	return t, ok
}

// NumTensors returns the number of tensors.
func (m *Model) NumTensors() int { return len(m.names) }

// TensorAt returns the i-th tensor in file order.
func (m *Model) TensorAt(i int) (string, *tensor.Tensor, error) {
	if i < 0 || i >= len(m.names) {
		return "", nil, fmt.Errorf("tensor index %d out of range [0, %d)", i, len(m.names))
	}
	name := m.names[i]
	return name, m.tensors[name], nil
}

// TensorNames returns the tensor names in file order.
func (m *Model) TensorNames() []string { return slices.Clone(m.names) }

// Weights returns the typed views the encoder and decoder run on.
func (m *Model) Weights() *Weights { return m.weights }
