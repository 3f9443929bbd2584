package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"
	"testing/iotest"

	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ieee0824/whisper-go/tensor"
)

func tinyHParams() HParams {
	hp := DefaultHParams()
	hp.NAudioCtx = 4
	hp.NAudioState = 8
	hp.NAudioHead = 2
	hp.NAudioLayer = 1
	hp.NTextCtx = 8
	hp.NTextState = 8
	hp.NTextHead = 2
	hp.NTextLayer = 1
	hp.NMels = 4
	hp.NLangs = 2
	return hp
}

func tinyModel(t *testing.T) *Model {
	t.Helper()
	m, err := NewRandom(tinyHParams(), [][]byte{[]byte("a"), []byte(" b"), []byte("c")}, 1)
	if err != nil {
		t.Fatalf("NewRandom: %v", err)
	}
	return m
}

func encode(t *testing.T, m *Model, dt DType) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteAs(&buf, m, dt); err != nil {
		t.Fatalf("WriteAs: %v", err)
	}
	return buf.Bytes()
}

func TestRoundTrip_HParamsExact(t *testing.T) {
	m := tinyModel(t)
	got, err := Read(bytes.NewReader(encode(t, m, Float32)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if diff := cmp.Diff(m.HParams(), got.HParams()); diff != "" {
		t.Errorf("hparams mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(m.Tokens(), got.Tokens()); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(m.TensorNames(), got.TensorNames()); diff != "" {
		t.Errorf("tensor order mismatch (-want +got):\n%s", diff)
	}
	for _, name := range m.TensorNames() {
		want, _ := m.Tensor(name)
		have, ok := got.Tensor(name)
		if !ok {
			t.Fatalf("tensor %q missing after round trip", name)
		}
		if diff := cmp.Diff(want, have); diff != "" {
			t.Errorf("tensor %q mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestRoundTrip_Float16(t *testing.T) {
	m := tinyModel(t)
	got, err := Read(bytes.NewReader(encode(t, m, Float16)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want, _ := m.Tensor("decoder.token_embedding.weight")
	have, _ := got.Tensor("decoder.token_embedding.weight")
	for i := range want.Data {
		if d := math.Abs(float64(want.Data[i] - have.Data[i])); d > 1e-3*math.Max(1, math.Abs(float64(want.Data[i]))) {
			t.Fatalf("[%d] = %f, want %f", i, have.Data[i], want.Data[i])
		}
	}
}

func TestSaveLoad(t *testing.T) {
	m := tinyModel(t)
	path := filepath.Join(t.TempDir(), "tiny.bin")
	if err := Save(path, m, Float32); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.NumTensors() != m.NumTensors() {
		t.Errorf("NumTensors = %d, want %d", got.NumTensors(), m.NumTensors())
	}
}

func TestLoad_Errors(t *testing.T) {
	m := tinyModel(t)
	valid := encode(t, m, Float32)
	mutate := func(f func(b []byte) []byte) []byte {
		return f(bytes.Clone(valid))
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrCorruptModel},
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b }), ErrCorruptModel},
		{"future version", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[4:], Version+1)
			return b
		}), ErrUnsupportedVersion},
		{"truncated", valid[:len(valid)/2], ErrCorruptModel},
		{"missing checksum", valid[:len(valid)-8], ErrCorruptModel},
		{"flipped data byte", mutate(func(b []byte) []byte { b[len(b)-9] ^= 0xff; return b }), ErrCorruptModel},
		{"bad checksum", mutate(func(b []byte) []byte { b[len(b)-1] ^= 0x01; return b }), ErrCorruptModel},
		{"trailing data", append(bytes.Clone(valid), 0), ErrCorruptModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(bytes.NewReader(tt.data))
			if got != nil {
				t.Error("partial model returned")
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("err %T is not *LoadError", err)
			}
		})
	}
}

func TestLoad_IOError(t *testing.T) {
	valid := encode(t, tinyModel(t), Float32)
	errDisk := errors.New("disk failure")
	r := io.MultiReader(bytes.NewReader(valid[:20]), iotest.ErrReader(errDisk))
	_, err := Read(r)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if !errors.Is(err, errDisk) {
		t.Errorf("err = %v, want wrapped disk error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"))
	if !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if errors.Is(err, ErrCorruptModel) {
		t.Error("missing file reported as corrupt")
	}
}

func tensorsCopy(m *Model) map[string]*tensor.Tensor {
	ts := make(map[string]*tensor.Tensor, m.NumTensors())
	for _, name := range m.TensorNames() {
		ts[name], _ = m.Tensor(name)
	}
	return ts
}

func TestNew_InventoryMismatch(t *testing.T) {
	m := tinyModel(t)
	hp := m.HParams()

	t.Run("missing", func(t *testing.T) {
		ts := tensorsCopy(m)
		delete(ts, "decoder.ln.bias")
		if _, err := New(hp, m.Tokens(), ts, nil); !errors.Is(err, ErrCorruptModel) {
			t.Errorf("err = %v, want ErrCorruptModel", err)
		}
	})
	t.Run("wrong shape", func(t *testing.T) {
		ts := tensorsCopy(m)
		ts["encoder.conv1.bias"] = tensor.New(hp.NAudioState + 1)
		if _, err := New(hp, m.Tokens(), ts, nil); !errors.Is(err, ErrCorruptModel) {
			t.Errorf("err = %v, want ErrCorruptModel", err)
		}
	})
	t.Run("vocab size", func(t *testing.T) {
		bad := hp
		bad.NVocab++
		if _, err := New(bad, m.Tokens(), tensorsCopy(m), nil); !errors.Is(err, ErrCorruptModel) {
			t.Errorf("err = %v, want ErrCorruptModel", err)
		}
	})
}

func TestTensorAt_OutOfRange(t *testing.T) {
	m := tinyModel(t)
	if _, _, err := m.TensorAt(m.NumTensors()); err == nil {
		t.Error("TensorAt past end returned nil error")
	}
	if _, _, err := m.TensorAt(-1); err == nil {
		t.Error("TensorAt(-1) returned nil error")
	}
}

func TestWeights_KeyHasNoBias(t *testing.T) {
	w := tinyModel(t).Weights()
	if len(w.Encoder.Blocks) != 1 || len(w.Decoder.Blocks) != 1 {
		t.Fatalf("blocks: encoder %d decoder %d, want 1 and 1", len(w.Encoder.Blocks), len(w.Decoder.Blocks))
	}
	if w.Encoder.Blocks[0].Attn.Key.B != nil {
		t.Error("encoder key projection has a bias")
	}
	if w.Decoder.Blocks[0].CrossAttn == nil {
		t.Error("decoder block lacks cross-attention")
	}
	if w.Encoder.Blocks[0].CrossAttn != nil {
		t.Error("encoder block has cross-attention")
	}
}

func TestHParams_Validate(t *testing.T) {
	hp := tinyHParams()
	hp.NVocab = hp.VocabSize(3)
	if err := hp.Validate(3); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := hp.Validate(0); err == nil {
		t.Error("empty vocabulary accepted")
	}

	tests := []struct {
		name string
		edit func(*HParams)
		ok   bool
	}{
		{"indivisible heads", func(h *HParams) { h.NAudioHead = 3 }, false},
		{"non power-of-two n_fft", func(h *HParams) { h.NFFT = 300 }, false},
		{"too many languages", func(h *HParams) { h.NLangs = MaxLanguages + 1 }, false},
		{"sub-millisecond hop", func(h *HParams) { h.HopLength, h.WindowLength, h.NFFT = 8, 16, 16 }, false},
		{"20 ms frames", func(h *HParams) { h.SampleRate = 8000 }, false},
		{"10 ms frames at 8 kHz", func(h *HParams) { h.SampleRate, h.HopLength, h.WindowLength, h.NFFT = 8000, 80, 200, 256 }, true},
		{"10 ms frames at 48 kHz", func(h *HParams) { h.SampleRate, h.HopLength, h.WindowLength, h.NFFT = 48000, 480, 1200, 2048 }, true},
		{"too many layers", func(h *HParams) { h.NTextLayer = maxLayers + 1 }, false},
		{"huge state", func(h *HParams) { h.NAudioState, h.NMels = 1 << 31, 1 << 31 }, false},
		{"huge context", func(h *HParams) { h.NTextCtx = maxWidth + 1 }, false},
		{"huge sample rate", func(h *HParams) { h.SampleRate, h.HopLength = 1 << 40, 1 << 40 / 100 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := hp
			tt.edit(&h)
			h.NVocab = h.VocabSize(3)
			err := h.Validate(3)
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("Validate accepted invalid hparams")
			}
		})
	}
}

// header encodes everything up to and including the tensor count.
func header(t *testing.T, hp HParams, tokens [][]byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(Magic)
	binary.Write(&buf, binary.LittleEndian, uint32(Version))
	for _, v := range []any{hp, tokens} {
		b, err := msgpack.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		binary.Write(&buf, binary.LittleEndian, uint32(len(b)))
		buf.Write(b)
	}
	binary.Write(&buf, binary.LittleEndian, uint32(len(TensorSpecs(hp))))
	return &buf
}

// record encodes a tensor record header without its data.
func record(buf *bytes.Buffer, name string, shape []int, nbytes uint64) {
	binary.Write(buf, binary.LittleEndian, uint16(len(name)))
	buf.WriteString(name)
	buf.WriteByte(uint8(len(shape)))
	for _, d := range shape {
		binary.Write(buf, binary.LittleEndian, uint32(d))
	}
	buf.WriteByte(uint8(Float32))
	binary.Write(buf, binary.LittleEndian, nbytes)
}

func TestRead_HostileHeaders(t *testing.T) {
	tokens := [][]byte{[]byte("a"), []byte(" b"), []byte("c")}
	tiny := tinyHParams()
	tiny.NVocab = tiny.VocabSize(len(tokens))
	conv := TensorSpecs(tiny)[0]

	huge := tiny
	huge.NAudioState, huge.NMels = 1<<31, 1<<31
	huge.NVocab = huge.VocabSize(len(tokens))

	coarse := tiny
	coarse.SampleRate = 8000
	coarse.NVocab = coarse.VocabSize(len(tokens))

	tests := []struct {
		name  string
		build func() []byte
	}{
		{"dims overflow", func() []byte {
			buf := header(t, huge, tokens)
			record(buf, "encoder.conv1.weight", []int{1 << 31, 1 << 31, 3}, 1<<63)
			return buf.Bytes()
		}},
		{"frames longer than 10 ms", func() []byte {
			return header(t, coarse, tokens).Bytes()
		}},
		{"length disagrees with shape", func() []byte {
			buf := header(t, tiny, tokens)
			record(buf, conv.Name, conv.Shape, 1<<40)
			return buf.Bytes()
		}},
		{"data missing", func() []byte {
			buf := header(t, tiny, tokens)
			n := 4 * uint64(conv.Shape[0]*conv.Shape[1]*conv.Shape[2])
			record(buf, conv.Name, conv.Shape, n)
			buf.Write(make([]byte, n/2))
			return buf.Bytes()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Read(bytes.NewReader(tt.build()))
			if m != nil {
				t.Error("partial model returned")
			}
			if !errors.Is(err, ErrCorruptModel) {
				t.Fatalf("err = %v, want ErrCorruptModel", err)
			}
		})
	}
}

func TestElements(t *testing.T) {
	if n, ok := elements([]int{3, 4, 5}); !ok || n != 60 {
		t.Errorf("elements(3,4,5) = %d, %t", n, ok)
	}
	for _, shape := range [][]int{{1 << 31, 1 << 31, 3}, {-1, 2}, {1 << 62, 1 << 62}} {
		if _, ok := elements(shape); ok {
			t.Errorf("elements(%v) accepted", shape)
		}
	}
}

func TestSinusoids(t *testing.T) {
	s := Sinusoids(3, 4)
	// position 0: sin(0)=0, cos(0)=1
	if diff := cmp.Diff([]float32{0, 0, 1, 1}, s.Row(0)); diff != "" {
		t.Errorf("row 0 mismatch (-want +got):\n%s", diff)
	}
}
