package model

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ieee0824/whisper-go/tensor"
)

// Load reads and validates a model file. Any failure is a *LoadError.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Kind: IO, Path: path, Err: err}
	}
	defer f.Close()

	m, err := Read(f)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return m, nil
}

// Read parses a model from r. Loading is all-or-nothing: either a fully
// validated model or a *LoadError is returned.
func Read(r io.Reader) (*Model, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	h := xxhash.New()
	fr := &fileReader{r: io.TeeReader(br, h)}

	magic := make([]byte, 4)
	if err := fr.full(magic); err != nil {
		return nil, err
	}
	if string(magic) != Magic {
		return nil, corrupt("bad magic %q", magic)
	}
	version, err := fr.u32()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, &LoadError{Kind: UnsupportedVersion, Err: fmt.Errorf("version %d, want %d", version, Version)}
	}

	var hp HParams
	if err := fr.msgpackBlock("hparams", &hp); err != nil {
		return nil, err
	}
	var tokens [][]byte
	if err := fr.msgpackBlock("vocab", &tokens); err != nil {
		return nil, err
	}
	if err := hp.Validate(len(tokens)); err != nil {
		return nil, corrupt("hparams: %w", err)
	}

	expected := make(map[string][]int)
	for _, s := range TensorSpecs(hp) {
		expected[s.Name] = s.Shape
	}
	count, err := fr.u32()
	if err != nil {
		return nil, err
	}
	if int(count) != len(expected) {
		return nil, corrupt("file has %d tensors, want %d", count, len(expected))
	}

	tensors := make(map[string]*tensor.Tensor, count)
	names := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		name, t, err := fr.tensor(expected)
		if err != nil {
			return nil, err
		}
		if _, dup := tensors[name]; dup {
			return nil, corrupt("duplicate tensor %q", name)
		}
		tensors[name] = t
		names = append(names, name)
	}

	sum := h.Sum64()
	var stored uint64
	if err := binary.Read(br, binary.LittleEndian, &stored); err != nil {
		return nil, classify(err, "checksum")
	}
	if stored != sum {
		return nil, corrupt("checksum %016x, computed %016x", stored, sum)
	}
	if _, err := br.ReadByte(); err == nil {
		return nil, corrupt("trailing data after checksum")
	} else if !errors.Is(err, io.EOF) {
		return nil, &LoadError{Kind: IO, Err: err}
	}

	return New(hp, tokens, tensors, names)
}

type fileReader struct {
	r io.Reader
}

// classify maps a read error: running out of bytes means the file is
// truncated, anything else is a storage failure.
func classify(err error, what string) *LoadError {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return corrupt("truncated %s", what)
	}
	return &LoadError{Kind: IO, Err: fmt.Errorf("read %s: %w", what, err)}
}

func (fr *fileReader) full(p []byte) error {
	if _, err := io.ReadFull(fr.r, p); err != nil {
		return classify(err, "header")
	}
	return nil
}

func (fr *fileReader) u8() (uint8, error) {
	var b [1]byte
	err := fr.full(b[:])
	return b[0], err
}

func (fr *fileReader) u16() (uint16, error) {
	var b [2]byte
	err := fr.full(b[:])
	return binary.LittleEndian.Uint16(b[:]), err
}

func (fr *fileReader) u32() (uint32, error) {
	var b [4]byte
	err := fr.full(b[:])
	return binary.LittleEndian.Uint32(b[:]), err
}

func (fr *fileReader) u64() (uint64, error) {
	var b [8]byte
	err := fr.full(b[:])
	return binary.LittleEndian.Uint64(b[:]), err
}

func (fr *fileReader) msgpackBlock(what string, v any) error {
	n, err := fr.u32()
	if err != nil {
		return err
	}
	if n > maxBlockLen {
		return corrupt("%s block of %d bytes", what, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return classify(err, what)
	}
	if err := msgpack.Unmarshal(buf, v); err != nil {
		return corrupt("decode %s: %w", what, err)
	}
	return nil
}

// tensor reads one tensor record, rejecting names and shapes that are not
// part of the expected inventory before allocating its data.
func (fr *fileReader) tensor(expected map[string][]int) (string, *tensor.Tensor, error) {
	nameLen, err := fr.u16()
	if err != nil {
		return "", nil, err
	}
	if nameLen == 0 || nameLen > maxNameLen {
		return "", nil, corrupt("tensor name length %d", nameLen)
	}
	nameBuf := make([]byte, nameLen)
	if err := fr.full(nameBuf); err != nil {
		return "", nil, err
	}
	name := string(nameBuf)
	want, ok := expected[name]
	if !ok {
		return "", nil, corrupt("unexpected tensor %q", name)
	}

	ndims, err := fr.u8()
	if err != nil {
		return "", nil, err
	}
	if ndims == 0 || ndims > maxDims {
		return "", nil, corrupt("tensor %q has %d dims", name, ndims)
	}
	shape := make([]int, ndims)
	for i := range shape {
		d, err := fr.u32()
		if err != nil {
			return "", nil, err
		}
		shape[i] = int(d)
	}
	if !slices.Equal(shape, want) {
		return "", nil, corrupt("tensor %q has shape %v, want %v", name, shape, want)
	}

	dt, err := fr.u8()
	if err != nil {
		return "", nil, err
	}
	dtype := DType(dt)
	if dtype.Size() == 0 {
		return "", nil, corrupt("tensor %q has unknown dtype %d", name, dt)
	}
	nbytes, err := fr.u64()
	if err != nil {
		return "", nil, err
	}
	n, ok := elements(shape)
	if !ok || nbytes/uint64(dtype.Size()) != n || nbytes%uint64(dtype.Size()) != 0 {
		return "", nil, corrupt("tensor %q: %d bytes for shape %v of %s", name, nbytes, shape, dtype)
	}
	raw, err := fr.payload(nbytes)
	if err != nil {
		return "", nil, classify(err, "tensor "+name)
	}
	t := tensor.New(shape...)
	decodeElements(t.Data, raw, dtype)
	return name, t, nil
}

// elements returns the product of shape, or false when it overflows a
// slice length.
func elements(shape []int) (uint64, bool) {
	n := uint64(1)
	for _, d := range shape {
		if d < 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(n, uint64(d))
		if hi != 0 || lo > maxElements {
			return 0, false
		}
		n = lo
	}
	return n, true
}

// payload reads n bytes, growing the buffer only as data arrives so a header
// that overstates a length fails on the short read instead of allocating.
func (fr *fileReader) payload(n uint64) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(min(n, 1<<20)))
	if _, err := io.CopyN(&buf, fr.r, int64(n)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
