package model

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Write serializes m with float32 elements.
func Write(w io.Writer, m *Model) error {
	return WriteAs(w, m, Float32)
}

// WriteAs serializes m storing every tensor as dt.
func WriteAs(w io.Writer, m *Model, dt DType) error {
	if dt.Size() == 0 {
		return fmt.Errorf("write model: unknown dtype %d", dt)
	}
	bw := bufio.NewWriterSize(w, 1<<16)
	h := xxhash.New()
	mw := io.MultiWriter(bw, h)

	put := func(v any) error { return binary.Write(mw, binary.LittleEndian, v) }

	if _, err := io.WriteString(mw, Magic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	if err := put(uint32(Version)); err != nil {
		return fmt.Errorf("write version: %w", err)
	}
	for _, blk := range []struct {
		name string
		v    any
	}{{"hparams", m.hp}, {"vocab", m.tokens}} {
		buf, err := msgpack.Marshal(blk.v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", blk.name, err)
		}
		if err := put(uint32(len(buf))); err != nil {
			return fmt.Errorf("write %s: %w", blk.name, err)
		}
		if _, err := mw.Write(buf); err != nil {
			return fmt.Errorf("write %s: %w", blk.name, err)
		}
	}

	if err := put(uint32(len(m.names))); err != nil {
		return fmt.Errorf("write tensor count: %w", err)
	}
	for _, name := range m.names {
		t := m.tensors[name]
		if err := put(uint16(len(name))); err != nil {
			return fmt.Errorf("write tensor %q: %w", name, err)
		}
		if _, err := io.WriteString(mw, name); err != nil {
			return fmt.Errorf("write tensor %q: %w", name, err)
		}
		if err := put(uint8(len(t.Shape))); err != nil {
			return fmt.Errorf("write tensor %q: %w", name, err)
		}
		for _, d := range t.Shape {
			if err := put(uint32(d)); err != nil {
				return fmt.Errorf("write tensor %q: %w", name, err)
			}
		}
		raw := encodeElements(t.Data, dt)
		if err := put(uint8(dt)); err != nil {
			return fmt.Errorf("write tensor %q: %w", name, err)
		}
		if err := put(uint64(len(raw))); err != nil {
			return fmt.Errorf("write tensor %q: %w", name, err)
		}
		if _, err := mw.Write(raw); err != nil {
			return fmt.Errorf("write tensor %q: %w", name, err)
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, h.Sum64()); err != nil {
		return fmt.Errorf("write checksum: %w", err)
	}
	return bw.Flush()
}

// Save writes m to path storing every tensor as dt.
func Save(path string, m *Model, dt DType) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create model file: %w", err)
	}
	if err := WriteAs(f, m, dt); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
