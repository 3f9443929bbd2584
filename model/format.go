package model

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// File layout, all integers little-endian:
//
//	magic    [4]byte "WGGM"
//	version  uint32
//	hparams  uint32 length + msgpack(HParams)
//	vocab    uint32 length + msgpack([][]byte)
//	count    uint32
//	tensor*  uint16 name length, name
//	         uint8 ndims, ndims × uint32 dims
//	         uint8 dtype
//	         uint64 byte length
//	         raw element bytes
//	checksum uint64 xxhash64 of every preceding byte
const (
	Magic   = "WGGM"
	Version = 1
)

const (
	maxBlockLen = 1 << 28
	maxNameLen  = 1 << 10
	maxDims     = 4
	maxElements = 1 << 32
)

// DType is the on-disk element type of a tensor.
type DType uint8

const (
	Float32 DType = 0
	Float16 DType = 1
)

// Size returns the element size in bytes.
func (d DType) Size() int {
	switch d {
	case Float32:
		return 4
	case Float16:
		return 2
	}
	return 0
}

func (d DType) String() string {
	switch d {
	case Float32:
		return "f32"
	case Float16:
		return "f16"
	}
	return fmt.Sprintf("DType(%d)", uint8(d))
}

func decodeElements(dst []float32, raw []byte, dt DType) {
	switch dt {
	case Float32:
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
	case Float16:
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[2*i:])).Float32()
		}
	}
}

func encodeElements(src []float32, dt DType) []byte {
	raw := make([]byte, len(src)*dt.Size())
	switch dt {
	case Float32:
		for i, v := range src {
			binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
		}
	case Float16:
		for i, v := range src {
			binary.LittleEndian.PutUint16(raw[2*i:], float16.Fromfloat32(v).Bits())
		}
	}
	return raw
}
