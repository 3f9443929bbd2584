package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Encoding identifies the sample representation of a WAV data chunk.
type Encoding uint16

// Encodings Decode understands.
const (
	PCM   Encoding = 1
	Float Encoding = 3

	extensible Encoding = 0xFFFE
)

func (e Encoding) String() string {
	switch e {
	case PCM:
		return "pcm"
	case Float:
		return "float"
	}
	return fmt.Sprintf("encoding(%#x)", uint16(e))
}

var (
	// ErrNotWAV is returned when the stream is not a RIFF/WAVE container.
	ErrNotWAV = errors.New("not a RIFF/WAVE stream")
	// ErrUnsupported is returned for encodings or bit depths Decode cannot read.
	ErrUnsupported = errors.New("unsupported WAV format")
)

// Format describes the stream a Clip was decoded from.
type Format struct {
	Encoding   Encoding
	Channels   int
	SampleRate int
	BitDepth   int
}

// Clip is decoded mono audio in [-1, 1] at Format.SampleRate.
type Clip struct {
	Format  Format
	Samples []float32
}

// Duration is the clip length in milliseconds.
func (c *Clip) Duration() int64 {
	if c.Format.SampleRate == 0 {
		return 0
	}
	return int64(len(c.Samples)) * 1000 / int64(c.Format.SampleRate)
}

// Decode reads a WAV stream. Integer PCM of 8, 16, 24 or 32 bits and IEEE
// float of 32 or 64 bits are accepted, plain or wrapped in
// WAVE_FORMAT_EXTENSIBLE. Channels are averaged down to mono.
func Decode(r io.Reader) (*Clip, error) {
	br := bufio.NewReader(r)
	var riff [12]byte
	if _, err := io.ReadFull(br, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	var (
		f       Format
		haveFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("wav: chunk header: %w", err)
		}
		id := string(hdr[:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:]))
		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(br, body); err != nil {
				return nil, fmt.Errorf("wav: fmt chunk: %w", err)
			}
			var err error
			if f, err = parseFormat(body); err != nil {
				return nil, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("wav: data chunk before fmt chunk")
			}
			samples, err := readFrames(br, size, f)
			if err != nil {
				return nil, err
			}
			return &Clip{Format: f, Samples: samples}, nil
		default:
			if _, err := br.Discard(int(size + size&1)); err != nil {
				return nil, fmt.Errorf("wav: skip chunk %q: %w", id, err)
			}
			continue
		}
		if size&1 == 1 {
			if _, err := br.Discard(1); err != nil {
				return nil, fmt.Errorf("wav: chunk padding: %w", err)
			}
		}
	}
	if !haveFmt {
		return nil, errors.New("wav: missing fmt chunk")
	}
	return nil, errors.New("wav: missing data chunk")
}

// DecodeFile opens path and decodes it.
func DecodeFile(path string) (*Clip, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Decode(fh)
}

func parseFormat(b []byte) (Format, error) {
	if len(b) < 16 {
		return Format{}, fmt.Errorf("wav: fmt chunk of %d bytes", len(b))
	}
	le := binary.LittleEndian
	f := Format{
		Encoding:   Encoding(le.Uint16(b[0:])),
		Channels:   int(le.Uint16(b[2:])),
		SampleRate: int(le.Uint32(b[4:])),
		BitDepth:   int(le.Uint16(b[14:])),
	}
	if f.Encoding == extensible {
		// the sub-format GUID starts with the real format code
		if len(b) < 26 {
			return Format{}, fmt.Errorf("wav: extensible fmt chunk of %d bytes", len(b))
		}
		f.Encoding = Encoding(le.Uint16(b[24:]))
	}
	switch {
	case f.Channels < 1:
		return Format{}, fmt.Errorf("wav: %d channels", f.Channels)
	case f.SampleRate <= 0:
		return Format{}, errors.New("wav: sample rate is zero")
	case f.Encoding == PCM && (f.BitDepth == 8 || f.BitDepth == 16 || f.BitDepth == 24 || f.BitDepth == 32):
	case f.Encoding == Float && (f.BitDepth == 32 || f.BitDepth == 64):
	default:
		return Format{}, fmt.Errorf("%w: %s with %d bits", ErrUnsupported, f.Encoding, f.BitDepth)
	}
	return f, nil
}

// readFrames decodes size bytes of interleaved frames, ignoring a trailing
// partial frame.
func readFrames(r io.Reader, size int64, f Format) ([]float32, error) {
	width := f.BitDepth / 8
	frameBytes := width * f.Channels
	n := int(size) / frameBytes
	raw := make([]byte, n*frameBytes)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("wav: data chunk: %w", err)
	}
	sample := sampleDecoder(f)
	out := make([]float32, n)
	scale := 1 / float64(f.Channels)
	for i := range out {
		frame := raw[i*frameBytes : (i+1)*frameBytes]
		var sum float64
		for c := 0; c < f.Channels; c++ {
			sum += sample(frame[c*width : (c+1)*width])
		}
		out[i] = float32(sum * scale)
	}
	return out, nil
}

func sampleDecoder(f Format) func([]byte) float64 {
	le := binary.LittleEndian
	switch {
	case f.Encoding == Float && f.BitDepth == 32:
		return func(b []byte) float64 { return float64(math.Float32frombits(le.Uint32(b))) }
	case f.Encoding == Float:
		return func(b []byte) float64 { return math.Float64frombits(le.Uint64(b)) }
	case f.BitDepth == 8:
		return func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }
	case f.BitDepth == 16:
		return func(b []byte) float64 { return float64(int16(le.Uint16(b))) / (1 << 15) }
	case f.BitDepth == 24:
		return func(b []byte) float64 {
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8
			return float64(v) / (1 << 23)
		}
	default:
		return func(b []byte) float64 { return float64(int32(le.Uint32(b))) / (1 << 31) }
	}
}

// Encode writes mono samples as a 16-bit PCM WAV stream, clipping to [-1, 1].
func Encode(w io.Writer, samples []float32, sampleRate int) error {
	data := make([]byte, 44+2*len(samples))
	le := binary.LittleEndian
	copy(data[0:], "RIFF")
	le.PutUint32(data[4:], uint32(36+2*len(samples)))
	copy(data[8:], "WAVEfmt ")
	le.PutUint32(data[16:], 16)
	le.PutUint16(data[20:], uint16(PCM))
	le.PutUint16(data[22:], 1)
	le.PutUint32(data[24:], uint32(sampleRate))
	le.PutUint32(data[28:], uint32(sampleRate*2))
	le.PutUint16(data[32:], 2)
	le.PutUint16(data[34:], 16)
	copy(data[36:], "data")
	le.PutUint32(data[40:], uint32(2*len(samples)))
	for i, s := range samples {
		v := math.Round(math.Max(-1, math.Min(1, float64(s))) * 32767)
		le.PutUint16(data[44+2*i:], uint16(int16(v)))
	}
	_, err := w.Write(data)
	return err
}
