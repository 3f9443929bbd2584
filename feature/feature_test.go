package feature

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// dftPower is the O(n^2) reference for the one-sided power spectrum.
func dftPower(x []float64, n int) []float64 {
	out := make([]float64, n/2+1)
	for k := range out {
		var sum complex128
		for t, v := range x {
			sum += complex(v, 0) * cmplx.Exp(complex(0, -2*math.Pi*float64(k*t)/float64(n)))
		}
		out[k] = real(sum)*real(sum) + imag(sum)*imag(sum)
	}
	return out
}

func TestSTFT_MatchesDFT(t *testing.T) {
	noisy := make([]float64, 400)
	for i := range noisy {
		noisy[i] = math.Sin(float64(i)*0.3) + 0.1*float64(i%5)
	}
	tone := make([]float64, 400)
	for i := range tone {
		tone[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 16000)
	}
	impulse := make([]float64, 16)
	impulse[3] = 1

	tests := []struct {
		name   string
		n      int
		frame  []float64
		window []float64
	}{
		{"hann 512", 512, tone, HannWindow(400)},
		{"rect 512", 512, noisy, ones(400)},
		{"impulse 16", 16, impulse, ones(16)},
		{"short window 8", 8, []float64{1, -2, 3, 0.5, 4}, ones(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windowed := make([]float64, len(tt.window))
			for i := range windowed {
				windowed[i] = tt.frame[i] * tt.window[i]
			}
			tr := newSTFT(tt.n, tt.window)
			got := tr.power(make([]float64, tr.bins()), tt.frame)
			want := dftPower(windowed, tt.n)
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if math.Abs(got[i]-want[i]) > 1e-9*math.Max(1, want[i]) {
					t.Fatalf("power[%d] = %g, want %g", i, got[i], want[i])
				}
			}
		})
	}
}

func TestSTFT_Reusable(t *testing.T) {
	tr := newSTFT(16, ones(16))
	a := make([]float64, 16)
	a[0] = 1
	dst := make([]float64, tr.bins())
	tr.power(dst, []float64{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 1, 2, 3, 4, 5, 6})
	got := tr.power(dst, a)
	for k, v := range got {
		if math.Abs(v-1) > 1e-12 {
			t.Errorf("impulse power[%d] = %g, want 1", k, v)
		}
	}
}

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

func TestHannWindow_Periodic(t *testing.T) {
	w := HannWindow(8)
	if w[0] != 0 {
		t.Errorf("w[0] = %f, want 0", w[0])
	}
	if math.Abs(w[4]-1) > 1e-12 {
		t.Errorf("w[4] = %f, want 1", w[4])
	}
	// periodic: symmetric around n/2, last sample is not zero
	if math.Abs(w[1]-w[7]) > 1e-12 || w[7] == 0 {
		t.Errorf("window not periodic: %v", w)
	}
}

func TestReflectPad(t *testing.T) {
	got := ReflectPad([]float64{1, 2, 3, 4}, 2)
	if diff := cmp.Diff([]float64{3, 2, 1, 2, 3, 4, 3, 2}, got); diff != "" {
		t.Errorf("ReflectPad mismatch (-want +got):\n%s", diff)
	}
}

func TestMelBank(t *testing.T) {
	bank := NewMelBank(80, 512, 16000, 0, 8000)
	if bank.Len() != 80 {
		t.Fatalf("Len = %d, want 80", bank.Len())
	}
	binHz := 16000.0 / 512
	prev := -1
	for i, band := range bank.bands {
		if len(band.w) == 0 {
			t.Errorf("band %d is empty", i)
		}
		if band.lo < prev {
			t.Errorf("band %d starts at bin %d before band %d", i, band.lo, i-1)
		}
		prev = band.lo
		// the sampled triangle approximates unit area in Hz
		area := 0.0
		for k := 0; k < 257; k++ {
			w := bank.Weight(i, k)
			if w < 0 {
				t.Errorf("band %d bin %d: negative weight %f", i, k, w)
			}
			area += w * binHz
		}
		if i > 10 && math.Abs(area-1) > 0.1 {
			t.Errorf("band %d area = %f, want ~1", i, area)
		}
	}
	if got := bank.Weight(0, 256); got != 0 {
		t.Errorf("Weight(0, 256) = %f, want 0", got)
	}
}

func TestMelBank_Project(t *testing.T) {
	bank := NewMelBank(4, 16, 16000, 0, 8000)
	power := make([]float64, 9)
	for k := range power {
		power[k] = float64(k + 1)
	}
	got := bank.Project(nil, power)
	for i := range got {
		want := 0.0
		for k, p := range power {
			want += bank.Weight(i, k) * p
		}
		if math.Abs(got[i]-want) > 1e-12 {
			t.Errorf("band %d = %f, want %f", i, got[i], want)
		}
	}
	buf := make([]float64, 0, 8)
	if out := bank.Project(buf, power); &out[0] != &buf[:1][0] {
		t.Error("Project reallocated a large enough buffer")
	}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.ChunkFrames = 20
	return cfg
}

func TestExtract_TooShort(t *testing.T) {
	cfg := smallConfig()
	for _, n := range []int{0, 1, cfg.WindowLength - 1} {
		_, err := Extract(make([]float32, n), cfg)
		if !errors.Is(err, ErrAudioTooShort) {
			t.Errorf("Extract(%d samples) err = %v, want ErrAudioTooShort", n, err)
		}
	}
	if _, err := Extract(make([]float32, cfg.WindowLength), cfg); err != nil {
		t.Errorf("Extract(one window) err = %v", err)
	}
}

func TestExtract_FrameCounts(t *testing.T) {
	cfg := smallConfig()
	spec, err := Extract(make([]float32, 1601), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if spec.ContentFrames != 11 {
		t.Errorf("ContentFrames = %d, want 11", spec.ContentFrames)
	}
	if spec.NumFrames != 31 {
		t.Errorf("NumFrames = %d, want 31", spec.NumFrames)
	}
	if len(spec.Data) != cfg.NumMels*spec.NumFrames {
		t.Errorf("len(Data) = %d, want %d", len(spec.Data), cfg.NumMels*spec.NumFrames)
	}
}

func TestExtract_SilenceIsFlat(t *testing.T) {
	spec, err := Extract(make([]float32, 16000), smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	want := float32((math.Log10(logFloor) + 4) / 4)
	for i, v := range spec.Data {
		if v != want {
			t.Fatalf("Data[%d] = %f, want %f", i, v, want)
		}
	}
}

func TestExtract_DynamicRange(t *testing.T) {
	spec, err := Extract(generateSine(16000, 440), smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range spec.Data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	// clamp at max-8 in log10 units, then divided by 4
	if d := hi - lo; d > 2+1e-5 {
		t.Errorf("range = %f, want <= 2", d)
	}
}

func TestExtract_SinePeaksInMatchingBand(t *testing.T) {
	cfg := smallConfig()
	spec, err := Extract(generateSine(16000, 1000), cfg)
	if err != nil {
		t.Fatal(err)
	}
	bank := NewMelBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, 0, 8000)
	frame := spec.ContentFrames / 2
	best := 0
	for m := 1; m < spec.NumMels; m++ {
		if spec.At(m, frame) > spec.At(best, frame) {
			best = m
		}
	}
	// the best band must have weight at the 1 kHz bin (bin 32 for 512/16k)
	if bank.Weight(best, 32) == 0 {
		t.Errorf("peak band %d does not cover 1 kHz", best)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	samples := generateSine(8000, 300)
	a, err := Extract(samples, smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Extract(samples, smallConfig())
	if diff := cmp.Diff(a.Data, b.Data); diff != "" {
		t.Errorf("Extract not deterministic (-first +second):\n%s", diff)
	}
}

func TestSpectrogram_WindowPadsWithFloor(t *testing.T) {
	spec, err := Extract(generateSine(4000, 440), smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	w := spec.Window(spec.NumFrames-2, 4)
	if w.Shape[0] != spec.NumMels || w.Shape[1] != 4 {
		t.Fatalf("window shape %v", w.Shape)
	}
	if w.Row(0)[0] != spec.At(0, spec.NumFrames-2) {
		t.Errorf("window[0][0] = %f, want %f", w.Row(0)[0], spec.At(0, spec.NumFrames-2))
	}
	if w.Row(0)[3] != spec.floor {
		t.Errorf("window[0][3] = %f, want floor %f", w.Row(0)[3], spec.floor)
	}
}
