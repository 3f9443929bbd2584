package simd

import (
	"math"
	"math/rand"
	"testing"
)

// dotGo is the plain sequential reference.
func dotGo(x, y []float32) float64 {
	sum := 0.0
	for i := range x {
		sum += float64(x[i]) * float64(y[i])
	}
	return sum
}

func TestDot(t *testing.T) {
	for _, n := range []int{0, 1, 3, 4, 7, 64, 385} {
		rng := rand.New(rand.NewSource(int64(n)))
		x := make([]float32, n)
		y := make([]float32, n)
		for i := range x {
			x[i] = rng.Float32()*2 - 1
			y[i] = rng.Float32()*2 - 1
		}
		got := float64(Dot(x, y))
		want := dotGo(x, y)
		if math.Abs(got-want) > 1e-4 {
			t.Errorf("Dot(n=%d) = %f, want %f", n, got, want)
		}
	}
}

func TestDot_reproducible(t *testing.T) {
	x := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7}
	y := []float32{1e3, -1e-3, 7, 0.5, -2, 3, 1}
	a := Dot(x, y)
	for i := 0; i < 10; i++ {
		if b := Dot(x, y); b != a {
			t.Fatalf("Dot not reproducible: %v != %v", b, a)
		}
	}
}

func TestAxpy(t *testing.T) {
	x := []float32{1, 2, 3, 4, 5}
	y := []float32{1, 1, 1, 1, 1}
	Axpy(2, x, y)
	want := []float32{3, 5, 7, 9, 11}
	for i := range want {
		if y[i] != want[i] {
			t.Errorf("y[%d] = %f, want %f", i, y[i], want[i])
		}
	}
}

func TestMax(t *testing.T) {
	if got := Max([]float32{-3, 7, 2, 7.5, -10}); got != 7.5 {
		t.Errorf("Max = %f, want 7.5", got)
	}
}

// stageGo is the complex128 reference for one radix-2 stage.
func stageGo(x []complex128, span int, tw []complex128) {
	for lo := 0; lo+2*span <= len(x); lo += 2 * span {
		for k := 0; k < span; k++ {
			u, v := x[lo+k], x[lo+k+span]
			t := tw[k] * v
			x[lo+k], x[lo+k+span] = u+t, u-t
		}
	}
}

func TestRadixStage(t *testing.T) {
	x := []complex128{1 + 2i, 3 - 1i, 0.5, 2, -1 + 1i, 4 - 4i, 0, 1i}
	tw := []complex128{1, 1i, complex(math.Sqrt2/2, -math.Sqrt2/2), -1}

	for _, span := range []int{1, 2, 4} {
		want := append([]complex128(nil), x...)
		stageGo(want, span, tw)
		re, im := split(x)
		twRe, twIm := split(tw)
		RadixStage(re, im, span, twRe, twIm)
		for k := range want {
			if math.Abs(re[k]-real(want[k])) > 1e-12 || math.Abs(im[k]-imag(want[k])) > 1e-12 {
				t.Errorf("span %d: x[%d] = %v%+vi, want %v", span, k, re[k], im[k], want[k])
			}
		}
	}
}

func split(c []complex128) ([]float64, []float64) {
	re := make([]float64, len(c))
	im := make([]float64, len(c))
	for i, v := range c {
		re[i] = real(v)
		im[i] = imag(v)
	}
	return re, im
}

func BenchmarkDot_384(b *testing.B) {
	x := make([]float32, 384)
	y := make([]float32, 384)
	for i := range x {
		x[i] = float32(i) * 0.01
		y[i] = float32(384-i) * 0.01
	}
	b.ResetTimer()
	for b.Loop() {
		Dot(x, y)
	}
}

func TestSum(t *testing.T) {
	for _, n := range []int{0, 1, 5, 8, 101} {
		x := make([]float32, n)
		want := 0.0
		for i := range x {
			x[i] = float32(i) * 0.5
			want += float64(x[i])
		}
		if got := float64(Sum(x)); math.Abs(got-want) > 1e-3 {
			t.Errorf("Sum(n=%d) = %f, want %f", n, got, want)
		}
	}
}
