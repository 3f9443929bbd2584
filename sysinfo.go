package whisper

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/ieee0824/whisper-go/internal/blas"
)

// SystemInfo describes the compute capabilities available to backends.
func SystemInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "GOOS = %s | GOARCH = %s | ", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "CPUS = %d | GOMAXPROCS = %d | ", runtime.NumCPU(), runtime.GOMAXPROCS(0))
	fmt.Fprintf(&b, "BLAS = %s | ACCELERATE = %d | ", blas.Name(), btoi(blas.HasAccelerate()))
	fmt.Fprintf(&b, "GO = %s", runtime.Version())
	return b.String()
}

func btoi(v bool) int {
	if v {
		return 1
	}
	return 0
}
