//go:build darwin && cgo

package blas

/*
#cgo CFLAGS: -DACCELERATE_NEW_LAPACK
#cgo LDFLAGS: -framework Accelerate
#include <Accelerate/Accelerate.h>
*/
import "C"
import "unsafe"

const kernel = "accelerate"

func cblasOp(t bool) C.enum_CBLAS_TRANSPOSE {
	if t {
		return C.CblasTrans
	}
	return C.CblasNoTrans
}

func ptr(x []float32) *C.float { return (*C.float)(unsafe.Pointer(&x[0])) }

func sgemm(transA, transB bool, m, n, k int, alpha float32, a []float32, lda int, b []float32, ldb int, beta float32, c []float32, ldc int) {
	C.cblas_sgemm(C.CblasRowMajor, cblasOp(transA), cblasOp(transB),
		C.int(m), C.int(n), C.int(k), C.float(alpha),
		ptr(a), C.int(lda), ptr(b), C.int(ldb),
		C.float(beta), ptr(c), C.int(ldc))
}
