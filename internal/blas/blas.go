// Package blas exposes the single-precision GEMM used by the accelerated
// tensor backend. With cgo on darwin it calls Apple Accelerate; elsewhere it
// runs gonum's pure-Go kernels.
package blas

// Sgemm computes C = alpha*op(A)*op(B) + beta*C on row-major matrices, where
// op(X) is X or its transpose. op(A) is m x k, op(B) is k x n and C is m x n.
// Any zero dimension is a no-op and leaves every operand untouched.
func Sgemm(transA, transB bool, m, n, k int,
	alpha float32, a []float32, lda int,
	b []float32, ldb int,
	beta float32, c []float32, ldc int) {
	if m == 0 || n == 0 || k == 0 {
		return
	}
	sgemm(transA, transB, m, n, k, alpha, a, lda, b, ldb, beta, c, ldc)
}

// HasAccelerate reports whether Sgemm dispatches to Apple Accelerate.
func HasAccelerate() bool { return kernel == "accelerate" }

// Name identifies the GEMM implementation in capability strings.
func Name() string { return kernel }
