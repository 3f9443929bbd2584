package simd

// RadixStage runs one decimation-in-time radix-2 stage over split
// real/imaginary buffers. The buffers are walked in blocks of 2*span; within
// each block element k is combined with element k+span using twiddle k:
//
//	t = tw[k] * v[k]
//	u[k], v[k] = u[k]+t, u[k]-t
//
// len(twRe) and len(twIm) must be at least span.
func RadixStage(re, im []float64, span int, twRe, twIm []float64) {
	twRe, twIm = twRe[:span], twIm[:span]
	for lo := 0; lo+2*span <= len(re); lo += 2 * span {
		uRe, uIm := re[lo:lo+span], im[lo:lo+span]
		vRe, vIm := re[lo+span:lo+2*span], im[lo+span:lo+2*span]
		for k, wr := range twRe {
			wi := twIm[k]
			tr := wr*vRe[k] - wi*vIm[k]
			ti := wr*vIm[k] + wi*vRe[k]
			ur, ui := uRe[k], uIm[k]
			uRe[k], uIm[k] = ur+tr, ui+ti
			vRe[k], vIm[k] = ur-tr, ui-ti
		}
	}
}
