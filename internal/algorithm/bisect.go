package algorithm

// Solver iteration budget. Each step halves the interval, so 200 iterations
// is far beyond what float64 resolution can use; running out means the
// objective is misbehaving and the caller must fall back.
const (
	defaultBisectTol     = 1e-12
	defaultBisectMaxIter = 200
)

// Bisect finds a root of f within [lo, hi] assuming f is monotone
// non-decreasing with f(lo) <= 0 <= f(hi).
//
// Returns the located root and true on convergence. When the bracket
// assumption is violated or the iteration budget runs out, it returns the
// best midpoint found and false; the caller decides how to recover.
func Bisect(f func(float64) float64, lo, hi, tol float64, maxIter int) (float64, bool) {
	flo := f(lo)
	fhi := f(hi)

	if flo == 0 {
		return lo, true
	}
	if fhi == 0 {
		return hi, true
	}
	if flo > 0 || fhi < 0 {
		// Bracket violated, nothing to search
		return lo, false
	}

	mid := lo
	for i := 0; i < maxIter; i++ {
		mid = lo + (hi-lo)/2
		if hi-lo < tol {
			return mid, true
		}

		fm := f(mid)
		switch {
		case fm == 0:
			return mid, true
		case fm < 0:
			lo = mid
		default:
			hi = mid
		}
	}

	return mid, false
}
