package compose

import "gocv.io/x/gocv"

// Hybridize picks between a raw candidate and its composited counterpart.
// A score at or above threshold keeps the candidate; anything lower takes
// the composite. The returned Mat aliases one of the inputs and ownership
// stays with the caller.
func Hybridize(candidate, composite gocv.Mat, score, threshold float64) (gocv.Mat, bool) {
	if score >= threshold {
		return candidate, false
	}
	return composite, true
}
