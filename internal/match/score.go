// Package match scores how closely a candidate image's detectable structure
// matches an original sigil mask, with IoU and edge-overlap metrics.
package match

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Canny thresholds shared by the edge metric and edge extraction.
const (
	cannyLow  = 50
	cannyHigh = 150
)

// Config holds scoring weights and thresholds.
type Config struct {
	// Threshold is the combined score required for "preserved".
	Threshold float64
	// BinarizeCutoff binarizes the original mask before IoU.
	BinarizeCutoff int
	// EdgeTolerance dilates edge maps by this radius before coverage is
	// measured, allowing small positional drift.
	EdgeTolerance int
	// IoUWeight and EdgeWeight combine the two metrics.
	IoUWeight  float64
	EdgeWeight float64
	// Method extracts structure from the candidate.
	Method Extraction
}

// DefaultConfig returns the scoring defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:      0.85,
		BinarizeCutoff: 128,
		EdgeTolerance:  3,
		IoUWeight:      0.7,
		EdgeWeight:     0.3,
		Method:         ExtractAdaptive,
	}
}

// Class is the structure-match classification.
type Class int

const (
	ClassDrift Class = iota
	ClassMoreArtistic
	ClassPreserved
)

func (c Class) String() string {
	switch c {
	case ClassPreserved:
		return "Structure Preserved"
	case ClassMoreArtistic:
		return "More Artistic"
	default:
		return "Style Drift"
	}
}

// Classify buckets a combined score. Boundaries are inclusive upward: a score
// sitting exactly on a boundary takes the higher class.
func Classify(combined, threshold float64) Class {
	switch {
	case combined >= 0.90:
		return ClassPreserved
	case combined >= threshold:
		return ClassPreserved
	case combined >= 0.70:
		return ClassMoreArtistic
	default:
		return ClassDrift
	}
}

// Result carries the structure-match metrics for one candidate.
type Result struct {
	IoU         float64
	EdgeOverlap float64
	Combined    float64
	Preserved   bool
	Class       Class
}

// Score extracts structure from candidate and scores it against the original
// stroke mask. Operand sizes are reconciled by shrinking both to the
// element-wise minimum; nothing is ever upscaled. Neither input is modified.
func Score(mask, candidate gocv.Mat, cfg Config) (Result, error) {
	if mask.Empty() {
		return Result{}, fmt.Errorf("empty original mask")
	}
	if candidate.Empty() {
		return Result{}, fmt.Errorf("empty candidate")
	}

	maskGray := toGray(mask)
	defer maskGray.Close()
	candGray := toGray(candidate)
	defer candGray.Close()
	reconcile(&maskGray, &candGray)

	maskBin := gocv.NewMat()
	defer maskBin.Close()
	gocv.Threshold(maskGray, &maskBin, float32(cfg.BinarizeCutoff), 255, gocv.ThresholdBinary)

	candBin := extract(candGray, cfg.Method)
	defer candBin.Close()

	iou := IoU(maskBin, candBin)
	edge := EdgeOverlap(maskGray, candGray, cfg.EdgeTolerance)
	combined := cfg.IoUWeight*iou + cfg.EdgeWeight*edge

	return Result{
		IoU:         iou,
		EdgeOverlap: edge,
		Combined:    combined,
		Preserved:   combined >= cfg.Threshold,
		Class:       Classify(combined, cfg.Threshold),
	}, nil
}

// IoU is the intersection-over-union of two masks binarized above the
// midpoint. Two empty masks are identical, not undefined: IoU = 1.0.
func IoU(a, b gocv.Mat) float64 {
	aBin := gocv.NewMat()
	defer aBin.Close()
	gocv.Threshold(a, &aBin, 127, 255, gocv.ThresholdBinary)

	bBin := gocv.NewMat()
	defer bBin.Close()
	gocv.Threshold(b, &bBin, 127, 255, gocv.ThresholdBinary)

	inter := gocv.NewMat()
	defer inter.Close()
	gocv.BitwiseAnd(aBin, bBin, &inter)

	union := gocv.NewMat()
	defer union.Close()
	gocv.BitwiseOr(aBin, bBin, &union)

	u := gocv.CountNonZero(union)
	if u == 0 {
		return 1.0
	}
	return float64(gocv.CountNonZero(inter)) / float64(u)
}

// EdgeOverlap measures bidirectional Canny edge coverage with a positional
// tolerance, combined by harmonic mean. Either edge set empty scores zero,
// even when the other is non-empty.
func EdgeOverlap(a, b gocv.Mat, tolerance int) float64 {
	edgesA := gocv.NewMat()
	defer edgesA.Close()
	gocv.Canny(a, &edgesA, cannyLow, cannyHigh)

	edgesB := gocv.NewMat()
	defer edgesB.Close()
	gocv.Canny(b, &edgesB, cannyLow, cannyHigh)

	countA := gocv.CountNonZero(edgesA)
	countB := gocv.CountNonZero(edgesB)
	if countA == 0 || countB == 0 {
		return 0.0
	}

	dilA := dilateDisk(edgesA, tolerance)
	defer dilA.Close()
	dilB := dilateDisk(edgesB, tolerance)
	defer dilB.Close()

	overlap := gocv.NewMat()
	defer overlap.Close()

	gocv.BitwiseAnd(edgesA, dilB, &overlap)
	forward := float64(gocv.CountNonZero(overlap)) / float64(countA)

	gocv.BitwiseAnd(edgesB, dilA, &overlap)
	backward := float64(gocv.CountNonZero(overlap)) / float64(countB)

	return stat.HarmonicMean([]float64{forward, backward}, nil)
}

// ScoreBatch scores candidates independently against one original mask,
// one goroutine per candidate. Order is preserved.
func ScoreBatch(mask gocv.Mat, candidates []gocv.Mat, cfg Config) ([]Result, error) {
	results := make([]Result, len(candidates))
	errs := make([]error, len(candidates))

	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = Score(mask, candidates[idx], cfg)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	return results, nil
}

// CountPassing counts results at or above threshold.
func CountPassing(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Preserved {
			n++
		}
	}
	return n
}

// ShouldRegenerate reports whether fewer than minPassing candidates preserved
// structure, and which indices failed.
func ShouldRegenerate(results []Result, minPassing int) (bool, []int) {
	passing := 0
	var failing []int
	for i, r := range results {
		if r.Preserved {
			passing++
		} else {
			failing = append(failing, i)
		}
	}
	return passing < minPassing, failing
}

// reconcile shrinks both Mats in place to their element-wise minimum dims.
func reconcile(a, b *gocv.Mat) {
	if a.Cols() == b.Cols() && a.Rows() == b.Rows() {
		return
	}
	w := a.Cols()
	if b.Cols() < w {
		w = b.Cols()
	}
	h := a.Rows()
	if b.Rows() < h {
		h = b.Rows()
	}
	shrink(a, w, h)
	shrink(b, w, h)
}

func shrink(m *gocv.Mat, w, h int) {
	if m.Cols() == w && m.Rows() == h {
		return
	}
	dst := gocv.NewMat()
	gocv.Resize(*m, &dst, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationLinear)
	m.Close()
	*m = dst
}

// dilateDisk grows a binary image with a disk kernel of the given radius.
func dilateDisk(m gocv.Mat, radius int) gocv.Mat {
	if radius <= 0 {
		return m.Clone()
	}
	side := radius*2 + 1
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: side, Y: side})
	defer kernel.Close()

	dst := gocv.NewMat()
	gocv.Dilate(m, &dst, kernel)
	return dst
}
