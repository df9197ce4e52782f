package match

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Adaptive threshold window tuned for 1024px control canvases.
const (
	adaptiveBlock = 21
	adaptiveC     = 5
)

// Extraction selects how probable sigil structure is pulled out of an
// arbitrary candidate image.
type Extraction int

const (
	// ExtractAdaptive uses local Gaussian thresholding, the default for
	// textured or unevenly lit candidates.
	ExtractAdaptive Extraction = iota
	// ExtractOtsu uses global bimodal thresholding.
	ExtractOtsu
	// ExtractEdges uses Canny edges dilated to reconnect strokes.
	ExtractEdges
)

func (e Extraction) String() string {
	switch e {
	case ExtractAdaptive:
		return "adaptive"
	case ExtractOtsu:
		return "otsu"
	case ExtractEdges:
		return "edges"
	default:
		return fmt.Sprintf("extraction(%d)", int(e))
	}
}

// ParseExtraction maps wire names to extraction strategies. The empty string
// selects the default.
func ParseExtraction(s string) (Extraction, error) {
	switch s {
	case "", "adaptive":
		return ExtractAdaptive, nil
	case "otsu":
		return ExtractOtsu, nil
	case "edges":
		return ExtractEdges, nil
	default:
		return ExtractAdaptive, fmt.Errorf("unknown extraction method %q", s)
	}
}

// extract pulls a binary structure mask out of a grayscale candidate.
// Thresholding strategies flip polarity when the result lands white-heavy;
// the edge strategy never inverts.
func extract(gray gocv.Mat, method Extraction) gocv.Mat {
	dst := gocv.NewMat()
	switch method {
	case ExtractOtsu:
		gocv.Threshold(gray, &dst, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
		invertIfWhiteHeavy(&dst)
	case ExtractEdges:
		edges := gocv.NewMat()
		defer edges.Close()
		gocv.Canny(gray, &edges, cannyLow, cannyHigh)

		kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 3, Y: 3})
		defer kernel.Close()
		gocv.Dilate(edges, &dst, kernel)
	default:
		gocv.AdaptiveThreshold(gray, &dst, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, adaptiveBlock, adaptiveC)
		invertIfWhiteHeavy(&dst)
	}
	return dst
}

// invertIfWhiteHeavy flips a binary mask whose mean sits above the midpoint,
// so extracted structure is always white-on-black.
func invertIfWhiteHeavy(m *gocv.Mat) {
	if m.Mean().Val1 > 127 {
		gocv.BitwiseNot(*m, m)
	}
}

// toGray returns a fresh single-channel copy of m.
func toGray(m gocv.Mat) gocv.Mat {
	if m.Channels() == 1 {
		return m.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	return gray
}
