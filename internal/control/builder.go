// Package control builds stylization-resistant control images and the
// protective masks derived from them.
package control

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"sigil-guard/pkg/geometry"
)

// contentCutoff is the intensity above which a pixel counts as content when
// locating the tight bounding box for centering.
const contentCutoff = 10

// Bundle holds a control image and everything derived from it. The three
// Mats always share identical dimensions.
type Bundle struct {
	Control     gocv.Mat // high-contrast control image
	StrokeMask  gocv.Mat // binary stroke mask
	DilatedMask gocv.Mat // stroke mask grown by the protective radius

	// ContentBounds locates the sigil on the padded canvas, recorded
	// before the resize back to CanvasSize.
	ContentBounds geometry.RectInt

	// Trace lists the processing steps applied, in order.
	Trace []string
}

// Close releases all Mats held by the bundle.
func (b *Bundle) Close() {
	b.Control.Close()
	b.StrokeMask.Close()
	b.DilatedMask.Close()
}

// Build derives the control image, stroke mask, and dilated protective mask
// from a canonical sigil bitmap (single-channel, white strokes on black).
// src is never modified. Identical input and params give pixel-identical
// output.
func Build(src gocv.Mat, p Params) (Bundle, error) {
	if src.Empty() {
		return Bundle{}, fmt.Errorf("empty source image")
	}
	if src.Channels() != 1 {
		return Bundle{}, fmt.Errorf("source must be single-channel, got %d channels", src.Channels())
	}

	trace := make([]string, 0, 5)

	// 1. Thicken strokes so they survive diffusion
	thick := thickenStrokes(src, p)
	defer thick.Close()
	trace = append(trace, fmt.Sprintf("thickened strokes (multiplier %.1f)", p.StrokeMultiplier))

	// 2. Pad and center the content; empty foreground passes through
	padded, bounds, padApplied := centerContent(thick, p)
	defer padded.Close()
	if padApplied {
		trace = append(trace, fmt.Sprintf("added %.0f%% padding", p.PaddingPercent*100))
	} else {
		trace = append(trace, "no content found, padding skipped")
	}

	// 3. Back to canvas size; padding changed the dimensions
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(padded, &resized, image.Point{X: p.CanvasSize, Y: p.CanvasSize}, 0, 0, gocv.InterpolationLanczos4)

	// 4. Unsharp mask for crisp edges
	control := unsharpMask(resized, p)
	trace = append(trace, "enhanced edges")

	// 5. Binary stroke mask, no smoothing
	stroke := gocv.NewMat()
	gocv.Threshold(control, &stroke, float32(p.MaskCutoff), 255, gocv.ThresholdBinary)
	trace = append(trace, "created stroke mask")

	// 6. Protective mask for compositing
	dilated := dilateDisk(stroke, p.MaskDilation)
	trace = append(trace, fmt.Sprintf("created dilated mask (%dpx)", p.MaskDilation))

	return Bundle{
		Control:       control,
		StrokeMask:    stroke,
		DilatedMask:   dilated,
		ContentBounds: bounds,
		Trace:         trace,
	}, nil
}

// thickenStrokes dilates with a disk kernel sized by the params.
func thickenStrokes(src gocv.Mat, p Params) gocv.Mat {
	k := p.kernelDiameter()
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: k, Y: k})
	defer kernel.Close()

	dst := gocv.NewMat()
	gocv.Dilate(src, &dst, kernel)
	return dst
}

// centerContent crops the content above contentCutoff and pastes it centered
// on a fresh square canvas padded on all sides. Returns the canvas, the
// content bounds on it, and whether padding was applied. Empty foreground
// passes through as a clone with full-frame bounds.
func centerContent(src gocv.Mat, p Params) (gocv.Mat, geometry.RectInt, bool) {
	w := src.Cols()
	h := src.Rows()

	minX, minY, maxX, maxY, ok := contentBox(src)
	if !ok {
		return src.Clone(), geometry.NewRectInt(0, 0, w, h), false
	}

	long := w
	if h > long {
		long = h
	}
	pad := int(math.Round(float64(long) * p.PaddingPercent))
	side := long + 2*pad

	canvas := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), side, side, gocv.MatTypeCV8U)

	cw := maxX - minX
	ch := maxY - minY
	pasteX := (side - cw) / 2
	pasteY := (side - ch) / 2

	content := src.Region(image.Rect(minX, minY, maxX+1, maxY+1))
	target := canvas.Region(image.Rect(pasteX, pasteY, pasteX+cw+1, pasteY+ch+1))
	content.CopyTo(&target)
	content.Close()
	target.Close()

	return canvas, geometry.NewRectInt(pasteX, pasteY, cw, ch), true
}

// contentBox scans for the tight bounding box of pixels above contentCutoff.
func contentBox(src gocv.Mat) (minX, minY, maxX, maxY int, ok bool) {
	w := src.Cols()
	h := src.Rows()
	data := src.ToBytes()

	minX, minY = w, h
	maxX, maxY = -1, -1
	for y := 0; y < h; y++ {
		row := data[y*w : (y+1)*w]
		for x, v := range row {
			if v > contentCutoff {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	return minX, minY, maxX, maxY, maxY >= 0
}

// unsharpMask sharpens as src + amount*(src - blur), saturating at 0 and 255.
func unsharpMask(src gocv.Mat, p Params) gocv.Mat {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Point{}, p.UnsharpSigma, p.UnsharpSigma, gocv.BorderDefault)

	dst := gocv.NewMat()
	gocv.AddWeighted(src, 1+p.UnsharpAmount, blurred, -p.UnsharpAmount, 0, &dst)
	return dst
}

// dilateDisk grows a binary mask with a disk kernel of the given radius.
func dilateDisk(mask gocv.Mat, radius int) gocv.Mat {
	if radius <= 0 {
		return mask.Clone()
	}
	side := radius*2 + 1
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: side, Y: side})
	defer kernel.Close()

	dst := gocv.NewMat()
	gocv.Dilate(mask, &dst, kernel)
	return dst
}
