// Package compose paints original stroke geometry over stylized candidate
// images so the geometry survives no matter what the generator drew.
package compose

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"sigil-guard/internal/control"
	"sigil-guard/internal/sigil"
	"sigil-guard/pkg/colorutil"
)

// Options configures compositing. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// BlendTexture transfers candidate tone onto the stroke layer.
	BlendTexture    bool
	TextureMode     Mode
	TextureStrength float64
	// StrokeColor overrides color sampling when non-nil.
	StrokeColor *colorutil.RGB
	Sampling    Sampling
	// FeatherRadius softens the mask edge before alpha blending.
	FeatherRadius int
	// Opacity scales the stroke layer alpha, 0 to 1.
	Opacity float64
	// InpaintRadius is passed to the Telea inpainting step.
	InpaintRadius int
}

// DefaultOptions returns the compositing defaults.
func DefaultOptions() Options {
	return Options{
		BlendTexture:    true,
		TextureMode:     ModeSoftLight,
		TextureStrength: 0.2,
		Sampling:        SampleDominant,
		FeatherRadius:   2,
		Opacity:         1.0,
		InpaintRadius:   5,
	}
}

// Result holds the composite and its component layers. Every Mat is owned by
// the Result; Close releases them all.
type Result struct {
	// Composite is the final image: colored original strokes over the
	// inpainted background.
	Composite gocv.Mat
	// Background is the candidate with its stroke region inpainted away.
	Background gocv.Mat
	// SigilLayer is the textured stroke rendition, returned for inspection.
	// The composite itself paints the strokes in a single sampled color.
	SigilLayer gocv.Mat
	// BlendMask is the unfeathered stroke mask.
	BlendMask gocv.Mat
	// StrokeColor is the color painted over the stroke region.
	StrokeColor colorutil.RGB
	// StructureGuaranteed reports that the composite's stroke geometry is
	// exactly the original mask. Always true for composited output.
	StructureGuaranteed bool
}

// Close releases all Mats held by the result.
func (r *Result) Close() {
	r.Composite.Close()
	r.Background.Close()
	r.SigilLayer.Close()
	r.BlendMask.Close()
}

// Composite re-derives the control bundle from the original input, then
// pastes its stroke geometry over the candidate.
func Composite(in sigil.Input, candidate gocv.Mat, p control.Params, opts Options) (Result, error) {
	norm, _, err := sigil.Normalize(in, p.CanvasSize)
	if err != nil {
		return Result{}, err
	}
	defer norm.Close()

	bundle, err := control.Build(norm, p)
	if err != nil {
		return Result{}, err
	}
	defer bundle.Close()

	return Apply(bundle, candidate, opts)
}

// Apply runs compositing against an already-built control bundle. The
// candidate is resized to the control canvas, its stroke region is inpainted
// clean, and the original strokes are painted back on top.
func Apply(bundle control.Bundle, candidate gocv.Mat, opts Options) (Result, error) {
	if bundle.Control.Empty() {
		return Result{}, fmt.Errorf("empty control bundle")
	}
	if candidate.Empty() {
		return Result{}, fmt.Errorf("empty candidate")
	}

	size := image.Point{X: bundle.Control.Cols(), Y: bundle.Control.Rows()}

	// 1. Candidate to the control canvas size, 3-channel.
	cand := toBGR(candidate)
	if cand.Cols() != size.X || cand.Rows() != size.Y {
		resized := gocv.NewMat()
		gocv.Resize(cand, &resized, size, 0, 0, gocv.InterpolationLanczos4)
		cand.Close()
		cand = resized
	}
	defer cand.Close()

	// 2. Inpaint the dilated stroke region to erase any structure the
	// generator drew there.
	background := gocv.NewMat()
	gocv.Inpaint(cand, bundle.DilatedMask, &background, float32(opts.InpaintRadius), gocv.Telea)

	// 3. Stroke layer: control image widened to color, optionally textured
	// from the candidate.
	controlBGR := gocv.NewMat()
	defer controlBGR.Close()
	gocv.CvtColor(bundle.Control, &controlBGR, gocv.ColorGrayToBGR)

	var sigilLayer gocv.Mat
	if opts.BlendTexture {
		layer, err := BlendTexture(controlBGR, cand, opts.TextureMode, opts.TextureStrength)
		if err != nil {
			background.Close()
			return Result{}, err
		}
		sigilLayer = layer
	} else {
		sigilLayer = controlBGR.Clone()
	}

	// 4. Stroke color from candidate pixels under the unfeathered mask.
	strokeColor := colorutil.White
	if opts.StrokeColor != nil {
		strokeColor = *opts.StrokeColor
	} else {
		strokeColor = SampleColor(cand, bundle.StrokeMask, opts.Sampling)
	}

	// 5. Feathered, opacity-scaled alpha, then solid-color strokes over the
	// inpainted background.
	alpha := featherMask(bundle.StrokeMask, opts.FeatherRadius, opts.Opacity)
	composite, err := paintStrokes(background, alpha, strokeColor)
	alpha.Close()
	if err != nil {
		background.Close()
		sigilLayer.Close()
		return Result{}, err
	}

	return Result{
		Composite:           composite,
		Background:          background,
		SigilLayer:          sigilLayer,
		BlendMask:           bundle.StrokeMask.Clone(),
		StrokeColor:         strokeColor,
		StructureGuaranteed: true,
	}, nil
}

// featherMask blurs the mask edge and scales it by opacity, returning a
// fresh alpha Mat.
func featherMask(mask gocv.Mat, radius int, opacity float64) gocv.Mat {
	var soft gocv.Mat
	if radius > 0 {
		soft = gocv.NewMat()
		gocv.GaussianBlur(mask, &soft, image.Point{}, float64(radius), float64(radius), gocv.BorderDefault)
	} else {
		soft = mask.Clone()
	}
	if opacity < 1.0 {
		soft.MultiplyFloat(float32(clamp(opacity, 0, 1)))
	}
	return soft
}

// paintStrokes alpha-blends a solid color over the background using the
// given mask as per-pixel alpha.
func paintStrokes(background, alpha gocv.Mat, c colorutil.RGB) (gocv.Mat, error) {
	bg := background.ToBytes()
	a := alpha.ToBytes()
	out := make([]byte, len(bg))

	cb := float64(c.B)
	cg := float64(c.G)
	cr := float64(c.R)

	for p, av := range a {
		i := p * 3
		f := float64(av) / 255.0
		out[i] = uint8(clamp(cb*f+float64(bg[i])*(1-f), 0, 255))
		out[i+1] = uint8(clamp(cg*f+float64(bg[i+1])*(1-f), 0, 255))
		out[i+2] = uint8(clamp(cr*f+float64(bg[i+2])*(1-f), 0, 255))
	}

	return gocv.NewMatFromBytes(background.Rows(), background.Cols(), gocv.MatTypeCV8UC3, out)
}

func toBGR(m gocv.Mat) gocv.Mat {
	switch m.Channels() {
	case 3:
		return m.Clone()
	case 4:
		dst := gocv.NewMat()
		gocv.CvtColor(m, &dst, gocv.ColorBGRAToBGR)
		return dst
	default:
		dst := gocv.NewMat()
		gocv.CvtColor(m, &dst, gocv.ColorGrayToBGR)
		return dst
	}
}
