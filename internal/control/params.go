package control

import "math"

// Params configures control-image construction. One immutable value is
// threaded through every entry point; there is no package-level state.
type Params struct {
	// CanvasSize is the square output side in pixels (SDXL-friendly).
	CanvasSize int

	// Stroke thickening so thin lines survive the diffusion process
	StrokeMultiplier float64 // 1.5-2.5 recommended
	MinStrokeWidth   int     // kernel floor in px
	MaxStrokeWidth   int     // kernel cap for very thick strokes

	// Padding/margins for edge protection
	PaddingPercent float64 // 10-18% recommended

	// Unsharp mask for crisp ControlNet edge detection
	UnsharpSigma  float64
	UnsharpAmount float64

	// Mask derivation
	MaskCutoff   int // stroke mask binarization threshold
	MaskDilation int // protective mask radius in px, 4-10 recommended
}

// DefaultParams returns defaults tuned for hand-drawn line-art sigils
// headed into an SDXL ControlNet pass.
func DefaultParams() Params {
	return Params{
		CanvasSize:       1024,
		StrokeMultiplier: 2.0,
		MinStrokeWidth:   4,
		MaxStrokeWidth:   12,
		PaddingPercent:   0.12,
		UnsharpSigma:     1.2,
		UnsharpAmount:    1.5,
		MaskCutoff:       128,
		MaskDilation:     6,
	}
}

// WithThickness returns a copy of params with custom stroke thickening.
func (p Params) WithThickness(multiplier float64, minWidth, maxWidth int) Params {
	p.StrokeMultiplier = multiplier
	p.MinStrokeWidth = minWidth
	p.MaxStrokeWidth = maxWidth
	return p
}

// WithPadding returns a copy of params with a custom padding fraction.
func (p Params) WithPadding(percent float64) Params {
	p.PaddingPercent = percent
	return p
}

// WithDilation returns a copy of params with a custom protective-mask radius.
func (p Params) WithDilation(px int) Params {
	p.MaskDilation = px
	return p
}

// WithCanvasSize returns a copy of params with a custom output side.
func (p Params) WithCanvasSize(size int) Params {
	p.CanvasSize = size
	return p
}

// kernelDiameter is the disk diameter used for stroke thickening:
// round(3*multiplier), rounded up to odd, clamped to [min, max] width.
func (p Params) kernelDiameter() int {
	k := int(math.Round(3 * p.StrokeMultiplier))
	if k%2 == 0 {
		k++
	}
	if k < p.MinStrokeWidth {
		k = p.MinStrokeWidth
	}
	if k > p.MaxStrokeWidth {
		k = p.MaxStrokeWidth
	}
	return k
}
