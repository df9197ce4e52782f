// Package colorutil provides color helpers shared across the pipeline.
package colorutil

import "fmt"

// RGB is an 8-bit-per-channel color value.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// White is the fallback stroke color when sampling finds no pixels.
var White = RGB{R: 255, G: 255, B: 255}

// Hex returns the color as a #RRGGBB string.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// Quantize snaps each channel down to a multiple of step. Used to coarsen
// colors before histogram counting so near-identical shades bucket together.
func (c RGB) Quantize(step uint8) RGB {
	if step == 0 {
		return c
	}
	return RGB{
		R: c.R / step * step,
		G: c.G / step * step,
		B: c.B / step * step,
	}
}

// Pack encodes the color into a single integer (R in the high byte).
func Pack(c RGB) int {
	return int(c.R)<<16 | int(c.G)<<8 | int(c.B)
}

// Unpack decodes a color packed by Pack.
func Unpack(v int) RGB {
	return RGB{
		R: uint8(v >> 16 & 0xFF),
		G: uint8(v >> 8 & 0xFF),
		B: uint8(v & 0xFF),
	}
}
