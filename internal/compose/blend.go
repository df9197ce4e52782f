package compose

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Mode selects the texture blend formula.
type Mode int

const (
	ModeMultiply Mode = iota
	ModeOverlay
	ModeSoftLight
)

func (m Mode) String() string {
	switch m {
	case ModeOverlay:
		return "overlay"
	case ModeSoftLight:
		return "soft_light"
	default:
		return "multiply"
	}
}

// ParseMode maps a mode name to its Mode. The empty string selects multiply.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "multiply":
		return ModeMultiply, nil
	case "overlay":
		return ModeOverlay, nil
	case "soft_light":
		return ModeSoftLight, nil
	default:
		return ModeMultiply, fmt.Errorf("unknown blend mode %q", s)
	}
}

// BlendTexture transfers tone from texture onto base without moving any
// geometry. Both operands must be 3-channel; texture is resized to base's
// dimensions first if they differ. Strength in [0,1] interpolates between
// the untouched base and the blended result. Returns a fresh Mat.
func BlendTexture(base, texture gocv.Mat, mode Mode, strength float64) (gocv.Mat, error) {
	if base.Empty() || texture.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty blend operand")
	}
	if base.Channels() != 3 || texture.Channels() != 3 {
		return gocv.NewMat(), fmt.Errorf("blend operands must be 3-channel, got %d and %d",
			base.Channels(), texture.Channels())
	}
	if strength < 0 {
		strength = 0
	} else if strength > 1 {
		strength = 1
	}

	tex := texture
	if texture.Cols() != base.Cols() || texture.Rows() != base.Rows() {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(texture, &resized, image.Point{X: base.Cols(), Y: base.Rows()}, 0, 0, gocv.InterpolationLanczos4)
		tex = resized
	}

	baseBytes := base.ToBytes()
	texBytes := tex.ToBytes()
	out := make([]byte, len(baseBytes))

	for i := range baseBytes {
		s := float64(baseBytes[i]) / 255.0
		t := float64(texBytes[i]) / 255.0

		var v float64
		switch mode {
		case ModeOverlay:
			if s < 0.5 {
				v = 2 * s * t
			} else {
				v = 1 - 2*(1-s)*(1-t)
			}
		case ModeSoftLight:
			v = (1-2*t)*s*s + 2*t*s
		default:
			v = s * t
		}

		blended := s*(1-strength) + v*strength
		out[i] = uint8(clamp(blended, 0, 1) * 255)
	}

	return gocv.NewMatFromBytes(base.Rows(), base.Cols(), gocv.MatTypeCV8UC3, out)
}

func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
