package compose

import (
	"fmt"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"sigil-guard/pkg/colorutil"
)

// quantizeStep coarsens sampled colors so near-identical shades share a
// histogram bucket.
const quantizeStep = 32

// Sampling selects how the stroke color is derived from candidate pixels.
type Sampling int

const (
	SampleDominant Sampling = iota
	SampleMean
)

func (s Sampling) String() string {
	if s == SampleMean {
		return "mean"
	}
	return "dominant"
}

// ParseSampling maps a strategy name to its Sampling. The empty string
// selects dominant.
func ParseSampling(s string) (Sampling, error) {
	switch s {
	case "", "dominant":
		return SampleDominant, nil
	case "mean":
		return SampleMean, nil
	default:
		return SampleDominant, fmt.Errorf("unknown color sampling %q", s)
	}
}

// SampleColor derives a stroke color from the candidate pixels under the
// mask. The candidate must be 3-channel BGR and the mask single-channel,
// both the same size. An all-zero mask yields opaque white.
func SampleColor(candidate, mask gocv.Mat, method Sampling) colorutil.RGB {
	img := candidate.ToBytes()
	sel := mask.ToBytes()

	switch method {
	case SampleMean:
		var r, g, b, count uint64
		for p, m := range sel {
			if m <= 127 {
				continue
			}
			i := p * 3
			b += uint64(img[i])
			g += uint64(img[i+1])
			r += uint64(img[i+2])
			count++
		}
		if count == 0 {
			return colorutil.White
		}
		return colorutil.RGB{
			R: uint8(r / count),
			G: uint8(g / count),
			B: uint8(b / count),
		}

	default:
		var packed []float64
		for p, m := range sel {
			if m <= 127 {
				continue
			}
			i := p * 3
			c := colorutil.RGB{R: img[i+2], G: img[i+1], B: img[i]}
			packed = append(packed, float64(colorutil.Pack(c.Quantize(quantizeStep))))
		}
		if len(packed) == 0 {
			return colorutil.White
		}
		sort.Float64s(packed)
		mode, _ := stat.Mode(packed, nil)
		return colorutil.Unpack(int(mode))
	}
}
