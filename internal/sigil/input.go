// Package sigil resolves heterogeneous sigil sources (SVG markup, raster
// bytes, base64 payloads, decoded images) into one canonical convention:
// a square single-channel bitmap with white strokes on a black background.
// Every downstream stage assumes that convention.
package sigil

import (
	"encoding/base64"
	"fmt"
	"image"
	"strings"
)

// Kind identifies the source encoding of a sigil input.
type Kind int

const (
	KindVector        Kind = iota // SVG markup text
	KindRasterBytes               // encoded raster bytes (PNG, JPEG, ...)
	KindEncodedRaster             // base64 or data-URL wrapped raster
	KindDecodedImage              // already-decoded image.Image
)

func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindRasterBytes:
		return "raster-bytes"
	case KindEncodedRaster:
		return "encoded-raster"
	case KindDecodedImage:
		return "decoded-image"
	default:
		return "unknown"
	}
}

// Input is a sigil source resolved to one concrete encoding. Construct with
// FromSVG, FromBytes, FromDataURL, FromImage, or Detect; the zero value is
// not a valid input.
type Input struct {
	Kind   Kind
	Vector string      // KindVector
	Raster []byte      // KindRasterBytes, KindEncodedRaster (decoded payload)
	Image  image.Image // KindDecodedImage
}

// FromSVG wraps SVG markup.
func FromSVG(markup string) Input {
	return Input{Kind: KindVector, Vector: markup}
}

// FromBytes wraps encoded raster bytes.
func FromBytes(data []byte) Input {
	return Input{Kind: KindRasterBytes, Raster: data}
}

// FromImage wraps an already-decoded image.
func FromImage(img image.Image) Input {
	return Input{Kind: KindDecodedImage, Image: img}
}

// FromDataURL unwraps a data URL or raw base64 string into raster bytes.
func FromDataURL(s string) (Input, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return Input{}, fmt.Errorf("%w: data URL without payload", ErrInvalidInputKind)
		}
		payload = s[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(stripSpace(payload))
	if err != nil {
		return Input{}, fmt.Errorf("%w: bad base64 payload: %v", ErrInvalidInputKind, err)
	}
	return Input{Kind: KindEncodedRaster, Raster: data}, nil
}

// Detect classifies a textual payload the way the service receives them:
// data URLs, SVG markup, or raw base64. Anything else is ErrInvalidInputKind.
func Detect(payload string) (Input, error) {
	trimmed := strings.TrimSpace(payload)
	switch {
	case strings.HasPrefix(trimmed, "data:image"):
		return FromDataURL(trimmed)
	case strings.HasPrefix(trimmed, "<svg"),
		strings.HasPrefix(trimmed, "<?xml") && strings.Contains(trimmed, "<svg"):
		return FromSVG(payload), nil
	default:
		in, err := FromDataURL(trimmed)
		if err != nil {
			return Input{}, fmt.Errorf("%w: not SVG, a data URL, or base64", ErrInvalidInputKind)
		}
		return in, nil
	}
}

// traceLabel describes how the input was obtained, for processing traces.
func (in Input) traceLabel() string {
	switch in.Kind {
	case KindVector:
		return "converted SVG markup"
	case KindRasterBytes:
		return "loaded raster bytes"
	case KindEncodedRaster:
		return "decoded base64 raster"
	case KindDecodedImage:
		return "used decoded image"
	default:
		return "unknown input"
	}
}

// stripSpace removes every whitespace character so wrapped base64 decodes.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
