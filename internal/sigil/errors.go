package sigil

import "errors"

var (
	// ErrInvalidInputKind reports input that is none of the accepted encodings.
	ErrInvalidInputKind = errors.New("invalid input: expected SVG markup, raster bytes, base64 raster, or a decoded image")

	// ErrMalformedVector reports SVG markup that cannot be coerced to the
	// white-stroke convention and rasterized.
	ErrMalformedVector = errors.New("malformed vector markup")
)
