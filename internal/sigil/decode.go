package sigil

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Normalize resolves an Input to the canonical convention: a size x size
// single-channel Mat, white strokes on black. The returned trace lists the
// steps applied, in order. The caller owns the Mat.
func Normalize(in Input, size int) (gocv.Mat, []string, error) {
	var (
		gray gocv.Mat
		err  error
	)
	switch in.Kind {
	case KindVector:
		gray, err = rasterizeSVG(in.Vector, size)
	case KindRasterBytes, KindEncodedRaster:
		gray, err = decodeRaster(in.Raster)
	case KindDecodedImage:
		if in.Image == nil {
			return gocv.NewMat(), nil, fmt.Errorf("%w: nil image", ErrInvalidInputKind)
		}
		gray, err = GrayFromImage(in.Image)
	default:
		return gocv.NewMat(), nil, ErrInvalidInputKind
	}
	if err != nil {
		return gocv.NewMat(), nil, err
	}
	defer gray.Close()

	trace := []string{
		in.traceLabel(),
		fmt.Sprintf("original size %dx%d", gray.Cols(), gray.Rows()),
	}

	resized := gocv.NewMat()
	gocv.Resize(gray, &resized, image.Point{X: size, Y: size}, 0, 0, gocv.InterpolationLanczos4)
	trace = append(trace, fmt.Sprintf("resized to %dx%d", size, size))

	// White strokes on black, always
	if resized.Mean().Val1 > 127 {
		inverted := gocv.NewMat()
		gocv.BitwiseNot(resized, &inverted)
		resized.Close()
		trace = append(trace, "inverted colors (was white background)")
		return inverted, trace, nil
	}

	return resized, trace, nil
}

// LoadFile reads a sigil input from disk. SVG is recognized by extension or
// leading markup; anything image.DecodeConfig recognizes (PNG, JPEG, TIFF,
// WebP) is treated as raster bytes.
func LoadFile(path string) (Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Input{}, fmt.Errorf("reading %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return FromSVG(string(data)), nil
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		return FromBytes(data), nil
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "<svg") || strings.HasPrefix(trimmed, "<?xml") {
		return FromSVG(string(data)), nil
	}
	return Detect(string(data))
}

func decodeRaster(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty raster payload", ErrInvalidInputKind)
	}
	mat, err := gocv.IMDecode(data, gocv.IMReadGrayScale)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: undecodable raster: %v", ErrInvalidInputKind, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: undecodable raster", ErrInvalidInputKind)
	}
	return mat, nil
}
