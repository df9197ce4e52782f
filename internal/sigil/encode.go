package sigil

import (
	"encoding/base64"
	"fmt"

	"gocv.io/x/gocv"
)

// EncodePNG serializes a Mat as PNG bytes.
func EncodePNG(m gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, m)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	defer buf.Close()

	native := buf.GetBytes()
	data := make([]byte, len(native))
	copy(data, native)
	return data, nil
}

// EncodeDataURL serializes a Mat as a PNG data URL for JSON transport.
func EncodeDataURL(m gocv.Mat) (string, error) {
	data, err := EncodePNG(m)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
