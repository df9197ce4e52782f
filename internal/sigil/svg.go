package sigil

import (
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"gocv.io/x/gocv"
)

var (
	strokeAttrRe = regexp.MustCompile(`stroke="[^"]*"`)
	fillAttrRe   = regexp.MustCompile(`fill="[^"]*"`)
	widthAttrRe  = regexp.MustCompile(`width="(\d+)"`)
	heightAttrRe = regexp.MustCompile(`height="(\d+)"`)
)

// prepareMarkup rewrites sigil markup for high-contrast rasterization:
// strokes forced to pure white, fills removed (sigils are line art), and a
// viewBox injected when absent so scaling stays well-defined.
func prepareMarkup(markup string) string {
	out := markup

	if !strings.Contains(out, "viewBox") {
		wm := widthAttrRe.FindStringSubmatch(out)
		hm := heightAttrRe.FindStringSubmatch(out)
		if wm != nil && hm != nil {
			out = strings.Replace(out, "<svg", fmt.Sprintf(`<svg viewBox="0 0 %s %s"`, wm[1], hm[1]), 1)
		} else {
			out = strings.Replace(out, "<svg", `<svg viewBox="0 0 100 100"`, 1)
		}
	}

	out = strokeAttrRe.ReplaceAllString(out, `stroke="#FFFFFF"`)
	out = fillAttrRe.ReplaceAllString(out, `fill="none"`)

	// Bare paths render invisibly once fills are stripped
	if !strings.Contains(out, "stroke-width") {
		out = strings.ReplaceAll(out, "<path ", `<path stroke-width="2" `)
	}

	return out
}

// rasterizeSVG renders markup onto a size x size black canvas and returns a
// single-channel Mat with white strokes.
func rasterizeSVG(markup string, size int) (gocv.Mat, error) {
	icon, err := oksvg.ReadIconStream(strings.NewReader(prepareMarkup(markup)))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrMalformedVector, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	return GrayFromImage(canvas)
}
