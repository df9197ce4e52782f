package sigil

import (
	"fmt"
	"image"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// GrayFromImage converts a decoded Go image to a single-channel Mat.
// RGBA images take a zero-loop fast path; everything else is converted
// pixel-by-pixel, parallelized by horizontal stripes.
func GrayFromImage(img image.Image) (gocv.Mat, error) {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == rgba.Bounds().Dx()*4 {
		return grayFromRGBA(rgba)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return gocv.NewMat(), fmt.Errorf("cannot convert empty image")
	}

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8U)

	// Parallelize by horizontal stripes
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (height + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		if startY >= height {
			break
		}

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			for y := yStart; y < yEnd; y++ {
				for x := 0; x < width; x++ {
					r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
					// Same luma weights OpenCV uses for RGB->gray
					luma := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
					mat.SetUCharAt(y, x, uint8(luma))
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return mat, nil
}

func grayFromRGBA(rgba *image.RGBA) (gocv.Mat, error) {
	b := rgba.Bounds()
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("wrapping RGBA pixels: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBAToGray)
	return gray, nil
}
