// Command sigilctl runs the sigil preprocessing pipeline on a file and writes
// the control image and masks, optionally scoring and compositing a stylized
// candidate against them.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"sigil-guard/internal/compose"
	"sigil-guard/internal/control"
	"sigil-guard/internal/match"
	"sigil-guard/internal/sigil"
)

func main() {
	input := flag.String("input", "", "Path to sigil (SVG, PNG, JPEG, TIFF, or WebP)")
	outDir := flag.String("out", ".", "Output directory")
	size := flag.Int("size", 1024, "Canvas size in pixels")
	strokeMult := flag.Float64("stroke-mult", 0, "Stroke thickness multiplier (0 = default)")
	padding := flag.Float64("padding", -1, "Padding fraction (negative = default)")
	dilation := flag.Int("dilation", -1, "Protective mask radius in px (negative = default)")
	candidate := flag.String("score", "", "Stylized image to score against the stroke mask")
	method := flag.String("method", "adaptive", "Extraction method: adaptive, otsu, or edges")
	doComposite := flag.Bool("composite", false, "Also composite the scored image over the original geometry")
	flag.Parse()

	if *input == "" {
		fmt.Println("Usage: sigilctl -input <path> [-out dir] [-size 1024] [-score <image> [-composite]]")
		os.Exit(1)
	}

	// Load and normalize
	in, err := sigil.LoadFile(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load input: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %s input: %s\n", in.Kind, *input)

	params := control.DefaultParams().WithCanvasSize(*size)
	if *strokeMult > 0 {
		params.StrokeMultiplier = *strokeMult
	}
	if *padding >= 0 {
		params = params.WithPadding(*padding)
	}
	if *dilation >= 0 {
		params = params.WithDilation(*dilation)
	}

	norm, trace, err := sigil.Normalize(in, params.CanvasSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Normalization failed: %v\n", err)
		os.Exit(1)
	}
	defer norm.Close()

	// Build control image and masks
	bundle, err := control.Build(norm, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Control build failed: %v\n", err)
		os.Exit(1)
	}
	defer bundle.Close()

	fmt.Println("\nProcessing steps:")
	for _, step := range append(trace, bundle.Trace...) {
		fmt.Printf("  %s\n", step)
	}
	b := bundle.ContentBounds
	fmt.Printf("Content bounds: %dx%d at (%d,%d)\n", b.Width, b.Height, b.X, b.Y)

	for _, out := range []struct {
		name string
		mat  gocv.Mat
	}{
		{"control.png", bundle.Control},
		{"stroke_mask.png", bundle.StrokeMask},
		{"dilated_mask.png", bundle.DilatedMask},
	} {
		path := filepath.Join(*outDir, out.name)
		if ok := gocv.IMWrite(path, out.mat); !ok {
			fmt.Fprintf(os.Stderr, "Failed to write %s\n", path)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
	}

	if *candidate == "" {
		return
	}

	// Score the candidate
	cand := gocv.IMRead(*candidate, gocv.IMReadColor)
	if cand.Empty() {
		fmt.Fprintf(os.Stderr, "Failed to read candidate image: %s\n", *candidate)
		os.Exit(1)
	}
	defer cand.Close()

	cfg := match.DefaultConfig()
	cfg.Method, err = match.ParseExtraction(*method)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	res, err := match.Score(bundle.StrokeMask, cand, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scoring failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nStructure match (%s extraction):\n", cfg.Method)
	fmt.Printf("  IoU:          %.4f\n", res.IoU)
	fmt.Printf("  Edge overlap: %.4f\n", res.EdgeOverlap)
	fmt.Printf("  Combined:     %.4f\n", res.Combined)
	fmt.Printf("  Verdict:      %s\n", res.Class)

	if !*doComposite {
		return
	}

	comp, err := compose.Apply(bundle, cand, compose.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compositing failed: %v\n", err)
		os.Exit(1)
	}
	defer comp.Close()

	path := filepath.Join(*outDir, "composite.png")
	if ok := gocv.IMWrite(path, comp.Composite); !ok {
		fmt.Fprintf(os.Stderr, "Failed to write %s\n", path)
		os.Exit(1)
	}
	fmt.Printf("\nWrote %s (stroke color %s)\n", path, comp.StrokeColor.Hex())
}
