package match

import (
	"math"
	"strings"
	"testing"

	"gocv.io/x/gocv"
)

// bar fills rows [y0,y1) across the full width.
func bar(t *testing.T, size, y0, y1 int) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(size, size, gocv.MatTypeCV8U)
	fillRect(m, 0, y0, size, y1)
	return m
}

func fillRect(m gocv.Mat, x0, y0, x1, y1 int) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			m.SetUCharAt(y, x, 255)
		}
	}
}

func otsuConfig() Config {
	cfg := DefaultConfig()
	cfg.Method = ExtractOtsu
	return cfg
}

func TestScore_SelfMatch(t *testing.T) {
	mask := bar(t, 200, 80, 121)
	defer mask.Close()
	cand := mask.Clone()
	defer cand.Close()

	res, err := Score(mask, cand, otsuConfig())
	if err != nil {
		t.Fatal(err)
	}
	if res.IoU < 0.999 {
		t.Errorf("IoU = %f", res.IoU)
	}
	if res.EdgeOverlap < 0.99 {
		t.Errorf("EdgeOverlap = %f", res.EdgeOverlap)
	}
	if !res.Preserved {
		t.Error("self match must be preserved")
	}
	if res.Class != ClassPreserved {
		t.Errorf("Class = %v", res.Class)
	}
}

func TestScore_ExtraStructureDrops(t *testing.T) {
	mask := bar(t, 200, 80, 121)
	defer mask.Close()

	cand := bar(t, 200, 80, 121)
	defer cand.Close()
	fillRect(cand, 10, 140, 121, 196)

	res, err := Score(mask, cand, otsuConfig())
	if err != nil {
		t.Fatal(err)
	}
	// 8200 shared px over a union of 14416.
	wantIoU := 8200.0 / 14416.0
	if math.Abs(res.IoU-wantIoU) > 0.01 {
		t.Errorf("IoU = %f, want ~%f", res.IoU, wantIoU)
	}
	if res.Preserved {
		t.Error("blobbed candidate must not be preserved")
	}
	if res.Combined >= 0.85 {
		t.Errorf("Combined = %f", res.Combined)
	}
}

func TestScore_ColorCandidate(t *testing.T) {
	mask := bar(t, 200, 80, 121)
	defer mask.Close()

	cand := gocv.NewMat()
	defer cand.Close()
	gocv.CvtColor(mask, &cand, gocv.ColorGrayToBGR)

	res, err := Score(mask, cand, otsuConfig())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Preserved {
		t.Errorf("color self match should be preserved, combined = %f", res.Combined)
	}
}

func TestScore_ReconcilesSizes(t *testing.T) {
	mask := bar(t, 100, 40, 61)
	defer mask.Close()
	cand := bar(t, 200, 80, 122)
	defer cand.Close()

	res, err := Score(mask, cand, otsuConfig())
	if err != nil {
		t.Fatal(err)
	}
	if res.Combined < 0.95 {
		t.Errorf("downscaled twin should score high, combined = %f", res.Combined)
	}
	// Neither input may be touched.
	if mask.Cols() != 100 || cand.Cols() != 200 {
		t.Error("inputs were modified")
	}
}

func TestScore_EmptyInputs(t *testing.T) {
	good := bar(t, 50, 10, 20)
	defer good.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := Score(empty, good, DefaultConfig()); err == nil {
		t.Error("empty mask must error")
	}
	if _, err := Score(good, empty, DefaultConfig()); err == nil {
		t.Error("empty candidate must error")
	}
}

func TestIoU(t *testing.T) {
	a := bar(t, 100, 20, 41)
	defer a.Close()

	if got := IoU(a, a); got != 1.0 {
		t.Errorf("identical IoU = %f", got)
	}

	b := bar(t, 100, 60, 81)
	defer b.Close()
	if got := IoU(a, b); got != 0.0 {
		t.Errorf("disjoint IoU = %f", got)
	}

	e1 := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8U)
	defer e1.Close()
	e2 := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8U)
	defer e2.Close()
	if got := IoU(e1, e2); got != 1.0 {
		t.Errorf("two empty masks are identical, IoU = %f", got)
	}
}

func TestEdgeOverlap_NoEdges(t *testing.T) {
	flat := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8U)
	defer flat.Close()
	b := bar(t, 100, 20, 41)
	defer b.Close()

	if got := EdgeOverlap(flat, flat, 3); got != 0.0 {
		t.Errorf("flat vs flat = %f", got)
	}
	if got := EdgeOverlap(flat, b, 3); got != 0.0 {
		t.Errorf("flat vs bar = %f", got)
	}
	if got := EdgeOverlap(b, b, 3); got < 0.99 {
		t.Errorf("bar vs itself = %f", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		combined, threshold float64
		want                Class
	}{
		{0.95, 0.85, ClassPreserved},
		{0.90, 0.95, ClassPreserved}, // 0.90 floor wins over a stricter threshold
		{0.85, 0.85, ClassPreserved},
		{0.84, 0.85, ClassMoreArtistic},
		{0.70, 0.85, ClassMoreArtistic},
		{0.69, 0.85, ClassDrift},
		{0.0, 0.85, ClassDrift},
	}
	for _, tc := range cases {
		if got := Classify(tc.combined, tc.threshold); got != tc.want {
			t.Errorf("Classify(%.2f, %.2f) = %v, want %v", tc.combined, tc.threshold, got, tc.want)
		}
	}
}

func TestClassString(t *testing.T) {
	if ClassPreserved.String() != "Structure Preserved" {
		t.Errorf("ClassPreserved = %q", ClassPreserved.String())
	}
	if ClassMoreArtistic.String() != "More Artistic" {
		t.Errorf("ClassMoreArtistic = %q", ClassMoreArtistic.String())
	}
	if ClassDrift.String() != "Style Drift" {
		t.Errorf("ClassDrift = %q", ClassDrift.String())
	}
}

func TestScoreBatch(t *testing.T) {
	mask := bar(t, 100, 20, 41)
	defer mask.Close()

	twin := mask.Clone()
	defer twin.Close()
	drift := bar(t, 100, 60, 81)
	defer drift.Close()

	results, err := ScoreBatch(mask, []gocv.Mat{twin, drift}, otsuConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("len = %d", len(results))
	}
	if results[0].Combined <= results[1].Combined {
		t.Errorf("twin %f should beat drift %f", results[0].Combined, results[1].Combined)
	}
}

func TestScoreBatch_ErrorNamesCandidate(t *testing.T) {
	mask := bar(t, 100, 20, 41)
	defer mask.Close()
	good := mask.Clone()
	defer good.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := ScoreBatch(mask, []gocv.Mat{good, empty}, otsuConfig())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "candidate 1") {
		t.Errorf("err = %v", err)
	}
}

func TestShouldRegenerate(t *testing.T) {
	results := []Result{
		{Preserved: true},
		{Preserved: false},
		{Preserved: true},
		{Preserved: false},
	}

	retry, failing := ShouldRegenerate(results, 2)
	if retry {
		t.Error("2 passing of min 2 should not retry")
	}
	if len(failing) != 2 || failing[0] != 1 || failing[1] != 3 {
		t.Errorf("failing = %v", failing)
	}

	retry, _ = ShouldRegenerate(results, 3)
	if !retry {
		t.Error("2 passing of min 3 should retry")
	}

	if got := CountPassing(results); got != 2 {
		t.Errorf("CountPassing = %d", got)
	}
}

func TestParseExtraction(t *testing.T) {
	cases := []struct {
		in      string
		want    Extraction
		wantErr bool
	}{
		{"", ExtractAdaptive, false},
		{"adaptive", ExtractAdaptive, false},
		{"otsu", ExtractOtsu, false},
		{"edges", ExtractEdges, false},
		{"sobel", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseExtraction(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseExtraction(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseExtraction(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseExtraction(%q) = %v", tc.in, got)
		}
		if got.String() != tc.in && tc.in != "" {
			t.Errorf("round trip %q != %q", got.String(), tc.in)
		}
	}
}

func TestExtract_EdgesNeverInverts(t *testing.T) {
	b := bar(t, 100, 20, 41)
	defer b.Close()

	edges := extract(b, ExtractEdges)
	defer edges.Close()

	if gocv.CountNonZero(edges) == 0 {
		t.Error("bar boundary should produce edges")
	}
	// Edges occupy a minority of the frame; inversion would flip that.
	if edges.Mean().Val1 > 127 {
		t.Error("edge extraction must stay white-on-black")
	}
}
