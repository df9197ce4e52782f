// Package generate drives the external image generator and the retry
// orchestration that keeps structure scores above the gate.
package generate

import (
	"context"
	"errors"

	"gocv.io/x/gocv"

	"sigil-guard/internal/style"
)

// ErrGeneration marks failures reported by the external generator. Callers
// test with errors.Is and treat the detail as opaque.
var ErrGeneration = errors.New("external generation failed")

// Generator produces one styled candidate from a control image. The returned
// Mat is owned by the caller. Implementations own their transport timeouts;
// ctx cancels in-flight work.
type Generator interface {
	Generate(ctx context.Context, control gocv.Mat, p Params) (gocv.Mat, error)
}

// Config holds the generation knobs shared by every request in a round.
type Config struct {
	// ConditioningScale controls how strictly the generator follows the
	// control image. Higher preserves more structure.
	ConditioningScale float64
	// GuidanceStart and GuidanceEnd bound the fraction of inference during
	// which the control image steers the model.
	GuidanceStart float64
	GuidanceEnd   float64
	// GuidanceScale is classifier-free guidance. Lower reduces prompt drift.
	GuidanceScale float64
	Steps         int
	// DenoiseStrength is how far the output may move from the control
	// image. Lower preserves more of the original.
	DenoiseStrength float64
}

// DefaultConfig returns knobs tuned for strict structure adherence.
func DefaultConfig() Config {
	return Config{
		ConditioningScale: 1.15,
		GuidanceStart:     0.0,
		GuidanceEnd:       0.95,
		GuidanceScale:     5.0,
		Steps:             35,
		DenoiseStrength:   0.28,
	}
}

// Stricter returns a copy tightened for a retry round: stronger conditioning,
// less prompt influence, less denoising, longer control window, more steps.
func (c Config) Stricter() Config {
	c.ConditioningScale = min(c.ConditioningScale+0.15, 1.5)
	c.GuidanceScale = max(c.GuidanceScale-1.0, 3.0)
	c.DenoiseStrength = max(c.DenoiseStrength-0.05, 0.15)
	c.GuidanceEnd = min(c.GuidanceEnd+0.05, 1.0)
	c.Steps += 5
	return c
}

// Params is the fully resolved parameter set for one generation request.
type Params struct {
	Prompt            string
	NegativePrompt    string
	ControlType       style.ControlType
	ConditioningScale float64
	GuidanceStart     float64
	GuidanceEnd       float64
	GuidanceScale     float64
	Steps             int
	DenoiseStrength   float64
	Width             int
	Height            int
	Seed              int64
}

// ParamsFor merges a style's overrides onto the shared config. A zero-valued
// style knob inherits the config value.
func ParamsFor(s style.Style, c Config) Params {
	p := Params{
		Prompt:            s.Prompt,
		NegativePrompt:    s.NegativePrompt,
		ControlType:       s.ControlType,
		ConditioningScale: c.ConditioningScale,
		GuidanceStart:     c.GuidanceStart,
		GuidanceEnd:       c.GuidanceEnd,
		GuidanceScale:     c.GuidanceScale,
		Steps:             c.Steps,
		DenoiseStrength:   c.DenoiseStrength,
		Width:             1024,
		Height:            1024,
	}
	if s.ConditioningScale != 0 {
		p.ConditioningScale = s.ConditioningScale
	}
	if s.GuidanceScale != 0 {
		p.GuidanceScale = s.GuidanceScale
	}
	if s.DenoiseStrength != 0 {
		p.DenoiseStrength = s.DenoiseStrength
	}
	return p
}
