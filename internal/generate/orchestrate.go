package generate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"sigil-guard/internal/match"
	"sigil-guard/internal/style"
)

// Options configures an orchestrated run.
type Options struct {
	// Variations is how many candidates the first round produces.
	Variations int
	// MinPassing is the structure gate: fewer passing candidates than this
	// triggers the retry round.
	MinPassing int
	// Workers bounds concurrent generation requests.
	Workers int
	// BaseSeed and RetrySeed anchor the deterministic per-round seeds.
	BaseSeed  int64
	RetrySeed int64
	// Base holds the first-round knobs; the retry round uses Base.Stricter().
	Base    Config
	Scoring match.Config
}

// DefaultOptions returns the orchestration defaults.
func DefaultOptions() Options {
	return Options{
		Variations: 4,
		MinPassing: 2,
		Workers:    4,
		BaseSeed:   2000,
		RetrySeed:  5000,
		Base:       DefaultConfig(),
		Scoring:    match.DefaultConfig(),
	}
}

// Variation is one scored candidate.
type Variation struct {
	Image gocv.Mat
	Score match.Result
	Seed  int64
	// Round is 0 for the initial round, 1 for a retry.
	Round int
	// Replaced marks a retry that displaced its first-round predecessor.
	Replaced bool
	Elapsed  time.Duration
}

// RunResult is the outcome of a full orchestrated run.
type RunResult struct {
	Variations   []Variation
	PassingCount int
	BestIndex    int
}

// Close releases every variation image.
func (r *RunResult) Close() {
	for i := range r.Variations {
		r.Variations[i].Image.Close()
	}
}

// Run phases. The machine always moves initial to done, detouring through
// retry when too few candidates pass the gate.
type phase int

const (
	phaseInitial phase = iota
	phaseRetry
	phaseDone
)

// Orchestrator runs generation rounds against the structure gate.
type Orchestrator struct {
	Gen  Generator
	Opts Options
}

// NewOrchestrator wraps a generator with default options.
func NewOrchestrator(gen Generator) *Orchestrator {
	return &Orchestrator{Gen: gen, Opts: DefaultOptions()}
}

// Run produces Opts.Variations scored candidates for one style. When fewer
// than Opts.MinPassing preserve structure, the failing candidates are
// regenerated once with stricter knobs; a retry replaces its predecessor
// only when it scores strictly higher, ties keep the original. A candidate
// that still fails after the retry is kept and reported below threshold,
// never discarded.
func (o *Orchestrator) Run(ctx context.Context, control, mask gocv.Mat, s style.Style) (*RunResult, error) {
	opts := o.Opts
	if opts.Variations <= 0 {
		opts.Variations = 4
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}

	res := &RunResult{}
	var failing []int

	for ph := phaseInitial; ph != phaseDone; {
		switch ph {
		case phaseInitial:
			seeds := make([]int64, opts.Variations)
			for i := range seeds {
				seeds[i] = opts.BaseSeed + int64(i)*456
			}
			vars, err := o.round(ctx, control, mask, s, opts, opts.Base, seeds, 0)
			if err != nil {
				return nil, err
			}
			res.Variations = vars

			scores := make([]match.Result, len(vars))
			for i, v := range vars {
				scores[i] = v.Score
			}
			retry, fail := match.ShouldRegenerate(scores, opts.MinPassing)
			if retry && len(fail) > 0 {
				failing = fail
				ph = phaseRetry
			} else {
				ph = phaseDone
			}

		case phaseRetry:
			seeds := make([]int64, len(failing))
			for i := range seeds {
				seeds[i] = opts.RetrySeed + int64(i)*789
			}
			retries, err := o.round(ctx, control, mask, s, opts, opts.Base.Stricter(), seeds, 1)
			if err != nil {
				res.Close()
				return nil, err
			}
			mergeRetries(res.Variations, failing, retries)
			ph = phaseDone
		}
	}

	res.PassingCount, res.BestIndex = tally(res.Variations)
	return res, nil
}

type genItem struct {
	idx  int
	seed int64
}

type genOut struct {
	idx int
	v   Variation
	err error
}

// round generates one candidate per seed with bounded workers, scoring each
// against the mask. Results keep seed order.
func (o *Orchestrator) round(ctx context.Context, control, mask gocv.Mat, s style.Style, opts Options, cfg Config, seeds []int64, roundNum int) ([]Variation, error) {
	workers := opts.Workers
	if workers > len(seeds) {
		workers = len(seeds)
	}

	workCh := make(chan genItem, len(seeds))
	doneCh := make(chan genOut, len(seeds))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				doneCh <- o.generateOne(ctx, control, mask, s, opts, cfg, item, roundNum)
			}
		}()
	}

	for i, seed := range seeds {
		workCh <- genItem{idx: i, seed: seed}
	}
	close(workCh)
	wg.Wait()
	close(doneCh)

	vars := make([]Variation, len(seeds))
	var firstErr error
	for out := range doneCh {
		if out.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("variation %d: %w", out.idx, out.err)
			}
			continue
		}
		vars[out.idx] = out.v
	}
	if firstErr != nil {
		for i := range vars {
			vars[i].Image.Close()
		}
		return nil, firstErr
	}
	return vars, nil
}

func (o *Orchestrator) generateOne(ctx context.Context, control, mask gocv.Mat, s style.Style, opts Options, cfg Config, item genItem, roundNum int) genOut {
	start := time.Now()

	p := ParamsFor(s, cfg)
	p.Width = control.Cols()
	p.Height = control.Rows()
	p.Seed = item.seed

	img, err := o.Gen.Generate(ctx, control, p)
	if err != nil {
		return genOut{idx: item.idx, err: err}
	}

	score, err := match.Score(mask, img, opts.Scoring)
	if err != nil {
		img.Close()
		return genOut{idx: item.idx, err: err}
	}

	return genOut{
		idx: item.idx,
		v: Variation{
			Image:   img,
			Score:   score,
			Seed:    item.seed,
			Round:   roundNum,
			Elapsed: time.Since(start),
		},
	}
}

// mergeRetries replaces a failing candidate only when its retry scored
// strictly higher.
func mergeRetries(vars []Variation, failing []int, retries []Variation) {
	for j, idx := range failing {
		if j >= len(retries) {
			break
		}
		retry := retries[j]
		if retry.Score.Combined > vars[idx].Score.Combined {
			vars[idx].Image.Close()
			retry.Replaced = true
			vars[idx] = retry
		} else {
			retry.Image.Close()
		}
	}
}

// tally recomputes the passing count and best index. Ties on the best score
// keep the earliest candidate.
func tally(vars []Variation) (passing, best int) {
	if len(vars) == 0 {
		return 0, 0
	}
	for i, v := range vars {
		if v.Score.Preserved {
			passing++
		}
		if v.Score.Combined > vars[best].Score.Combined {
			best = i
		}
	}
	return passing, best
}
