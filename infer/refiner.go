// Package infer is the reference stepwise executor: an edge-aware
// diffusion refiner that densifies a sparse depth plane guided by the
// paired color image. It stands in for a neural forward pass while
// exercising the same contract, one bounded relaxation pass per
// Advance, deterministic and CPU only.
package infer

import (
	"math"

	"github.com/NV7150/ImOTAR-sub000/depth"
	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/stream"
)

// RefinerConfig describes the model grid and the diffusion behavior.
type RefinerConfig struct {
	// Width and Height are the model grid; both inputs are resampled to
	// it during Begin.
	Width  int
	Height int

	// Passes is the total relaxation pass count, which is also the
	// number of Advance calls a run needs.
	Passes int

	// Lambda in (0, 1] is the per-pass diffusion rate.
	Lambda float64

	// EdgeScale is the luminance difference at which neighbor influence
	// falls to 1/e. Smaller values stop diffusion at weaker edges.
	EdgeScale float64
}

// Refiner implements depth.StepExecutor. One Refiner stands for one
// model-execution resource; the scheduler drives at most one of its
// runs at a time.
type Refiner struct {
	cfg RefinerConfig
}

// NewRefiner validates the configuration once so runs never re-check.
func NewRefiner(cfg RefinerConfig) (*Refiner, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.NewInvalidConfigError("refiner grid must be positive, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Passes < 1 {
		return nil, errors.NewInvalidConfigError("refiner needs at least 1 pass, got %d", cfg.Passes)
	}
	if cfg.Lambda <= 0 || cfg.Lambda > 1 {
		return nil, errors.NewInvalidConfigError("lambda must be in (0, 1], got %g", cfg.Lambda)
	}
	if cfg.EdgeScale <= 0 {
		return nil, errors.NewInvalidConfigError("edge scale must be positive, got %g", cfg.EdgeScale)
	}
	return &Refiner{cfg: cfg}, nil
}

// Grid returns the model grid dimensions, which are also the output
// buffer dimensions a scheduler should pair this executor with.
func (r *Refiner) Grid() (width, height int) {
	return r.cfg.Width, r.cfg.Height
}

// Begin validates the pair's payloads and preprocesses them onto the
// model grid: color collapses to a luma guide, sparse depth resamples
// nearest so holes stay holes, and neighbor edge weights are computed
// once. The returned run only relaxes.
func (r *Refiner) Begin(pair stream.SyncedPair) (depth.Run, error) {
	color, ok := pair.Color.Payload.(*ColorImage)
	if !ok {
		return nil, errors.Wrapf(errors.ErrBadSnapshot, "color payload is %T, want *infer.ColorImage", pair.Color.Payload)
	}
	if len(color.Pix) != color.Width*color.Height*3 {
		return nil, errors.Wrapf(errors.ErrBadSnapshot, "color plane is %d values for %dx%d", len(color.Pix), color.Width, color.Height)
	}
	sparse, ok := pair.Depth.Payload.(*DepthImage)
	if !ok {
		return nil, errors.Wrapf(errors.ErrBadSnapshot, "depth payload is %T, want *infer.DepthImage", pair.Depth.Payload)
	}
	if len(sparse.Pix) != sparse.Width*sparse.Height {
		return nil, errors.Wrapf(errors.ErrBadSnapshot, "depth plane is %d values for %dx%d", len(sparse.Pix), sparse.Width, sparse.Height)
	}
	for _, v := range sparse.Pix {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, errors.Wrap(errors.ErrBadSnapshot, "depth plane contains non-finite samples")
		}
	}

	w, h := r.cfg.Width, r.cfg.Height
	lum := resampleBilinear(luminance(color.Pix, color.Width, color.Height), color.Width, color.Height, w, h)
	seedPlane := resampleNearest(sparse.Pix, sparse.Width, sparse.Height, w, h)

	run := &refineRun{
		cfg:  r.cfg,
		cur:  make([]float32, w*h),
		next: make([]float32, w*h),
		seed: make([]bool, w*h),
	}
	for i, v := range seedPlane {
		if v > 0 {
			run.seed[i] = true
			run.cur[i] = v
		}
	}
	run.weighEdges(lum)
	return run, nil
}

// refineRun is one in-flight refinement. Each Advance performs a single
// relaxation pass; seed pixels stay pinned to their measured value.
type refineRun struct {
	cfg  RefinerConfig
	seed []bool
	cur  []float32
	next []float32

	// wRight[i] couples pixel i to i+1; wDown[i] couples i to i+width.
	wRight []float32
	wDown  []float32

	pass int
	done bool
}

// weighEdges precomputes neighbor coupling from the luma guide. Strong
// luminance edges decouple neighbors so depth does not bleed across
// object boundaries.
func (r *refineRun) weighEdges(lum []float32) {
	w, h := r.cfg.Width, r.cfg.Height
	r.wRight = make([]float32, w*h)
	r.wDown = make([]float32, w*h)
	scale := r.cfg.EdgeScale
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if x < w-1 {
				d := math.Abs(float64(lum[i] - lum[i+1]))
				r.wRight[i] = float32(math.Exp(-d / scale))
			}
			if y < h-1 {
				d := math.Abs(float64(lum[i] - lum[i+w]))
				r.wDown[i] = float32(math.Exp(-d / scale))
			}
		}
	}
}

func (r *refineRun) Advance() (bool, error) {
	if r.done {
		return false, nil
	}
	r.relaxOnce()
	r.pass++
	if r.pass >= r.cfg.Passes {
		r.done = true
		return false, nil
	}
	return true, nil
}

func (r *refineRun) Result() []float32 { return r.cur }

// relaxOnce pulls every non-seed pixel toward the edge-weighted average
// of its 4-neighborhood.
func (r *refineRun) relaxOnce() {
	w, h := r.cfg.Width, r.cfg.Height
	lam := float32(r.cfg.Lambda)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if r.seed[i] {
				r.next[i] = r.cur[i]
				continue
			}
			var sum, wsum float32
			if x > 0 {
				wt := r.wRight[i-1]
				sum += wt * r.cur[i-1]
				wsum += wt
			}
			if x < w-1 {
				wt := r.wRight[i]
				sum += wt * r.cur[i+1]
				wsum += wt
			}
			if y > 0 {
				wt := r.wDown[i-w]
				sum += wt * r.cur[i-w]
				wsum += wt
			}
			if y < h-1 {
				wt := r.wDown[i]
				sum += wt * r.cur[i+w]
				wsum += wt
			}
			if wsum > 0 {
				r.next[i] = (1-lam)*r.cur[i] + lam*sum/wsum
			} else {
				r.next[i] = r.cur[i]
			}
		}
	}
	r.cur, r.next = r.next, r.cur
}
