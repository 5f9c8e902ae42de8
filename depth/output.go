package depth

import (
	"sync"

	"github.com/NV7150/ImOTAR-sub000/errors"
)

// OutputBuffer is the externally visible result location: a fixed
// Width×Height float32 plane, validated once at construction so that
// writes can never fail afterwards.
//
// The generation counter increments once per applied job result. The
// abort sentinel Fill writes pixels without bumping the generation,
// since a sentinel is not a result.
type OutputBuffer struct {
	width  int
	height int

	mu         sync.Mutex
	pix        []float32
	generation uint64
}

// NewOutputBuffer allocates a result plane. Fails fast on non-positive
// dimensions; this is the construction-time validation that lets every
// later write skip dimension checks.
func NewOutputBuffer(width, height int) (*OutputBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.NewInvalidConfigError("output buffer dimensions must be positive, got %dx%d", width, height)
	}
	return &OutputBuffer{
		width:  width,
		height: height,
		pix:    make([]float32, width*height),
	}, nil
}

// Width returns the plane width in pixels.
func (b *OutputBuffer) Width() int { return b.width }

// Height returns the plane height in pixels.
func (b *OutputBuffer) Height() int { return b.height }

// Len returns the number of pixels in the plane.
func (b *OutputBuffer) Len() int { return b.width * b.height }

// store copies an applied job result into the plane and bumps the
// generation. Returns false when the result length does not match the
// plane; the caller treats that as an executor fault.
func (b *OutputBuffer) store(src []float32) bool {
	if len(src) != b.width*b.height {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.pix, src)
	b.generation++
	return true
}

// Fill writes the sentinel value over the whole plane. Used by the
// abort-fast path to mark the output as unwanted.
func (b *OutputBuffer) Fill(v float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.pix {
		b.pix[i] = v
	}
}

// At returns the value at (x, y). No bounds check beyond the slice's
// own; callers index within the advertised dimensions.
func (b *OutputBuffer) At(x, y int) float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pix[y*b.width+x]
}

// Snapshot returns a copy of the plane.
func (b *OutputBuffer) Snapshot() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float32, len(b.pix))
	copy(out, b.pix)
	return out
}

// Generation returns how many job results have been applied.
func (b *OutputBuffer) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}
