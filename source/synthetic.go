// Package source generates paced synthetic input frames for the two
// pipeline streams. A Synthetic renders an analytic moving scene at a
// fixed rate, stamps monotonic timestamps with bounded jitter, and
// delivers each frame at most once to every registered callback.
package source

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/logger"
	"github.com/NV7150/ImOTAR-sub000/stream"
)

// Config describes one synthetic stream.
type Config struct {
	// FPS is the emission rate.
	FPS float64

	// Jitter is the maximum per-frame timestamp jitter. Must stay below
	// the frame interval so timestamps remain non-decreasing.
	Jitter time.Duration

	// Frames bounds the run; zero emits until the context ends.
	Frames int

	// Width and Height are the rendered frame dimensions.
	Width  int
	Height int

	// SparseStride thins the depth lattice: one sample every stride
	// pixels per axis, holes elsewhere. Zero means the default of 4.
	// Ignored by the color stream.
	SparseStride int

	// Seed fixes the jitter sequence; zero derives one from the clock.
	Seed int64
}

// Synthetic is one paced frame generator. Create with NewColor or
// NewDepth, register consumers with OnFrame, then drive it with Run.
type Synthetic struct {
	cfg     Config
	name    string
	payload func(frameIdx int) any
	limiter *rate.Limiter
	rng     *rand.Rand
	log     *zap.SugaredLogger

	mu       sync.Mutex
	handlers map[int]func(stream.Frame)
	nextID   int
	emitted  int
}

// NewColor builds the color stream generator.
func NewColor(cfg Config, log *zap.SugaredLogger) (*Synthetic, error) {
	s, err := newSynthetic(cfg, stream.StreamColor, log)
	if err != nil {
		return nil, err
	}
	s.payload = func(i int) any { return colorScene(cfg.Width, cfg.Height, i) }
	return s, nil
}

// NewDepth builds the sparse depth stream generator.
func NewDepth(cfg Config, log *zap.SugaredLogger) (*Synthetic, error) {
	s, err := newSynthetic(cfg, stream.StreamDepth, log)
	if err != nil {
		return nil, err
	}
	stride := cfg.SparseStride
	if stride == 0 {
		stride = 4
	}
	s.payload = func(i int) any { return depthScene(cfg.Width, cfg.Height, i, stride) }
	return s, nil
}

func newSynthetic(cfg Config, name string, log *zap.SugaredLogger) (*Synthetic, error) {
	if cfg.FPS <= 0 {
		return nil, errors.NewInvalidConfigError("source fps must be > 0, got %g", cfg.FPS)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.NewInvalidConfigError("source dimensions must be positive, got %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Frames < 0 {
		return nil, errors.NewInvalidConfigError("source frames must be >= 0, got %d", cfg.Frames)
	}
	if cfg.SparseStride < 0 {
		return nil, errors.NewInvalidConfigError("source sparse stride must be >= 0, got %d", cfg.SparseStride)
	}
	interval := time.Duration(float64(time.Second) / cfg.FPS)
	if cfg.Jitter < 0 || cfg.Jitter >= interval {
		return nil, errors.NewInvalidConfigError("source jitter must be in [0, frame interval), got %s at %g fps", cfg.Jitter, cfg.FPS)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if log == nil {
		log = logger.ComponentLogger("source." + name)
	}
	return &Synthetic{
		cfg:      cfg,
		name:     name,
		limiter:  rate.NewLimiter(rate.Limit(cfg.FPS), 1),
		rng:      rand.New(rand.NewSource(seed)),
		log:      log,
		handlers: make(map[int]func(stream.Frame)),
	}, nil
}

// OnFrame registers a consumer and returns its unsubscribe function.
// Each emitted frame is delivered at most once per handler; delivery
// order across handlers is unspecified.
func (s *Synthetic) OnFrame(fn func(stream.Frame)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

// Run emits frames at the configured rate until the frame budget is
// spent or the context ends. Timestamps are start + i*interval + jitter,
// non-decreasing because jitter is bounded below the interval.
func (s *Synthetic) Run(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / s.cfg.FPS)
	start := time.Now()

	s.log.Debugw("source running",
		logger.FieldStream, s.name,
		"fps", s.cfg.FPS,
		logger.FieldCount, s.cfg.Frames,
	)

	for i := 0; s.cfg.Frames == 0 || i < s.cfg.Frames; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			s.log.Debugw("source stopped", logger.FieldStream, s.name, logger.FieldCount, i)
			return err
		}

		var jitter time.Duration
		if s.cfg.Jitter > 0 {
			jitter = time.Duration(s.rng.Int63n(int64(s.cfg.Jitter)))
		}
		frame := stream.Frame{
			Stream:    s.name,
			Seq:       uint64(i + 1),
			Timestamp: start.Add(time.Duration(i)*interval + jitter),
			Payload:   s.payload(i),
		}
		s.dispatch(frame)
	}

	s.log.Debugw("source drained", logger.FieldStream, s.name, logger.FieldCount, s.cfg.Frames)
	return nil
}

func (s *Synthetic) dispatch(f stream.Frame) {
	s.mu.Lock()
	handlers := make([]func(stream.Frame), 0, len(s.handlers))
	for _, fn := range s.handlers {
		handlers = append(handlers, fn)
	}
	s.emitted++
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(f)
	}
}

// Emitted returns how many frames have been dispatched.
func (s *Synthetic) Emitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}
