package source

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/infer"
	"github.com/NV7150/ImOTAR-sub000/stream"
)

func testConfig() Config {
	return Config{
		FPS:    1000,
		Jitter: 200 * time.Microsecond,
		Frames: 5,
		Width:  16,
		Height: 12,
		Seed:   7,
	}
}

// collector gathers frames under a lock since handlers run on the
// source's goroutine.
type collector struct {
	mu     sync.Mutex
	frames []stream.Frame
}

func (c *collector) add(f stream.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
}

func (c *collector) all() []stream.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]stream.Frame(nil), c.frames...)
}

func TestNewSynthetic_Validation(t *testing.T) {
	cases := map[string]func(*Config){
		"zero fps":        func(c *Config) { c.FPS = 0 },
		"zero width":      func(c *Config) { c.Width = 0 },
		"zero height":     func(c *Config) { c.Height = 0 },
		"negative frames": func(c *Config) { c.Frames = -1 },
		"negative jitter": func(c *Config) { c.Jitter = -time.Millisecond },
		"jitter >= interval": func(c *Config) {
			c.FPS = 100
			c.Jitter = 10 * time.Millisecond
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			mutate(&cfg)
			_, err := NewColor(cfg, nil)
			assert.True(t, errors.IsInvalidConfigError(err))
			_, err = NewDepth(cfg, nil)
			assert.True(t, errors.IsInvalidConfigError(err))
		})
	}
}

func TestRun_EmitsFrameBudget(t *testing.T) {
	src, err := NewColor(testConfig(), nil)
	require.NoError(t, err)

	col := &collector{}
	src.OnFrame(col.add)
	require.NoError(t, src.Run(context.Background()))

	frames := col.all()
	require.Len(t, frames, 5)
	assert.Equal(t, 5, src.Emitted())
	for i, f := range frames {
		assert.Equal(t, stream.StreamColor, f.Stream)
		assert.Equal(t, uint64(i+1), f.Seq)
		img, ok := f.Payload.(*infer.ColorImage)
		require.True(t, ok)
		assert.Equal(t, 16, img.Width)
		assert.Equal(t, 12, img.Height)
	}
}

func TestRun_TimestampsNonDecreasing(t *testing.T) {
	cfg := testConfig()
	cfg.Frames = 50
	src, err := NewDepth(cfg, nil)
	require.NoError(t, err)

	col := &collector{}
	src.OnFrame(col.add)
	require.NoError(t, src.Run(context.Background()))

	frames := col.all()
	require.Len(t, frames, 50)
	for i := 1; i < len(frames); i++ {
		assert.False(t, frames[i].Timestamp.Before(frames[i-1].Timestamp),
			"frame %d went backwards", i)
	}
}

func TestOnFrame_Unsubscribe(t *testing.T) {
	src, err := NewColor(testConfig(), nil)
	require.NoError(t, err)

	kept := &collector{}
	dropped := &collector{}
	src.OnFrame(kept.add)
	cancel := src.OnFrame(dropped.add)
	cancel()

	require.NoError(t, src.Run(context.Background()))
	assert.Len(t, kept.all(), 5)
	assert.Empty(t, dropped.all())
}

func TestRun_ContextCancelStops(t *testing.T) {
	cfg := testConfig()
	cfg.Frames = 0
	cfg.FPS = 200
	cfg.Jitter = 0
	src, err := NewColor(cfg, nil)
	require.NoError(t, err)

	col := &collector{}
	src.OnFrame(col.add)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = src.Run(ctx)
	require.Error(t, err)
	assert.NotEmpty(t, col.all(), "frames flowed before cancellation")
}

func TestColorScene_ValuesInRange(t *testing.T) {
	img := colorScene(16, 12, 3)
	require.Len(t, img.Pix, 16*12*3)
	for _, v := range img.Pix {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestDepthScene_SparseLattice(t *testing.T) {
	img := depthScene(16, 12, 0, 4)
	require.Len(t, img.Pix, 16*12)

	samples := 0
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			v := img.Pix[y*16+x]
			if y%4 == 0 && x%4 == 0 {
				assert.Greater(t, v, float32(0), "lattice point (%d,%d)", x, y)
				samples++
			} else {
				assert.Zero(t, v, "hole (%d,%d)", x, y)
			}
		}
	}
	assert.Equal(t, 4*3, samples)
}

func TestScenes_ShareTheDepthField(t *testing.T) {
	// The orbiting square is nearer, so it must be brighter than the
	// background in its own frame.
	const frame = 0
	img := colorScene(64, 64, frame)
	d := depthScene(64, 64, frame, 1)

	var nearLum, farLum float32
	var nearN, farN int
	for i := 0; i < 64*64; i++ {
		lum := img.Pix[i*3]
		if d.Pix[i] <= 1.0 {
			nearLum += lum
			nearN++
		} else if d.Pix[i] >= 3.0 {
			farLum += lum
			farN++
		}
	}
	require.Positive(t, nearN, "square visible in frame")
	require.Positive(t, farN)
	assert.Greater(t, nearLum/float32(nearN), farLum/float32(farN))
}
