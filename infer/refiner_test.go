package infer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NV7150/ImOTAR-sub000/depth"
	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/stream"
)

func grayImage(w, h int, v float32) *ColorImage {
	pix := make([]float32, w*h*3)
	for i := range pix {
		pix[i] = v
	}
	return &ColorImage{Width: w, Height: h, Pix: pix}
}

// splitImage is black on the left half, white on the right.
func splitImage(w, h int) *ColorImage {
	pix := make([]float32, w*h*3)
	for y := 0; y < h; y++ {
		for x := w / 2; x < w; x++ {
			i := (y*w + x) * 3
			pix[i], pix[i+1], pix[i+2] = 1, 1, 1
		}
	}
	return &ColorImage{Width: w, Height: h, Pix: pix}
}

func sparseDepth(w, h int, samples map[int]float32) *DepthImage {
	pix := make([]float32, w*h)
	for i, v := range samples {
		pix[i] = v
	}
	return &DepthImage{Width: w, Height: h, Pix: pix}
}

func pairOf(c *ColorImage, d *DepthImage) stream.SyncedPair {
	return stream.SyncedPair{
		Color: stream.Frame{Stream: stream.StreamColor, Payload: c},
		Depth: stream.Frame{Stream: stream.StreamDepth, Payload: d},
	}
}

func drain(t *testing.T, run depth.Run) []float32 {
	t.Helper()
	for i := 0; i < 10000; i++ {
		more, err := run.Advance()
		require.NoError(t, err)
		if !more {
			return run.Result()
		}
	}
	t.Fatal("run never completed")
	return nil
}

func TestNewRefiner_Validation(t *testing.T) {
	valid := RefinerConfig{Width: 8, Height: 8, Passes: 4, Lambda: 0.5, EdgeScale: 0.1}
	_, err := NewRefiner(valid)
	require.NoError(t, err)

	cases := map[string]func(*RefinerConfig){
		"zero width":    func(c *RefinerConfig) { c.Width = 0 },
		"zero height":   func(c *RefinerConfig) { c.Height = 0 },
		"no passes":     func(c *RefinerConfig) { c.Passes = 0 },
		"zero lambda":   func(c *RefinerConfig) { c.Lambda = 0 },
		"lambda above":  func(c *RefinerConfig) { c.Lambda = 1.5 },
		"zero edge":     func(c *RefinerConfig) { c.EdgeScale = 0 },
		"negative edge": func(c *RefinerConfig) { c.EdgeScale = -0.1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			_, err := NewRefiner(cfg)
			assert.True(t, errors.IsInvalidConfigError(err))
		})
	}
}

func TestBegin_RejectsBadPayloads(t *testing.T) {
	r, err := NewRefiner(RefinerConfig{Width: 4, Height: 4, Passes: 2, Lambda: 0.5, EdgeScale: 0.1})
	require.NoError(t, err)

	good := pairOf(grayImage(4, 4, 0.5), sparseDepth(4, 4, map[int]float32{5: 2}))
	_, err = r.Begin(good)
	require.NoError(t, err)

	t.Run("wrong color type", func(t *testing.T) {
		p := good
		p.Color.Payload = "not an image"
		_, err := r.Begin(p)
		assert.True(t, errors.Is(err, errors.ErrBadSnapshot))
	})

	t.Run("wrong depth type", func(t *testing.T) {
		p := good
		p.Depth.Payload = 42
		_, err := r.Begin(p)
		assert.True(t, errors.Is(err, errors.ErrBadSnapshot))
	})

	t.Run("short color plane", func(t *testing.T) {
		p := good
		p.Color.Payload = &ColorImage{Width: 4, Height: 4, Pix: make([]float32, 7)}
		_, err := r.Begin(p)
		assert.True(t, errors.Is(err, errors.ErrBadSnapshot))
	})

	t.Run("short depth plane", func(t *testing.T) {
		p := good
		p.Depth.Payload = &DepthImage{Width: 4, Height: 4, Pix: make([]float32, 3)}
		_, err := r.Begin(p)
		assert.True(t, errors.Is(err, errors.ErrBadSnapshot))
	})

	t.Run("non-finite depth", func(t *testing.T) {
		d := sparseDepth(4, 4, map[int]float32{5: 2})
		d.Pix[0] = float32(math.NaN())
		p := pairOf(grayImage(4, 4, 0.5), d)
		_, err := r.Begin(p)
		assert.True(t, errors.Is(err, errors.ErrBadSnapshot))
	})
}

func TestRefine_AdvanceCountMatchesPasses(t *testing.T) {
	r, err := NewRefiner(RefinerConfig{Width: 4, Height: 4, Passes: 3, Lambda: 0.5, EdgeScale: 0.1})
	require.NoError(t, err)
	run, err := r.Begin(pairOf(grayImage(4, 4, 0.5), sparseDepth(4, 4, map[int]float32{0: 1})))
	require.NoError(t, err)

	more, err := run.Advance()
	require.NoError(t, err)
	assert.True(t, more)

	more, err = run.Advance()
	require.NoError(t, err)
	assert.True(t, more)

	more, err = run.Advance()
	require.NoError(t, err)
	assert.False(t, more)

	more, err = run.Advance()
	require.NoError(t, err)
	assert.False(t, more, "a finished run stays finished")
	assert.Len(t, run.Result(), 16)
}

func TestRefine_PinsSeeds(t *testing.T) {
	r, err := NewRefiner(RefinerConfig{Width: 4, Height: 4, Passes: 8, Lambda: 0.8, EdgeScale: 0.1})
	require.NoError(t, err)
	run, err := r.Begin(pairOf(grayImage(4, 4, 0.5), sparseDepth(4, 4, map[int]float32{5: 2.5, 10: 1.25})))
	require.NoError(t, err)

	out := drain(t, run)
	assert.Equal(t, float32(2.5), out[5], "measured samples stay exact")
	assert.Equal(t, float32(1.25), out[10])
}

func TestRefine_FillsHolesTowardSeeds(t *testing.T) {
	r, err := NewRefiner(RefinerConfig{Width: 4, Height: 4, Passes: 20, Lambda: 0.9, EdgeScale: 0.5})
	require.NoError(t, err)

	// Seed column x=0 at depth 2 under a flat color guide.
	seeds := map[int]float32{}
	for y := 0; y < 4; y++ {
		seeds[y*4] = 2
	}
	run, err := r.Begin(pairOf(grayImage(4, 4, 0.5), sparseDepth(4, 4, seeds)))
	require.NoError(t, err)

	out := drain(t, run)
	for i, v := range out {
		if i%4 == 0 {
			continue
		}
		assert.Greater(t, v, float32(0), "hole %d should have filled", i)
		assert.LessOrEqual(t, v, float32(2.0001))
	}
	assert.Greater(t, out[1], out[3], "fill strength falls with distance from the seed")
}

func TestRefine_EdgesBlockDiffusion(t *testing.T) {
	r, err := NewRefiner(RefinerConfig{Width: 8, Height: 2, Passes: 30, Lambda: 0.9, EdgeScale: 0.02})
	require.NoError(t, err)

	// Seeds on the dark half only. The hard luminance edge at x=3|4
	// should keep their depth from bleeding into the bright half.
	run, err := r.Begin(pairOf(splitImage(8, 2), sparseDepth(8, 2, map[int]float32{0: 4, 8: 4})))
	require.NoError(t, err)

	out := drain(t, run)
	leftHole := out[3]
	rightHole := out[4]
	assert.Greater(t, leftHole, float32(1))
	assert.Less(t, rightHole, leftHole/4)
}

func TestResample(t *testing.T) {
	src := []float32{1, 2, 3, 4}

	t.Run("identity", func(t *testing.T) {
		assert.Equal(t, src, resampleBilinear(src, 2, 2, 2, 2))
		assert.Equal(t, src, resampleNearest(src, 2, 2, 2, 2))
	})

	t.Run("bilinear upscale keeps corners", func(t *testing.T) {
		out := resampleBilinear(src, 2, 2, 4, 4)
		require.Len(t, out, 16)
		assert.InDelta(t, 1, out[0], 1e-6)
		assert.InDelta(t, 2, out[3], 1e-6)
		assert.InDelta(t, 3, out[12], 1e-6)
		assert.InDelta(t, 4, out[15], 1e-6)
	})

	t.Run("nearest downscale picks source pixels", func(t *testing.T) {
		big := make([]float32, 16)
		for i := range big {
			big[i] = float32(i)
		}
		out := resampleNearest(big, 4, 4, 2, 2)
		assert.Equal(t, []float32{0, 2, 8, 10}, out)
	})
}

func TestNewPayload_Validation(t *testing.T) {
	_, err := NewColorImage(0, 4, nil)
	assert.True(t, errors.IsInvalidConfigError(err))
	_, err = NewColorImage(2, 2, make([]float32, 5))
	assert.True(t, errors.IsInvalidConfigError(err))
	c, err := NewColorImage(2, 2, make([]float32, 12))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Width)

	_, err = NewDepthImage(2, 0, nil)
	assert.True(t, errors.IsInvalidConfigError(err))
	_, err = NewDepthImage(2, 2, make([]float32, 3))
	assert.True(t, errors.IsInvalidConfigError(err))
	d, err := NewDepthImage(2, 2, make([]float32, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, d.Height)
}
