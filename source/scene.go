package source

import (
	"math"

	"github.com/NV7150/ImOTAR-sub000/infer"
)

// The synthetic scene is a receding background plane with a square
// object orbiting the center at one meter. Both streams render the same
// analytic field, so a synced pair is geometrically coherent and gives
// the refiner real edges to respect.

const (
	sceneNearDepth = 2.0 // background depth at the bottom edge, meters
	sceneFarDepth  = 6.0 // background depth at the top edge
	squareDepth    = 1.0
	squareHalf     = 0.12 // half-extent in normalized coordinates
	orbitRadius    = 0.3
	orbitPeriod    = 120 // frames per revolution
)

// fieldDepth returns the scene depth at normalized (u, v) for frame i.
func fieldDepth(u, v float64, i int) float64 {
	phase := 2 * math.Pi * float64(i%orbitPeriod) / orbitPeriod
	cx := 0.5 + orbitRadius*math.Cos(phase)
	cy := 0.5 + orbitRadius*math.Sin(phase)
	if math.Abs(u-cx) < squareHalf && math.Abs(v-cy) < squareHalf {
		return squareDepth
	}
	return sceneNearDepth + (sceneFarDepth-sceneNearDepth)*v
}

// colorScene renders frame i as an RGB plane. Brightness falls with
// depth, which puts a strong luminance edge exactly where the depth
// edge is.
func colorScene(w, h, i int) *infer.ColorImage {
	pix := make([]float32, w*h*3)
	for y := 0; y < h; y++ {
		v := (float64(y) + 0.5) / float64(h)
		for x := 0; x < w; x++ {
			u := (float64(x) + 0.5) / float64(w)
			d := fieldDepth(u, v, i)
			lum := float32(math.Min(1, squareDepth/d))
			o := (y*w + x) * 3
			pix[o] = lum
			pix[o+1] = lum
			pix[o+2] = lum * 0.9
		}
	}
	return &infer.ColorImage{Width: w, Height: h, Pix: pix}
}

// depthScene samples the field on a sparse lattice: one measurement
// every stride pixels per axis, holes elsewhere.
func depthScene(w, h, i, stride int) *infer.DepthImage {
	pix := make([]float32, w*h)
	for y := 0; y < h; y += stride {
		v := (float64(y) + 0.5) / float64(h)
		for x := 0; x < w; x += stride {
			u := (float64(x) + 0.5) / float64(w)
			pix[y*w+x] = float32(fieldDepth(u, v, i))
		}
	}
	return &infer.DepthImage{Width: w, Height: h, Pix: pix}
}
