package infer

import "github.com/NV7150/ImOTAR-sub000/internal/util"

// resampleBilinear maps a single-channel plane onto new dimensions with
// bilinear filtering. Sample points sit at pixel centers.
func resampleBilinear(src []float32, sw, sh, dw, dh int) []float32 {
	dst := make([]float32, dw*dh)
	if sw == dw && sh == dh {
		copy(dst, src)
		return dst
	}

	sx := float64(sw) / float64(dw)
	sy := float64(sh) / float64(dh)
	for y := 0; y < dh; y++ {
		fy := util.ClampFloat64((float64(y)+0.5)*sy-0.5, 0, float64(sh-1))
		y0 := int(fy)
		y1 := y0
		if y0 < sh-1 {
			y1 = y0 + 1
		}
		wy := float32(fy - float64(y0))

		for x := 0; x < dw; x++ {
			fx := util.ClampFloat64((float64(x)+0.5)*sx-0.5, 0, float64(sw-1))
			x0 := int(fx)
			x1 := x0
			if x0 < sw-1 {
				x1 = x0 + 1
			}
			wx := float32(fx - float64(x0))

			top := src[y0*sw+x0]*(1-wx) + src[y0*sw+x1]*wx
			bot := src[y1*sw+x0]*(1-wx) + src[y1*sw+x1]*wx
			dst[y*dw+x] = top*(1-wy) + bot*wy
		}
	}
	return dst
}

// resampleNearest maps a single-channel plane onto new dimensions by
// nearest neighbor. Used for sparse depth, where interpolating across
// missing samples would invent values.
func resampleNearest(src []float32, sw, sh, dw, dh int) []float32 {
	dst := make([]float32, dw*dh)
	if sw == dw && sh == dh {
		copy(dst, src)
		return dst
	}

	for y := 0; y < dh; y++ {
		sy := y * sh / dh
		for x := 0; x < dw; x++ {
			sx := x * sw / dw
			dst[y*dw+x] = src[sy*sw+sx]
		}
	}
	return dst
}

// luminance collapses interleaved RGB to a single Rec. 709 luma plane.
func luminance(rgb []float32, w, h int) []float32 {
	lum := make([]float32, w*h)
	for i := 0; i < w*h; i++ {
		r := rgb[i*3]
		g := rgb[i*3+1]
		b := rgb[i*3+2]
		lum[i] = 0.2126*r + 0.7152*g + 0.0722*b
	}
	return lum
}
