package infer

import "github.com/NV7150/ImOTAR-sub000/errors"

// ColorImage is an RGB frame payload. Pix is row-major, three float32
// channels per pixel in [0, 1].
type ColorImage struct {
	Width  int
	Height int
	Pix    []float32
}

// NewColorImage validates dimensions against the pixel slice.
func NewColorImage(width, height int, pix []float32) (*ColorImage, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.NewInvalidConfigError("color image dimensions must be positive, got %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return nil, errors.NewInvalidConfigError("color image needs %d values, got %d", width*height*3, len(pix))
	}
	return &ColorImage{Width: width, Height: height, Pix: pix}, nil
}

// DepthImage is a sparse depth frame payload. Pix is row-major, one
// float32 per pixel in meters; values <= 0 mark missing samples.
type DepthImage struct {
	Width  int
	Height int
	Pix    []float32
}

// NewDepthImage validates dimensions against the pixel slice.
func NewDepthImage(width, height int, pix []float32) (*DepthImage, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.NewInvalidConfigError("depth image dimensions must be positive, got %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, errors.NewInvalidConfigError("depth image needs %d values, got %d", width*height, len(pix))
	}
	return &DepthImage{Width: width, Height: height, Pix: pix}, nil
}
