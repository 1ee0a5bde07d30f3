package inference

import (
	"image"

	"github.com/Brownie44l1/sketch-classifier/internal/engine"
)

const (
	// InputSize is the side length the models are trained on.
	InputSize = 28
	// FlatWidth is InputSize*InputSize, the width of a flattened input.
	FlatWidth = InputSize * InputSize
)

// Preprocess averages the RGB channels of img, scales them to [0,1] and
// resamples the result to size x size. The result has shape [1, size, size, 1].
// Alpha is ignored; premultiplied pixels therefore read as composited on black.
//
// Resampling is a bilinear point sample without half-pixel centers, so each
// output pixel reads at most the 2x2 source neighbourhood at (x*in/out,
// y*in/out). Unlike a filtering resize it does not widen the kernel when
// shrinking: a 400px canvas keeps the thin-stroke response the models were
// trained against.
func Preprocess(img image.Image, size int) engine.Tensor {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	gray := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			mean := (float32(r>>8) + float32(g>>8) + float32(bl>>8)) / 3
			gray[y*w+x] = mean / 255.0
		}
	}

	data := make([]float32, size*size)
	if w == 0 || h == 0 {
		return engine.Tensor{Shape: []int{1, size, size, 1}, Data: data}
	}

	sy, sx := float32(h)/float32(size), float32(w)/float32(size)
	for y := 0; y < size; y++ {
		y0, y1, dy := neighbours(float32(y)*sy, h)
		for x := 0; x < size; x++ {
			x0, x1, dx := neighbours(float32(x)*sx, w)
			top := gray[y0*w+x0] + (gray[y0*w+x1]-gray[y0*w+x0])*dx
			bottom := gray[y1*w+x0] + (gray[y1*w+x1]-gray[y1*w+x0])*dx
			data[y*size+x] = top + (bottom-top)*dy
		}
	}

	return engine.Tensor{Shape: []int{1, size, size, 1}, Data: data}
}

// neighbours returns the two source indices around src, clamped to n, and
// the interpolation weight of the second.
func neighbours(src float32, n int) (lo, hi int, frac float32) {
	lo = int(src)
	if lo > n-1 {
		lo = n - 1
	}
	hi = min(lo+1, n-1)
	return lo, hi, src - float32(lo)
}

// ShapeFor adapts a [1, H, W, 1] input to the model's declared input shape:
// a 2-D declaration of width FlatWidth gets [1, FlatWidth], anything else
// gets the 4-D tensor unchanged.
func ShapeFor(declared []int, t engine.Tensor) engine.Tensor {
	if len(declared) == 2 && declared[1] == FlatWidth {
		return t.Flatten()
	}
	return t
}
