package imageproc

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Preprocessing defaults.
const (
	DefaultSize         = 224
	DefaultCropFraction = 0.10
	DefaultSharpness    = 1.5
)

// smoothKernel is the 3x3 blur used as the sharpening baseline.
var smoothKernel = [9]float64{
	1, 1, 1,
	1, 5, 1,
	1, 1, 1,
}

// Preprocessor turns a decoded bitmap into the encoder's input: opaque
// RGB, margins cropped, resized square with Lanczos, then sharpened.
type Preprocessor struct {
	size         int
	cropFraction float64
	sharpness    float64
}

// PreprocessorOption configures a Preprocessor.
type PreprocessorOption func(*Preprocessor)

// WithSize sets the square output resolution.
func WithSize(size int) PreprocessorOption {
	return func(p *Preprocessor) {
		if size > 0 {
			p.size = size
		}
	}
}

// WithCropFraction sets the fraction cropped from each edge.
func WithCropFraction(f float64) PreprocessorOption {
	return func(p *Preprocessor) {
		if f >= 0 && f < 0.5 {
			p.cropFraction = f
		}
	}
}

// WithSharpness sets the sharpness factor. 1 leaves the image unchanged.
func WithSharpness(f float64) PreprocessorOption {
	return func(p *Preprocessor) {
		if f >= 0 {
			p.sharpness = f
		}
	}
}

// NewPreprocessor creates a Preprocessor.
func NewPreprocessor(opts ...PreprocessorOption) *Preprocessor {
	p := &Preprocessor{
		size:         DefaultSize,
		cropFraction: DefaultCropFraction,
		sharpness:    DefaultSharpness,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the output resolution.
func (p *Preprocessor) Size() int { return p.size }

// Process runs every step on img and returns a new bitmap. img is not
// modified.
func (p *Preprocessor) Process(img image.Image) *image.NRGBA {
	out := Opaque(img)
	out = Crop(out, p.cropFraction)
	out = imaging.Resize(out, p.size, p.size, imaging.Lanczos)
	return Sharpen(out, p.sharpness)
}

// Opaque converts img to non-premultiplied RGBA and discards alpha.
func Opaque(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// Crop removes fraction of the width from the left and right edges and
// fraction of the height from the top and bottom. Images too small to crop
// are returned unchanged.
func Crop(img *image.NRGBA, fraction float64) *image.NRGBA {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	rect := image.Rect(
		b.Min.X+int(math.Round(w*fraction)),
		b.Min.Y+int(math.Round(h*fraction)),
		b.Min.X+int(math.Round(w*(1-fraction))),
		b.Min.Y+int(math.Round(h*(1-fraction))),
	)
	if rect.Empty() || rect.Eq(b) {
		return img
	}
	return imaging.Crop(img, rect)
}

// Sharpen blends img away from a smoothed copy by factor:
// out = smooth + factor*(img - smooth).
func Sharpen(img *image.NRGBA, factor float64) *image.NRGBA {
	if factor == 1 {
		return img
	}
	if img.Rect.Min != (image.Point{}) || img.Stride != 4*img.Rect.Dx() {
		img = imaging.Clone(img)
	}
	smooth := imaging.Convolve3x3(img, smoothKernel, &imaging.ConvolveOptions{Normalize: true})

	out := image.NewNRGBA(img.Rect)
	for i := 0; i < len(out.Pix); i += 4 {
		for c := range 3 {
			s := float64(smooth.Pix[i+c])
			v := s + factor*(float64(img.Pix[i+c])-s)
			out.Pix[i+c] = clampByte(v)
		}
		out.Pix[i+3] = img.Pix[i+3]
	}
	return out
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
