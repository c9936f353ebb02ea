// Package imageproc validates, decodes, canonicalizes and preprocesses
// images for the encoder.
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"

	"github.com/yksoni-monk/poke/domain/embedding"
)

// MaxPixels caps the decoded size of an image.
const MaxPixels = 89_478_485

// Validate checks that data holds a decodable image of a sane size. It
// reads only the header; call Decode for pixel access.
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", embedding.ErrInvalidImage)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", embedding.ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("%w: empty bitmap %dx%d", embedding.ErrInvalidImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", embedding.ErrInvalidImage, cfg.Width, cfg.Height, MaxPixels)
	}
	return nil
}

// Decode decodes data from the beginning into a bitmap, applying EXIF
// orientation when present.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", embedding.ErrInvalidImage, err)
	}
	return img, nil
}

// Load validates data and then decodes it.
func Load(data []byte) (image.Image, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}
	return Decode(data)
}

// Canonical returns a fixed PNG encoding of img's pixels. Pixel-identical
// images produce identical bytes regardless of their source container.
func Canonical(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, imaging.Clone(img)); err != nil {
		return nil, fmt.Errorf("encode canonical png: %w", err)
	}
	return buf.Bytes(), nil
}
