package embedding

import (
	"context"
	"image"
)

// Encoder maps a preprocessed image to a raw embedding. Implementations
// make no normalization guarantee; callers normalize and validate.
type Encoder interface {
	Encode(ctx context.Context, img image.Image) ([]float32, error)
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func(ctx context.Context, img image.Image) ([]float32, error)

// Encode calls f.
func (f EncoderFunc) Encode(ctx context.Context, img image.Image) ([]float32, error) {
	return f(ctx, img)
}

// Embedder turns raw image bytes into a normalized, validated embedding.
type Embedder interface {
	GetOrCompute(ctx context.Context, data []byte) (Vector, error)
}
