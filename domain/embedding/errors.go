package embedding

import "errors"

// Embedding errors.
var (
	ErrInvalidImage     = errors.New("invalid image")
	ErrInvalidEmbedding = errors.New("invalid embedding")
)
