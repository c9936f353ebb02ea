// Package search scores query embeddings against a catalog index and
// selects the top-K matches.
package search

import (
	"math"
	"sort"
)

// DefaultChunkSize is the number of catalog rows scored per chunk.
const DefaultChunkSize = 100

// Dot returns the dot product of a and b, accumulated in float64.
// a and b must have the same length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Clip bounds a score to [-1, 1]. NaN and infinities become -1.
func Clip(score float64) float64 {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return -1
	}
	return math.Max(-1, math.Min(1, score))
}

// CosineSimilarity computes the clipped cosine similarity between two
// vectors. Returns -1 if the lengths differ or either vector has zero
// magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}

	var dotProduct, magA, magB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProduct += x * y
		magA += x * x
		magB += y * y
	}

	if magA == 0 || magB == 0 {
		return -1
	}

	return Clip(dotProduct / (math.Sqrt(magA) * math.Sqrt(magB)))
}

// Scores computes the clipped dot product of query against every row of
// data (row-major, len(query) columns). Rows are processed chunkSize at a
// time; chunking bounds the working set and never changes the result.
func Scores(query, data []float32, chunkSize int) []float64 {
	dim := len(query)
	if dim == 0 {
		return []float64{}
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	n := len(data) / dim
	scores := make([]float64, n)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		scoreChunk(scores[start:end], query, data[start*dim:end*dim])
	}
	return scores
}

func scoreChunk(dst []float64, query, rows []float32) {
	dim := len(query)
	for i := range dst {
		dst[i] = Clip(Dot(query, rows[i*dim:(i+1)*dim]))
	}
}

// TopK returns the positions of the k highest scores in descending score
// order. Equal scores keep their catalog order. When fewer than k scores
// exist, all positions are returned.
func TopK(scores []float64, k int) []int {
	if len(scores) == 0 || k <= 0 {
		return []int{}
	}

	positions := make([]int, len(scores))
	for i := range positions {
		positions[i] = i
	}

	sort.SliceStable(positions, func(i, j int) bool {
		return scores[positions[i]] > scores[positions[j]]
	})

	if k > len(positions) {
		k = len(positions)
	}
	return positions[:k]
}
