// Package match defines ranked similarity results.
package match

// Result is one ranked candidate: a catalog identifier and its score.
type Result struct {
	id    string
	score float64
}

// NewResult creates a new Result.
func NewResult(id string, score float64) Result {
	return Result{id: id, score: score}
}

// ID returns the catalog identifier.
func (r Result) ID() string { return r.id }

// Score returns the similarity score in [-1, 1].
func (r Result) Score() float64 { return r.score }

// IDs returns the identifiers of results in order.
func IDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.id
	}
	return ids
}
