// Package index stores chunk vectors and answers nearest-neighbour queries
// by cosine similarity.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"intellidocs/internal/model"
)

var (
	// ErrDimensionMismatch is a fatal configuration error: all vectors in one
	// index, and every query against it, must share one dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyIndex rejects building an index with nothing in it; an empty
	// index cannot answer queries meaningfully.
	ErrEmptyIndex = errors.New("cannot build an empty index")
)

// Result is one retrieved chunk with its similarity score.
type Result struct {
	Chunk model.Chunk `json:"chunk"`
	Score float64     `json:"score"`
}

// Index is a searchable set of (chunk, vector) pairs. Append-only within a
// session; adding documents rebuilds the index from scratch.
type Index interface {
	// Search returns at most k chunks ordered by non-increasing similarity.
	// Ties break by chunk insertion order.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	// Size reports the number of indexed chunks.
	Size() int
	// Close releases any resources the backend holds.
	Close(ctx context.Context) error
}

// Memory is the default brute-force backend. Vectors are L2-normalised at
// build time so search is a plain inner product; embedding magnitude carries
// no meaning, only direction.
type Memory struct {
	dim     int
	chunks  []model.Chunk
	vectors [][]float32
}

// Build constructs a memory index from parallel chunk and vector slices.
// Rebuilding from the same inputs yields identical search results.
func Build(chunks []model.Chunk, vectors [][]float32) (*Memory, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks vs %d vectors", ErrDimensionMismatch, len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyIndex
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrDimensionMismatch)
	}

	m := &Memory{
		dim:     dim,
		chunks:  make([]model.Chunk, len(chunks)),
		vectors: make([][]float32, len(vectors)),
	}
	copy(m.chunks, chunks)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dim %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		m.vectors[i] = normalize(v)
	}
	return m, nil
}

func (m *Memory) Search(_ context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: query dim %d, index dim %d", ErrDimensionMismatch, len(query), m.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	q := normalize(query)
	results := make([]Result, len(m.chunks))
	for i := range m.vectors {
		results[i] = Result{Chunk: m.chunks[i], Score: dot(m.vectors[i], q)}
	}
	// Stable sort keeps insertion order on equal scores.
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (m *Memory) Size() int { return len(m.chunks) }

func (m *Memory) Close(context.Context) error { return nil }

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
