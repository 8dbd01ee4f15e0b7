package app

import (
	"context"

	"intellidocs/internal/index"
)

// Retriever ranks chunks for a query vector and applies the similarity
// floor. Dropping everything is a valid outcome ("no grounding found"),
// not an error: answering from irrelevant chunks is worse than admitting
// the documents don't cover the question.
type Retriever struct {
	TopK     int
	MinScore float64
}

func (r Retriever) Retrieve(ctx context.Context, idx index.Index, query []float32) ([]index.Result, error) {
	results, err := idx.Search(ctx, query, r.TopK)
	if err != nil {
		return nil, err
	}
	filtered := results[:0]
	for _, res := range results {
		if res.Score >= r.MinScore {
			filtered = append(filtered, res)
		}
	}
	return filtered, nil
}
