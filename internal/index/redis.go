package index

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/go-redis/v9"

	"intellidocs/internal/model"
)

const (
	fieldVector = "vector"
	fieldScore  = "score"

	hnswEFConstruction = 200
	hnswM              = 16
)

// Redis is an optional index backend on RediSearch's HNSW vector type.
// Vectors live in session-scoped keys that are dropped on Close, so the
// working set stays per-session; chunk metadata stays in-process as a side
// table keyed by chunk id. HNSW search is approximate, so the strict
// tie-break guarantee of the memory backend does not apply here.
type Redis struct {
	client    *redis.Client
	indexName string
	keyPrefix string
	dim       int
	chunks    map[string]model.Chunk
	size      int
}

// BuildRedis rebuilds the named session index from parallel chunk and vector
// slices, replacing any previous build for the same name.
func BuildRedis(ctx context.Context, client *redis.Client, name string, chunks []model.Chunk, vectors [][]float32) (*Redis, error) {
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

	r := &Redis{
		client:    client,
		indexName: "intellidocs:" + name,
		keyPrefix: "intellidocs:vec:" + name + ":",
		dim:       dim,
		chunks:    make(map[string]model.Chunk, len(chunks)),
		size:      len(chunks),
	}

	// Drop any previous build of this session's index together with its keys.
	_ = client.Do(ctx, "FT.DROPINDEX", r.indexName, "DD").Err()

	err := client.Do(ctx, "FT.CREATE", r.indexName,
		"ON", "HASH",
		"PREFIX", "1", r.keyPrefix,
		"SCHEMA",
		fieldVector, "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
		"EF_CONSTRUCTION", strconv.Itoa(hnswEFConstruction),
		"M", strconv.Itoa(hnswM),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("create vector index failed: %w", err)
	}

	pipe := client.Pipeline()
	for i, c := range chunks {
		if len(vectors[i]) != dim {
			return nil, fmt.Errorf("%w: vector %d has dim %d, want %d", ErrDimensionMismatch, i, len(vectors[i]), dim)
		}
		r.chunks[c.ID] = c
		pipe.HSet(ctx, r.keyPrefix+c.ID, fieldVector, encodeVector(normalize(vectors[i])))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert vectors failed: %w", err)
	}
	return r, nil
}

func (r *Redis) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != r.dim {
		return nil, fmt.Errorf("%w: query dim %d, index dim %d", ErrDimensionMismatch, len(query), r.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	queryStr := fmt.Sprintf("*=>[KNN %d @%s $query_vector AS %s]", k, fieldVector, fieldScore)
	raw, err := r.client.Do(ctx, "FT.SEARCH", r.indexName, queryStr,
		"PARAMS", "2", "query_vector", encodeVector(normalize(query)),
		"RETURN", "1", fieldScore,
		"SORTBY", fieldScore, "ASC",
		"LIMIT", "0", strconv.Itoa(k),
		"DIALECT", "2",
	).Result()
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return r.parseSearch(raw)
}

// parseSearch walks the FT.SEARCH reply: a count followed by (id, fields)
// pairs, where fields holds the KNN cosine distance.
func (r *Redis) parseSearch(raw interface{}) ([]Result, error) {
	values, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected search reply format %T", raw)
	}
	var results []Result
	for i := 1; i+1 < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			continue
		}
		chunk, ok := r.chunks[key[len(r.keyPrefix):]]
		if !ok {
			continue
		}
		score := 0.0
		if fields, ok := values[i+1].([]interface{}); ok {
			for j := 0; j+1 < len(fields); j += 2 {
				if name, _ := fields[j].(string); name == fieldScore {
					if s, _ := fields[j+1].(string); s != "" {
						if dist, err := strconv.ParseFloat(s, 64); err == nil {
							// RediSearch reports cosine distance.
							score = 1 - dist
						}
					}
				}
			}
		}
		results = append(results, Result{Chunk: chunk, Score: score})
	}
	return results, nil
}

func (r *Redis) Size() int { return r.size }

// Close drops the index and its keys; nothing outlives the session.
func (r *Redis) Close(ctx context.Context) error {
	if err := r.client.Do(ctx, "FT.DROPINDEX", r.indexName, "DD").Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("drop vector index failed: %w", err)
	}
	return nil
}

// encodeVector packs float32s little-endian, the layout RediSearch expects.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}
