package index

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intellidocs/internal/model"
)

func TestParseSearch_FlatArrayReply(t *testing.T) {
	r := &Redis{
		keyPrefix: "intellidocs:vec:s1:",
		chunks: map[string]model.Chunk{
			"doc:0": {ID: "doc:0", DocumentName: "a.pdf"},
			"doc:1": {ID: "doc:1", DocumentName: "b.pdf"},
		},
	}

	// FT.SEARCH under RESP2: count, then (key, fields) pairs; the score field
	// carries the cosine distance.
	raw := []interface{}{
		int64(2),
		"intellidocs:vec:s1:doc:1",
		[]interface{}{"score", "0.25"},
		"intellidocs:vec:s1:doc:0",
		[]interface{}{"score", "0.5"},
	}

	results, err := r.parseSearch(raw)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "doc:1", results[0].Chunk.ID)
	assert.InDelta(t, 0.75, results[0].Score, 1e-9)
	assert.Equal(t, "doc:0", results[1].Chunk.ID)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)
}

func TestParseSearch_SkipsUnknownKeys(t *testing.T) {
	r := &Redis{
		keyPrefix: "intellidocs:vec:s1:",
		chunks:    map[string]model.Chunk{"doc:0": {ID: "doc:0"}},
	}
	raw := []interface{}{
		int64(2),
		"intellidocs:vec:s1:doc:0",
		[]interface{}{"score", "0"},
		"intellidocs:vec:s1:gone",
		[]interface{}{"score", "0"},
	}

	results, err := r.parseSearch(raw)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc:0", results[0].Chunk.ID)
}

func TestParseSearch_RejectsNonArrayReply(t *testing.T) {
	r := &Redis{}
	_, err := r.parseSearch(map[interface{}]interface{}{})
	assert.Error(t, err)
}

func TestEncodeVector_LittleEndianFloat32(t *testing.T) {
	buf := encodeVector([]float32{1, -2.5})
	require.Len(t, buf, 8)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4])))
	assert.Equal(t, float32(-2.5), math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8])))
}
