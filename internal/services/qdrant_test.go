package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankSimilar(t *testing.T) {
	t.Parallel()

	hits := []similarHit{
		{GroupID: "b", Score: 0.71, Text: "b1", Chunk: 1},
		{GroupID: "a", Score: 0.80, Text: "a1", Chunk: 1},
		{GroupID: "b", Score: 0.92, Text: "b2", Chunk: 2},
		{GroupID: "c", Score: 0.80, Text: "c4", Chunk: 4},
		{GroupID: "", Score: 0.99, Text: "orphan"},
	}

	ranked := rankSimilar(hits, 5)
	require.Len(t, ranked, 3)

	assert.Equal(t, "b", ranked[0].GroupID)
	assert.InDelta(t, 0.92, ranked[0].Score, 1e-6)
	assert.Equal(t, "b2", ranked[0].Excerpt)
	assert.Equal(t, 2, ranked[0].Chunk)

	// Equal scores fall back to the group id.
	assert.Equal(t, "a", ranked[1].GroupID)
	assert.Equal(t, "c", ranked[2].GroupID)
}

func TestRankSimilar_LimitAndExcerpt(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ñ", excerptLength+50)
	ranked := rankSimilar([]similarHit{
		{GroupID: "a", Score: 0.5, Text: long},
		{GroupID: "b", Score: 0.4},
	}, 1)

	require.Len(t, ranked, 1)
	assert.Equal(t, "a", ranked[0].GroupID)
	assert.Equal(t, excerptLength, len([]rune(ranked[0].Excerpt)))
	assert.Empty(t, rankSimilar(nil, 3))
}
