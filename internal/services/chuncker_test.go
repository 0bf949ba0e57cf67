package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextChunker_Split(t *testing.T) {
	t.Parallel()
	chunker := NewTextChunker()

	t.Run("empty input yields no chunks", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, chunker.Split("", 100))
	})

	t.Run("short input is one chunk", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"hola."}, chunker.Split("hola.", 100))
	})

	t.Run("cuts at chunk size without boundaries", func(t *testing.T) {
		t.Parallel()
		chunks := chunker.Split(strings.Repeat("x", 25), 10)
		assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, chunks)
	})

	t.Run("backs up to last line break", func(t *testing.T) {
		t.Parallel()
		chunks := chunker.Split("abc\ndefghijkl", 8)
		assert.Equal(t, []string{"abc\n", "defghijk", "l"}, chunks)
	})

	t.Run("prefers the later of period and line break", func(t *testing.T) {
		t.Parallel()
		chunks := chunker.Split("ab\ncd. efghij", 9)
		require.NotEmpty(t, chunks)
		assert.Equal(t, "ab\ncd.", chunks[0])
	})

	t.Run("period without following space is not a boundary", func(t *testing.T) {
		t.Parallel()
		chunks := chunker.Split("v1.2.3abcdefgh", 8)
		assert.Equal(t, "v1.2.3ab", chunks[0])
	})

	t.Run("multibyte characters stay intact", func(t *testing.T) {
		t.Parallel()
		text := strings.Repeat("ñ", 7)
		chunks := chunker.Split(text, 3)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c))
		}
		assert.Equal(t, text, strings.Join(chunks, ""))
	})
}

func TestTextChunker_SplitReconstructs(t *testing.T) {
	t.Parallel()
	chunker := NewTextChunker()

	inputs := []string{
		strings.Repeat("Oración de prueba número uno. ", 40),
		strings.Repeat("línea\n", 77),
		"sin límites " + strings.Repeat("z", 500),
		"a. b. c.\n\nd",
	}

	for _, in := range inputs {
		for _, size := range []int{1, 7, 64, 1000} {
			chunks := chunker.Split(in, size)
			assert.Equal(t, in, strings.Join(chunks, ""))
			for _, c := range chunks {
				assert.NotEmpty(t, c)
				assert.LessOrEqual(t, utf8.RuneCountInString(c), size)
			}
		}
	}
}

func TestTextChunker_SplitLargeDocument(t *testing.T) {
	t.Parallel()

	// 25,000 characters of 50-character sentences.
	sentence := strings.Repeat("a", 48) + ". "
	text := strings.Repeat(sentence, 500)
	require.Equal(t, 25000, utf8.RuneCountInString(text))

	chunks := NewTextChunker().Split(text, 10000)
	assert.Len(t, chunks, 3)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestTextChunker_ChunkWithOverlap(t *testing.T) {
	t.Parallel()
	chunker := NewTextChunker()

	chunks := chunker.ChunkWithOverlap(strings.Repeat("x", 10)+strings.Repeat("y", 10), 10, 3)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("x", 10), chunks[0])
	assert.Equal(t, "xxx"+strings.Repeat("y", 10), chunks[1])

	assert.Equal(t, []string{"corto"}, chunker.ChunkWithOverlap("corto", 10, 3))
}
