package services

import (
	"unicode"
	"unicode/utf8"
)

const DefaultChunkSize = 10000

type TextChunker interface {
	Split(text string, chunkSize int) []string
	ChunkWithOverlap(text string, chunkSize int, overlap int) []string
}

type textChunker struct{}

func NewTextChunker() TextChunker {
	return &textChunker{}
}

// Split cuts text into consecutive chunks of at most chunkSize characters.
// A chunk that does not reach the end of the text is shortened to end right
// after the last line break or sentence-ending period inside it; without such
// a boundary it is cut at exactly chunkSize. Chunks are not trimmed, so their
// concatenation is the original text.
func (tc *textChunker) Split(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if text == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)

	var chunks []string
	for start := 0; start < total; {
		end := start + chunkSize
		if end >= total {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		if boundary := lastBoundary(runes, start, end); boundary > start {
			end = boundary + 1
		}

		chunks = append(chunks, string(runes[start:end]))
		start = end
	}

	return chunks
}

// ChunkWithOverlap splits like Split and prefixes every chunk after the first
// with the last overlap characters of its predecessor. Used for embeddings,
// where context across chunk borders matters more than exact reconstruction.
func (tc *textChunker) ChunkWithOverlap(text string, chunkSize int, overlap int) []string {
	if overlap < 0 {
		overlap = 0
	}
	if chunkSize > 0 && overlap >= chunkSize {
		overlap = chunkSize / 4
	}

	parts := tc.Split(text, chunkSize)
	if overlap == 0 || len(parts) < 2 {
		return parts
	}

	chunks := make([]string, len(parts))
	chunks[0] = parts[0]
	for i := 1; i < len(parts); i++ {
		chunks[i] = getLastNChars(parts[i-1], overlap) + parts[i]
	}
	return chunks
}

// lastBoundary returns the largest index in (start, end) holding a line break
// or a period followed by whitespace, or -1.
func lastBoundary(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		switch runes[i] {
		case '\n':
			return i
		case '.':
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				return i
			}
		}
	}
	return -1
}

func getLastNChars(text string, n int) string {
	if n <= 0 {
		return ""
	}

	if utf8.RuneCountInString(text) <= n {
		return text
	}

	runes := []rune(text)
	return string(runes[len(runes)-n:])
}
