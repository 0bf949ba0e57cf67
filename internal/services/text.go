package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended on its own paragraph when text is cut to a token budget.
const TruncationMarker = "\n\n[... contenido truncado ...]"

// charsPerToken approximates how many characters one model token covers.
const charsPerToken = 4

var (
	horizontalSpace = regexp.MustCompile(`[\p{Zs}\t\f\v\r]+`)
	spaceAroundLF   = regexp.MustCompile(` ?\n ?`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// CleanText collapses whitespace runs to one space, keeps at most one blank
// line between paragraphs and trims the result. CleanText(CleanText(x)) == CleanText(x).
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = spaceAroundLF.ReplaceAllString(text, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// TruncateText keeps the first maxTokens*4 characters and appends
// TruncationMarker. Text within budget, or a non-positive budget, is returned as is.
func TruncateText(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}

	limit := maxTokens * charsPerToken
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	return string(runes[:limit]) + TruncationMarker
}

// EstimateTokens returns ceil(characters / 4).
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}
