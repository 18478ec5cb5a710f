package alignment

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var annotationPattern = regexp.MustCompile(`\[[\p{L}\p{N}_\s]+\]`)

// NormalizeSnippet removes bracketed speech annotations such as [laughs],
// applies NFC and collapses whitespace runs to single spaces.
func NormalizeSnippet(text string) string {
	text = annotationPattern.ReplaceAllString(text, "")
	text = norm.NFC.String(text)
	return strings.Join(strings.Fields(text), " ")
}

// fold lower-cases text for comparison and maps every whitespace rune to a
// plain space. The result may differ in length from the input.
func fold(text string) []rune {
	folded := cases.Fold().String(norm.NFC.String(text))
	out := make([]rune, 0, len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			r = ' '
		}
		out = append(out, r)
	}
	return out
}

// foldedSnippet returns the comparison form of a snippet with whitespace runs
// collapsed and ends trimmed.
func foldedSnippet(text string) []rune {
	runes := fold(NormalizeSnippet(text))
	out := runes[:0]
	for _, r := range runes {
		if r == ' ' && (len(out) == 0 || out[len(out)-1] == ' ') {
			continue
		}
		out = append(out, r)
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return out
}

// ProportionalTime places word wordIndex of totalWords on a linear scale over
// duration. It is the shared fallback when a phrase cannot be located.
func ProportionalTime(wordIndex, totalWords int, duration float64) float64 {
	if totalWords <= 0 || duration <= 0 || wordIndex <= 0 {
		return 0
	}
	if wordIndex >= totalWords {
		return duration
	}
	return float64(wordIndex) / float64(totalWords) * duration
}
