package subtitles

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// nonBreakingWords must never sit at a cue or line edge. The Russian set
// covers prepositions, conjunctions, particles and demonstratives; the English
// entries are their closest counterparts.
var nonBreakingWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"в", "на", "с", "к", "у", "о", "об", "по", "за", "из", "до", "для", "без", "от", "при", "про", "под",
		"и", "а", "но", "или", "да", "что", "как", "если", "чтобы", "когда", "хотя", "пока", "чтоб",
		"не", "ни", "ли", "же", "бы", "ведь", "уж", "вот", "даже", "лишь", "только", "ещё", "еще",
		"это", "тот", "та", "то", "те", "эта", "этот", "эти",
		"a", "an", "the", "of", "to", "in", "on", "at", "by", "for", "with", "from", "into",
		"and", "or", "but", "nor", "if", "that", "not", "no",
	} {
		nonBreakingWords[w] = struct{}{}
	}
}

// IsNonBreaking reports whether word must stay attached to its neighbour:
// listed function words, dash tokens and bare numbers.
func IsNonBreaking(word string) bool {
	word = strings.TrimSpace(word)
	if word == "" {
		return false
	}
	if isDashToken(word) {
		return true
	}
	core := strings.TrimFunc(word, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	if core == "" {
		return false
	}
	if isNumber(core) {
		return true
	}
	_, ok := nonBreakingWords[cases.Fold().String(core)]
	return ok
}

func isDashToken(word string) bool {
	for _, r := range word {
		if r != '-' && r != '–' && r != '—' {
			return false
		}
	}
	return true
}

func isNumber(word string) bool {
	digits := 0
	for _, r := range word {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.' || r == ',' || r == '%':
		default:
			return false
		}
	}
	return digits > 0
}

// endsSentence reports whether word closes a sentence, ignoring trailing
// quotes and brackets.
func endsSentence(word string) bool {
	trimmed := strings.TrimRightFunc(word, func(r rune) bool {
		return isQuote(r) || r == ')' || r == ']'
	})
	if trimmed == "" {
		return false
	}
	switch []rune(trimmed)[len([]rune(trimmed))-1] {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isQuote(r rune) bool {
	switch r {
	case '"', '«', '»', '„', '“', '”':
		return true
	}
	return false
}

// quoteDepths returns, for each word, how many quotations are still open
// after it. A boundary after word k is inside a quote when depths[k] > 0.
// An opener with no closer within maxQuotedChunk words is treated as a stray
// mark and ignored.
func quoteDepths(words []string) []int {
	stray := make(map[quoteMark]bool)
	for {
		depths, open := scanQuotes(words, stray)
		if open == nil {
			return depths
		}
		stray[*open] = true
	}
}

// quoteMark locates one quote rune: word index and rune offset in the word.
type quoteMark struct {
	word, pos int
	r         rune
}

// scanQuotes computes nesting depths while ignoring stray marks. It returns
// the first opener that stays open for more than maxQuotedChunk words or
// never closes, with nil depths, so the caller can discard it and rescan.
func scanQuotes(words []string, stray map[quoteMark]bool) ([]int, *quoteMark) {
	depths := make([]int, len(words))
	var stack []quoteMark
	pop := func(opener rune) bool {
		if len(stack) > 0 && stack[len(stack)-1].r == opener {
			stack = stack[:len(stack)-1]
			return true
		}
		return false
	}
	for i, w := range words {
		if len(stack) > 0 && i-stack[0].word >= maxQuotedChunk {
			return nil, &stack[0]
		}
		pos := 0
		for _, r := range w {
			mark := quoteMark{word: i, pos: pos, r: r}
			pos++
			if stray[mark] {
				continue
			}
			switch r {
			case '"':
				if !pop('"') {
					stack = append(stack, mark)
				}
			case '«', '„':
				stack = append(stack, mark)
			case '»':
				pop('«')
			case '“':
				if !pop('„') {
					stack = append(stack, mark)
				}
			case '”':
				pop('“')
			}
		}
		depths[i] = len(stack)
	}
	if len(stack) > 0 {
		return nil, &stack[0]
	}
	return depths, nil
}

func joinWords(words []string) string {
	return strings.Join(words, " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}
