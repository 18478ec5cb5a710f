package subtitles

import "math"

// SplitLines lays a cue's words out on one or two lines. A chunk that fits
// maxChars stays on one line. Otherwise the most balanced split within two
// words of the middle wins, provided both lines fit maxChars*overflow, no
// non-breaking word sits at the break and the break is not inside a quote.
// Failing that the split falls on the sentence end nearest the middle, then
// on the middle itself.
func SplitLines(words []string, maxChars int, overflow float64) []string {
	text := joinWords(words)
	if len(words) < 2 || runeLen(text) <= maxChars {
		return []string{text}
	}
	if overflow < 1 {
		overflow = 1
	}
	limit := int(math.Floor(float64(maxChars) * overflow))
	depths := quoteDepths(words)
	mid := len(words) / 2

	best, bestDiff := -1, 0
	for k := mid - 2; k <= mid+2; k++ {
		if k <= 0 || k >= len(words) {
			continue
		}
		l1, l2 := runeLen(joinWords(words[:k])), runeLen(joinWords(words[k:]))
		if l1 > limit || l2 > limit {
			continue
		}
		if IsNonBreaking(words[k-1]) || IsNonBreaking(words[k]) || depths[k-1] > 0 {
			continue
		}
		diff := l1 - l2
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = k, diff
		}
	}
	if best > 0 {
		return splitAt(words, best)
	}

	sentence := -1
	for k := 1; k < len(words); k++ {
		if !endsSentence(words[k-1]) {
			continue
		}
		if sentence < 0 || absInt(k-mid) < absInt(sentence-mid) {
			sentence = k
		}
	}
	if sentence > 0 {
		return splitAt(words, sentence)
	}
	return splitAt(words, mid)
}

func splitAt(words []string, k int) []string {
	return []string{joinWords(words[:k]), joinWords(words[k:])}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
