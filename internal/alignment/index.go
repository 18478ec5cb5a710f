package alignment

import (
	"fmt"

	"montage/internal/services"
)

// DefaultPrefixChars bounds how much of a snippet is used for matching.
const DefaultPrefixChars = 50

// Match locates a snippet inside the index.
type Match struct {
	// Start is the start time of the first matched character.
	Start float64
	// End is the end time of the character at the snippet's full length
	// past Pos, clamped to the last character.
	End float64
	// Pos is the rune offset of the match.
	Pos int
	// Next is the first rune offset after the snippet, clamped to the index length.
	Next int
}

// Index is an immutable searchable view over a Payload.
type Index struct {
	runes    []rune
	owner    []int
	starts   []float64
	ends     []float64
	prefix   int
	duration float64
}

// NewIndex builds an index from a validated payload. prefixChars <= 0 selects
// DefaultPrefixChars.
func NewIndex(p *Payload, prefixChars int) (*Index, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if prefixChars <= 0 {
		prefixChars = DefaultPrefixChars
	}
	idx := &Index{
		starts:   p.Starts,
		ends:     p.Ends,
		prefix:   prefixChars,
		duration: p.AudioDuration,
		runes:    make([]rune, 0, len(p.Characters)),
		owner:    make([]int, 0, len(p.Characters)),
	}
	for i, ch := range p.Characters {
		for _, r := range fold(ch) {
			// Whitespace runs collapse onto the first owning character.
			if r == ' ' && len(idx.runes) > 0 && idx.runes[len(idx.runes)-1] == ' ' {
				continue
			}
			idx.runes = append(idx.runes, r)
			idx.owner = append(idx.owner, i)
		}
	}
	if len(idx.runes) == 0 {
		return nil, services.Wrap(services.ErrInvalidAlignment, "alignment", "index", "characters are empty", nil)
	}
	return idx, nil
}

// Len returns the number of searchable runes.
func (idx *Index) Len() int { return len(idx.runes) }

// Duration returns the audio duration reported by the payload.
func (idx *Index) Duration() float64 { return idx.duration }

// PrefixChars returns the match prefix bound.
func (idx *Index) PrefixChars() int { return idx.prefix }

// Find scans forward from fromPos for the snippet's bounded prefix.
func (idx *Index) Find(snippet string, fromPos int) (Match, bool) {
	full := foldedSnippet(snippet)
	if len(full) == 0 {
		return Match{}, false
	}
	needle := full
	if len(needle) > idx.prefix {
		needle = needle[:idx.prefix]
	}
	if fromPos < 0 {
		fromPos = 0
	}
	n := len(idx.runes)
	for pos := fromPos; pos+len(needle) <= n; pos++ {
		if !runesEqual(idx.runes[pos:pos+len(needle)], needle) {
			continue
		}
		endRune := min(pos+len(full), n-1)
		return Match{
			Start: idx.starts[idx.owner[pos]],
			End:   idx.ends[idx.owner[endRune]],
			Pos:   pos,
			Next:  min(pos+len(full), n),
		}, true
	}
	return Match{}, false
}

func runesEqual(a, b []rune) bool {
	for i := range b {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Cursor consumes an index front to back. Each successful Next moves the
// cursor past the matched snippet so repeated phrases resolve in order.
type Cursor struct {
	idx *Index
	pos int
}

// NewCursor returns a cursor positioned at the start of the index.
func (idx *Index) NewCursor() *Cursor {
	return &Cursor{idx: idx}
}

// Next finds snippet at or after the cursor and advances past it on success.
func (c *Cursor) Next(snippet string) (Match, bool) {
	m, ok := c.idx.Find(snippet, c.pos)
	if ok {
		c.pos = m.Next
	}
	return m, ok
}

// Peek finds snippet at or after the cursor without consuming it.
func (c *Cursor) Peek(snippet string) (Match, bool) {
	return c.idx.Find(snippet, c.pos)
}

// Pos returns the current rune offset.
func (c *Cursor) Pos() int { return c.pos }

func (m Match) String() string {
	return fmt.Sprintf("%.3f-%.3f@%d", m.Start, m.End, m.Pos)
}
