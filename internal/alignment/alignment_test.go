package alignment_test

import (
	"errors"
	"testing"

	"montage/internal/alignment"
	"montage/internal/services"
	"montage/internal/testsupport"
)

func TestParseAcceptsFlatAndNestedShapes(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		duration float64
	}{
		{
			name:     "flat",
			payload:  `{"characters":["a","b"],"character_start_times_seconds":[0,0.5],"character_end_times_seconds":[0.5,1],"audio_duration":3}`,
			duration: 3,
		},
		{
			name:     "nested with outer duration",
			payload:  `{"alignment":{"characters":["a","b"],"character_start_times_seconds":[0,0.5],"character_end_times_seconds":[0.5,1]},"audio_duration":2}`,
			duration: 2,
		},
		{
			name:     "nested duration_seconds",
			payload:  `{"alignment":{"characters":["a","b"],"character_start_times_seconds":[0,0.5],"character_end_times_seconds":[0.5,1],"duration_seconds":4}}`,
			duration: 4,
		},
		{
			name:     "duration from last end",
			payload:  `{"characters":["a","b"],"character_start_times_seconds":[0,0.5],"character_end_times_seconds":[0.5,1]}`,
			duration: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := alignment.Parse([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if p.AudioDuration != tt.duration {
				t.Fatalf("duration = %v, want %v", p.AudioDuration, tt.duration)
			}
			if p.Text() != "ab" {
				t.Fatalf("text = %q", p.Text())
			}
		})
	}
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{`},
		{"empty", `{}`},
		{"length mismatch", `{"characters":["a","b"],"character_start_times_seconds":[0],"character_end_times_seconds":[0.5,1],"audio_duration":1}`},
		{"start after end", `{"characters":["a"],"character_start_times_seconds":[1],"character_end_times_seconds":[0.5],"audio_duration":1}`},
		{"decreasing starts", `{"characters":["a","b"],"character_start_times_seconds":[0.5,0.2],"character_end_times_seconds":[0.6,0.7],"audio_duration":1}`},
		{"negative", `{"characters":["a"],"character_start_times_seconds":[-1],"character_end_times_seconds":[0.5],"audio_duration":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := alignment.Parse([]byte(tt.payload))
			if !errors.Is(err, services.ErrInvalidAlignment) {
				t.Fatalf("expected ErrInvalidAlignment, got %v", err)
			}
		})
	}
}

func TestNormalizeSnippet(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"[laughs] Привет   мир", "Привет мир"},
		{"Hello [whispers] world", "Hello world"},
		{"  tabs\tand\nnewlines ", "tabs and newlines"},
		{"[not closed", "[not closed"},
	}
	for _, tt := range tests {
		if got := alignment.NormalizeSnippet(tt.in); got != tt.want {
			t.Fatalf("NormalizeSnippet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFindIsCaseAndWhitespaceInsensitive(t *testing.T) {
	idx := mustIndex(t, "Привет,  мир! Конец.", 0)

	m, ok := idx.Find("привет, МИР", 0)
	if !ok {
		t.Fatal("expected match")
	}
	if m.Pos != 0 || m.Start != 0 {
		t.Fatalf("unexpected match %v", m)
	}

	m, ok = idx.Find("[pause] конец", 0)
	if !ok {
		t.Fatal("expected match for annotated snippet")
	}
	// The double space collapses, so "конец" starts at rune 13 but character 14.
	if m.Pos != 13 {
		t.Fatalf("pos = %d, want 13", m.Pos)
	}
	if m.Start != 14*0.25 {
		t.Fatalf("start = %v, want %v", m.Start, 14*0.25)
	}
}

func TestFindEndUsesCharacterAfterSnippetClampedToLast(t *testing.T) {
	idx := mustIndex(t, "abcdef", 0)

	m, ok := idx.Find("bc", 0)
	if !ok {
		t.Fatal("expected match")
	}
	// End is the end of the character at pos+len = 3 ("d").
	if m.End != 1.0 || m.Next != 3 {
		t.Fatalf("unexpected match %+v", m)
	}

	m, ok = idx.Find("ef", 0)
	if !ok {
		t.Fatal("expected match")
	}
	if m.End != 1.5 || m.Next != 6 {
		t.Fatalf("expected clamp to last character, got %+v", m)
	}
}

func TestFindUsesBoundedPrefix(t *testing.T) {
	p := testsupport.UniformAlignment("abcdefghij", 0.5, 0)
	idx, err := alignment.NewIndex(p, 3)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	// Only "abc" is compared; the remainder diverges from the audio.
	m, ok := idx.Find("abcXYZ", 0)
	if !ok {
		t.Fatal("expected prefix match")
	}
	if m.Pos != 0 || m.Next != 6 {
		t.Fatalf("unexpected match %+v", m)
	}
}

func TestCursorResolvesRepeatedPhrasesInOrder(t *testing.T) {
	idx := mustIndex(t, "да да да", 0)
	cur := idx.NewCursor()

	var positions []int
	for i := 0; i < 3; i++ {
		m, ok := cur.Next("да")
		if !ok {
			t.Fatalf("occurrence %d not found", i)
		}
		positions = append(positions, m.Pos)
	}
	want := []int{0, 3, 6}
	for i := range want {
		if positions[i] != want[i] {
			t.Fatalf("positions = %v, want %v", positions, want)
		}
	}
	if _, ok := cur.Next("да"); ok {
		t.Fatal("expected no fourth occurrence")
	}
}

func TestCursorPeekDoesNotConsume(t *testing.T) {
	idx := mustIndex(t, "one two", 0)
	cur := idx.NewCursor()
	if _, ok := cur.Peek("two"); !ok {
		t.Fatal("expected peek match")
	}
	if cur.Pos() != 0 {
		t.Fatalf("peek advanced cursor to %d", cur.Pos())
	}
	if _, ok := cur.Next("missing"); ok {
		t.Fatal("expected miss")
	}
	if cur.Pos() != 0 {
		t.Fatalf("miss advanced cursor to %d", cur.Pos())
	}
}

func TestIndexMapsMultiRuneCharactersToOwner(t *testing.T) {
	p := &alignment.Payload{
		Characters:    []string{"é", "x", "ß"},
		Starts:        []float64{0, 1, 2},
		Ends:          []float64{1, 2, 3},
		AudioDuration: 3,
	}
	idx, err := alignment.NewIndex(p, 0)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	m, ok := idx.Find("XSS", 0)
	if !ok {
		t.Fatalf("expected folded match")
	}
	if m.Start != 1 {
		t.Fatalf("start = %v, want 1", m.Start)
	}
	m, ok = idx.Find("é", 0)
	if !ok || m.Start != 0 {
		t.Fatalf("expected NFC match at 0, got %+v ok=%v", m, ok)
	}
}

func TestProportionalTime(t *testing.T) {
	tests := []struct {
		word, total int
		duration    float64
		want        float64
	}{
		{0, 10, 20, 0},
		{5, 10, 20, 10},
		{10, 10, 20, 20},
		{12, 10, 20, 20},
		{3, 0, 20, 0},
	}
	for _, tt := range tests {
		if got := alignment.ProportionalTime(tt.word, tt.total, tt.duration); got != tt.want {
			t.Fatalf("ProportionalTime(%d,%d,%v) = %v, want %v", tt.word, tt.total, tt.duration, got, tt.want)
		}
	}
}

func mustIndex(t *testing.T, text string, prefix int) *alignment.Index {
	t.Helper()
	idx, err := alignment.NewIndex(testsupport.UniformAlignment(text, 0.25, 0), prefix)
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	return idx
}
