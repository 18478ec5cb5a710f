package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  clip: final/cut?.mp4 ", "clip- final-cut.mp4"},
		{"", ""},
		{"plain.mp4", "plain.mp4"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Poster 01", "poster_01"},
		{"Постер-2", "постер-2"},
		{"../etc/passwd", "etc_passwd"},
		{"   ", "unknown"},
		{"!!!", "unknown"},
	}
	for _, tt := range tests {
		if got := SanitizeToken(tt.in); got != tt.want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"Привет мир", 20, "Привет мир"},
		{"Привет мир", 7, "Привет…"},
		{"abc", 1, "…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.limit); got != tt.want {
			t.Fatalf("Truncate(%q,%d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}
