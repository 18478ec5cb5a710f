// Package alignment turns character-level speech timing into a searchable
// index.
//
// A Payload carries one entry per spoken character with its start and end
// times. NewIndex folds the characters into a rune sequence that remembers
// the owning character of every rune, so snippet matches map back to real
// timings even when a character spans several runes. Matching is bounded to a
// snippet prefix, case-insensitive and whitespace-insensitive. A Cursor
// enforces forward-only consumption so repeated phrases resolve in spoken
// order.
package alignment
