// Package textutil provides small string helpers for file naming and
// terminal display.
package textutil
