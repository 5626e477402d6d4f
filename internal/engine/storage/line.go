package storage

import (
	"fmt"
	"unicode/utf8"
)

// TextLine is one line in a backend's encoded form. Len counts runes.
//
// Lines are immutable values: editing a Storage replaces lines, it never
// changes a line in place.
type TextLine interface {
	Len() int

	// Decode returns a directly indexable view of the line. The caller must
	// Release it.
	Decode() DecodedLine
}

// DecodedLine is a temporary rune view of a line.
//
// Release must be called on every path once the view is no longer needed.
// For the hardened backend Release is the point at which plaintext is wiped;
// the slice returned by Runes must not be used after it.
type DecodedLine interface {
	Len() int
	At(i int) rune
	Runes() []rune
	String() string
	Release()
}

// runeLine is the decoded form used by the plain and compact backends.
type runeLine struct {
	runes []rune
}

func newRuneLine(runes []rune) *runeLine {
	return &runeLine{runes: runes}
}

func (d *runeLine) Len() int { return len(d.runes) }
func (d *runeLine) At(i int) rune { return d.runes[i] }
func (d *runeLine) Runes() []rune { return d.runes }
func (d *runeLine) String() string { return string(d.runes) }
func (d *runeLine) Release() { d.runes = nil }

// runeOffset returns the byte offset of rune n in p. n may equal the rune
// count, in which case len(p) is returned.
func runeOffset(p []byte, n int) int {
	off := 0
	for i := 0; i < n; i++ {
		if off >= len(p) {
			panic(fmt.Sprintf("storage: rune offset %d out of range", n))
		}
		_, size := utf8.DecodeRune(p[off:])
		off += size
	}
	return off
}

// runeOffsetString is runeOffset for strings.
func runeOffsetString(s string, n int) int {
	off := 0
	for i := 0; i < n; i++ {
		if off >= len(s) {
			panic(fmt.Sprintf("storage: rune offset %d out of range", n))
		}
		_, size := utf8.DecodeRuneInString(s[off:])
		off += size
	}
	return off
}

// checkSpan panics unless [off, off+n) lies within a line of length size.
func checkSpan(off, n, size int) {
	if off < 0 || n < 0 || off+n > size {
		panic(fmt.Sprintf("storage: span [%d,%d) out of range [0,%d]", off, off+n, size))
	}
}

// spliceRunes decodes the three fragments of a Combine into one rune slice.
// b may be nil. The caller owns the result.
func spliceRunes(a TextLine, offA, countA int, b, c TextLine, offC, countC int) []rune {
	checkSpan(offA, countA, a.Len())
	checkSpan(offC, countC, c.Len())
	n := countA + countC
	if b != nil {
		n += b.Len()
	}
	out := make([]rune, 0, n)

	da := a.Decode()
	defer da.Release()
	out = append(out, da.Runes()[offA:offA+countA]...)
	if b != nil {
		db := b.Decode()
		defer db.Release()
		out = append(out, db.Runes()...)
	}
	dc := c.Decode()
	defer dc.Release()
	return append(out, dc.Runes()[offC:offC+countC]...)
}
