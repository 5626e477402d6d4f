package storage

import (
	"strings"
	"unicode/utf8"
)

// PlainFactory creates storages that keep each line as a Go string in a
// fragmented array. It is the fastest backend and the default.
type PlainFactory struct {
	base
}

// NewPlainFactory creates a plain factory.
func NewPlainFactory(opts ...Option) *PlainFactory {
	f := &PlainFactory{}
	f.base = newBase(f, KindPlain, opts)
	return f
}

type plainLine struct {
	s string
	n int
}

func newPlainLine(s string) plainLine {
	return plainLine{s: s, n: utf8.RuneCountInString(s)}
}

func (l plainLine) Len() int { return l.n }
func (l plainLine) Decode() DecodedLine { return newRuneLine([]rune(l.s)) }
func (l plainLine) String() string { return l.s }
func (l plainLine) size() int { return len(l.s) }

// Encode keeps s as the line. s must be valid UTF-8.
func (f *PlainFactory) Encode(s string) TextLine { return newPlainLine(s) }

// EncodeRunes converts r to a string line.
func (f *PlainFactory) EncodeRunes(r []rune) TextLine { return newPlainLine(string(r)) }

// EncodeBytes copies p into a string line. p must be valid UTF-8.
func (f *PlainFactory) EncodeBytes(p []byte) TextLine { return newPlainLine(string(p)) }

// Ensure returns plain lines as they are and decodes anything else.
func (f *PlainFactory) Ensure(l TextLine) TextLine {
	if pl, ok := l.(plainLine); ok {
		return pl
	}
	d := l.Decode()
	defer d.Release()
	return newPlainLine(d.String())
}

// Substring slices plain lines without copying.
func (f *PlainFactory) Substring(l TextLine, offset, count int) TextLine {
	pl, ok := l.(plainLine)
	if !ok {
		return f.base.Substring(l, offset, count)
	}
	checkSpan(offset, count, pl.n)
	start := runeOffsetString(pl.s, offset)
	end := start + runeOffsetString(pl.s[start:], count)
	return plainLine{s: pl.s[start:end], n: count}
}

// Combine concatenates plain lines directly and falls back to decoding for
// lines of other backends.
func (f *PlainFactory) Combine(a TextLine, offA, countA int, b, c TextLine, offC, countC int) TextLine {
	pa, okA := a.(plainLine)
	pc, okC := c.(plainLine)
	pb, okB := b.(plainLine)
	if !okA || !okC || (b != nil && !okB) {
		return f.base.Combine(a, offA, countA, b, c, offC, countC)
	}
	head := f.Substring(pa, offA, countA).(plainLine)
	tail := f.Substring(pc, offC, countC).(plainLine)

	var sb strings.Builder
	sb.Grow(len(head.s) + len(pb.s) + len(tail.s))
	sb.WriteString(head.s)
	sb.WriteString(pb.s)
	sb.WriteString(tail.s)
	return plainLine{s: sb.String(), n: head.n + pb.n + tail.n}
}

func (f *PlainFactory) newBackend() backend {
	return newArrayLines[plainLine](f.opts.blockSize)
}
