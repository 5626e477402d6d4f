// Package gapbuf implements gap buffers for the compact text backend.
//
// Buffer is a plain byte gap buffer: edits near the gap are cheap and moving
// the gap costs a copy proportional to the distance moved. LineBuffer layers
// line addressing on top of it with a skip map, keeping the whole document as
// a single UTF-8 byte sequence with its original line endings.
package gapbuf

import (
	"bytes"
	"fmt"
	"io"
)

const minGap = 64

// Buffer is a byte gap buffer. The zero value is an empty buffer.
type Buffer struct {
	data     []byte
	gapStart int
	gapEnd   int
}

// NewBuffer creates a buffer holding a copy of p.
func NewBuffer(p []byte) *Buffer {
	b := &Buffer{}
	b.Reset(p)
	return b
}

// Reset replaces the contents with a copy of p.
func (b *Buffer) Reset(p []byte) {
	gap := max(minGap, len(p)/8)
	b.data = make([]byte, len(p)+gap)
	copy(b.data, p)
	b.gapStart = len(p)
	b.gapEnd = len(b.data)
}

// Len returns the number of bytes stored.
func (b *Buffer) Len() int {
	return len(b.data) - (b.gapEnd - b.gapStart)
}

// At returns the byte at position i.
func (b *Buffer) At(i int) byte {
	if i < 0 || i >= b.Len() {
		panic(fmt.Sprintf("gapbuf: index %d out of range [0,%d)", i, b.Len()))
	}
	if i < b.gapStart {
		return b.data[i]
	}
	return b.data[i+b.gapEnd-b.gapStart]
}

// Insert inserts p at position pos.
func (b *Buffer) Insert(pos int, p []byte) {
	b.checkRange(pos, 0)
	if len(p) == 0 {
		return
	}
	b.moveGap(pos)
	b.ensureGap(len(p))
	copy(b.data[b.gapStart:], p)
	b.gapStart += len(p)
}

// Delete removes n bytes starting at pos.
func (b *Buffer) Delete(pos, n int) {
	b.checkRange(pos, n)
	if n == 0 {
		return
	}
	b.moveGap(pos)
	b.gapEnd += n
}

// Replace replaces n bytes at pos with p.
func (b *Buffer) Replace(pos, n int, p []byte) {
	b.Delete(pos, n)
	b.Insert(pos, p)
}

// Slice returns a copy of n bytes starting at pos.
func (b *Buffer) Slice(pos, n int) []byte {
	return b.AppendTo(make([]byte, 0, n), pos, n)
}

// AppendTo appends n bytes starting at pos to dst.
func (b *Buffer) AppendTo(dst []byte, pos, n int) []byte {
	b.checkRange(pos, n)
	first, second := b.spans(pos, pos+n)
	dst = append(dst, first...)
	return append(dst, second...)
}

// IndexAny returns the position of the first byte in [from, to) that is one
// of chars, or -1.
func (b *Buffer) IndexAny(from, to int, chars string) int {
	b.checkRange(from, to-from)
	first, second := b.spans(from, to)
	if i := bytes.IndexAny(first, chars); i >= 0 {
		return from + i
	}
	if i := bytes.IndexAny(second, chars); i >= 0 {
		return from + len(first) + i
	}
	return -1
}

// LastIndexAny returns the position of the last byte in [from, to) that is
// one of chars, or -1.
func (b *Buffer) LastIndexAny(from, to int, chars string) int {
	b.checkRange(from, to-from)
	first, second := b.spans(from, to)
	if i := bytes.LastIndexAny(second, chars); i >= 0 {
		return from + len(first) + i
	}
	if i := bytes.LastIndexAny(first, chars); i >= 0 {
		return from + i
	}
	return -1
}

// WriteRange writes the bytes in [from, to) to w.
func (b *Buffer) WriteRange(w io.Writer, from, to int) (int64, error) {
	b.checkRange(from, to-from)
	first, second := b.spans(from, to)
	n1, err := w.Write(first)
	if err != nil {
		return int64(n1), err
	}
	n2, err := w.Write(second)
	return int64(n1 + n2), err
}

// WriteTo writes the whole buffer to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	return b.WriteRange(w, 0, b.Len())
}

// spans returns the logical range [from, to) as at most two slices of the
// backing array, split at the gap.
func (b *Buffer) spans(from, to int) (first, second []byte) {
	gap := b.gapEnd - b.gapStart
	switch {
	case to <= b.gapStart:
		return b.data[from:to], nil
	case from >= b.gapStart:
		return b.data[from+gap : to+gap], nil
	default:
		return b.data[from:b.gapStart], b.data[b.gapEnd : to+gap]
	}
}

func (b *Buffer) moveGap(pos int) {
	switch {
	case pos < b.gapStart:
		n := b.gapStart - pos
		copy(b.data[b.gapEnd-n:b.gapEnd], b.data[pos:b.gapStart])
		b.gapStart -= n
		b.gapEnd -= n
	case pos > b.gapStart:
		n := pos - b.gapStart
		copy(b.data[b.gapStart:b.gapStart+n], b.data[b.gapEnd:b.gapEnd+n])
		b.gapStart += n
		b.gapEnd += n
	}
}

// ensureGap grows the gap to at least n bytes. Capacity doubles so that
// repeated inserts stay amortized O(1).
func (b *Buffer) ensureGap(n int) {
	if b.gapEnd-b.gapStart >= n {
		return
	}
	size := b.Len()
	newCap := max(2*len(b.data), size+n+minGap)
	data := make([]byte, newCap)
	copy(data, b.data[:b.gapStart])
	tail := len(b.data) - b.gapEnd
	copy(data[newCap-tail:], b.data[b.gapEnd:])
	b.data = data
	b.gapEnd = newCap - tail
}

func (b *Buffer) checkRange(pos, n int) {
	if pos < 0 || n < 0 || pos+n > b.Len() {
		panic(fmt.Sprintf("gapbuf: range [%d,%d) out of range [0,%d]", pos, pos+n, b.Len()))
	}
}
