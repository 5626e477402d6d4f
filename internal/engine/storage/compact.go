package storage

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	gencoding "github.com/gdamore/encoding"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/dshills/linecore/internal/engine/gapbuf"
)

// CompactFactory creates storages that keep the whole document as UTF-8
// bytes in a line-indexed gap buffer. Original line endings and a leading
// byte order mark survive a load and ExportPreserving round trip.
//
// Lines may not contain line break characters.
type CompactFactory struct {
	base
}

// NewCompactFactory creates a compact factory.
func NewCompactFactory(opts ...Option) *CompactFactory {
	f := &CompactFactory{}
	f.base = newBase(f, KindCompact, opts)
	return f
}

func (f *CompactFactory) PreservesLineEndings() bool { return true }

// PermitsEncoding accepts UTF-8 and single-byte encodings that are ASCII
// compatible, so that line breaks survive transcoding byte for byte.
func (f *CompactFactory) PermitsEncoding(enc encoding.Encoding) bool {
	switch e := enc.(type) {
	case nil:
		return true
	case *charmap.Charmap:
		return e != charmap.CodePage037 && e != charmap.CodePage1047 && e != charmap.CodePage1140
	case *gencoding.Charmap:
		return enc != gencoding.EBCDIC
	}
	return isUTF8(enc)
}

func isUTF8(enc encoding.Encoding) bool {
	return enc == nil || enc == unicode.UTF8 || enc == unicode.UTF8BOM || enc == gencoding.UTF8
}

func (f *CompactFactory) lineOptions() []gapbuf.LineOption {
	return []gapbuf.LineOption{
		gapbuf.WithSparseness(f.opts.sparseness),
		gapbuf.WithLineEnding(f.opts.eol.Sequence()),
	}
}

// FromString loads text keeping its own line breaks. eol is ignored: every
// "\n", "\r\n" and "\r" in text ends a line.
func (f *CompactFactory) FromString(text, _ string) *Storage {
	s, _, err := f.FromStream(strings.NewReader(text), nil)
	if err != nil {
		panic(err)
	}
	return s
}

// FromStream transcodes r to UTF-8 when enc is a single-byte encoding and
// loads it into a gap buffer.
func (f *CompactFactory) FromStream(r io.Reader, enc encoding.Encoding) (*Storage, LineEndingInfo, error) {
	if !f.PermitsEncoding(enc) {
		return nil, LineEndingInfo{}, fmt.Errorf("%s storage: %w", f.kind, ErrEncodingNotPermitted)
	}
	if !isUTF8(enc) {
		r = transform.NewReader(r, enc.NewDecoder())
	}
	buf, counts, err := gapbuf.Load(r, f.lineOptions()...)
	if err != nil {
		return nil, LineEndingInfo{}, fmt.Errorf("%s storage: %w", f.kind, err)
	}
	info := LineEndingInfo(counts)
	f.opts.logger.Debug("loaded storage", "backend", f.kind, "lines", buf.Count(),
		"bytes", buf.Size(), "segments", buf.SegmentCount(), "bom", buf.HasBOM())
	return newStorage(f, &compactLines{buf: buf}), info, nil
}

type compactLine struct {
	b []byte
	n int
}

// newCompactLine takes ownership of p.
func newCompactLine(p []byte) compactLine {
	return compactLine{b: p, n: utf8.RuneCount(p)}
}

func (l compactLine) Len() int { return l.n }
func (l compactLine) Decode() DecodedLine { return newRuneLine(bytes.Runes(l.b)) }

// Encode copies s into a UTF-8 line. s must be valid UTF-8.
func (f *CompactFactory) Encode(s string) TextLine { return newCompactLine([]byte(s)) }

// EncodeBytes copies p into a UTF-8 line. p must be valid UTF-8.
func (f *CompactFactory) EncodeBytes(p []byte) TextLine {
	return newCompactLine(bytes.Clone(p))
}

// EncodeRunes encodes r as UTF-8.
func (f *CompactFactory) EncodeRunes(r []rune) TextLine {
	p := make([]byte, 0, len(r))
	for _, c := range r {
		p = utf8.AppendRune(p, c)
	}
	return compactLine{b: p, n: len(r)}
}

// Ensure returns compact lines as they are and re-encodes anything else.
func (f *CompactFactory) Ensure(l TextLine) TextLine {
	if cl, ok := l.(compactLine); ok {
		return cl
	}
	d := l.Decode()
	defer d.Release()
	return f.EncodeRunes(d.Runes())
}

// Substring shares the bytes of compact lines instead of copying them.
func (f *CompactFactory) Substring(l TextLine, offset, count int) TextLine {
	cl, ok := l.(compactLine)
	if !ok {
		return f.base.Substring(l, offset, count)
	}
	checkSpan(offset, count, cl.n)
	start := runeOffset(cl.b, offset)
	end := start + runeOffset(cl.b[start:], count)
	return compactLine{b: cl.b[start:end:end], n: count}
}

// Combine joins compact lines byte for byte and falls back to decoding for
// lines of other backends.
func (f *CompactFactory) Combine(a TextLine, offA, countA int, b, c TextLine, offC, countC int) TextLine {
	ca, okA := a.(compactLine)
	cc, okC := c.(compactLine)
	cb, okB := b.(compactLine)
	if !okA || !okC || (b != nil && !okB) {
		return f.base.Combine(a, offA, countA, b, c, offC, countC)
	}
	head := f.Substring(ca, offA, countA).(compactLine)
	tail := f.Substring(cc, offC, countC).(compactLine)

	p := make([]byte, 0, len(head.b)+len(cb.b)+len(tail.b))
	p = append(p, head.b...)
	p = append(p, cb.b...)
	p = append(p, tail.b...)
	return compactLine{b: p, n: head.n + cb.n + tail.n}
}

func (f *CompactFactory) newBackend() backend {
	return &compactLines{buf: gapbuf.NewLineBuffer(f.lineOptions()...)}
}

type compactLines struct {
	buf *gapbuf.LineBuffer
}

func asCompact(l TextLine) compactLine {
	cl, ok := l.(compactLine)
	if !ok {
		panic(fmt.Errorf("storage: %T in compact storage: %w", l, ErrBackendMismatch))
	}
	return cl
}

func (c *compactLines) count() int { return c.buf.Count() }

func (c *compactLines) line(i int) TextLine {
	return newCompactLine(c.buf.Line(i))
}

func (c *compactLines) set(i int, l TextLine) {
	c.buf.SetLine(i, asCompact(l).b)
}

func (c *compactLines) insert(i int, lines ...TextLine) {
	for j, l := range lines {
		c.buf.InsertLine(i+j, asCompact(l).b)
	}
}

func (c *compactLines) remove(i, n int) {
	for range n {
		c.buf.RemoveLine(i)
	}
}

func (c *compactLines) reset() { c.buf.Clear() }

// cloneSection copies the whole lines strictly inside r in one block, then
// patches the partial first and last lines.
func (c *compactLines) cloneSection(r Range) backend {
	sec := c.buf.Section(r.Start.Line+1, r.End.Line-r.Start.Line-1)
	first := c.buf.Line(r.Start.Line)
	sec.InsertLine(0, first[runeOffset(first, r.Start.Column):])
	last := c.buf.Line(r.End.Line)
	sec.SetLine(sec.Count()-1, last[:runeOffset(last, r.End.Column)])
	return &compactLines{buf: sec}
}

func (c *compactLines) writeRaw(w io.Writer) (int64, error) {
	return c.buf.WriteTo(w)
}

func (c *compactLines) validate() error {
	return c.buf.Validate()
}

func (c *compactLines) describe(d *Diagnostics) {
	d.Bytes = c.buf.Size()
	d.Segments = c.buf.SegmentCount()
	d.BOM = c.buf.HasBOM()
}
