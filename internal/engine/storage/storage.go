package storage

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// insertBlock is the number of lines InsertSection hands to a backend at a
// time.
const insertBlock = 4096

const writeChunk = 32 << 10

// TextStorage is the editing surface shared by every backend.
type TextStorage interface {
	Len() int
	Line(i int) TextLine
	Modified() bool
	SetModified(modified bool)
	Empty() bool
	Text(eol string) string
	CloneSection(r Range) (*Storage, error)
	DeleteSection(r Range) error
	InsertSection(at Position, insert TextStorage) error
	WriteText(w io.Writer, eol string) (int64, error)
	Export(w io.Writer, enc encoding.Encoding, eol string) (int64, error)
	Factory() Factory
}

// backend is the line container behind a Storage. Lines handed to set and
// insert have already been passed through the owning factory's Ensure.
type backend interface {
	count() int
	line(i int) TextLine
	set(i int, l TextLine)
	insert(i int, lines ...TextLine)
	remove(i, n int)
	reset()
}

// sectionCloner is implemented by backends that can clone a multi-line
// section faster than line by line.
type sectionCloner interface {
	cloneSection(r Range) backend
}

// rawWriter is implemented by backends that keep the original bytes of the
// document, line endings included.
type rawWriter interface {
	writeRaw(w io.Writer) (int64, error)
}

type validator interface {
	validate() error
}

type describer interface {
	describe(d *Diagnostics)
}

// Diagnostics summarizes the internal state of a Storage.
type Diagnostics struct {
	Backend  Kind
	Lines    int
	Bytes    int // encoded size, when the backend tracks it
	Segments int // skip map segments, compact only
	BOM      bool
}

// Storage is an ordered list of at least one line.
type Storage struct {
	factory  Factory
	lines    backend
	modified bool
}

var _ TextStorage = (*Storage)(nil)

func newStorage(f Factory, b backend) *Storage {
	return &Storage{factory: f, lines: b}
}

func (s *Storage) backend() backend {
	if s.lines == nil {
		panic(fmt.Errorf("storage: %w", ErrTaken))
	}
	return s.lines
}

// Factory returns the factory that created s.
func (s *Storage) Factory() Factory {
	return s.factory
}

// Len returns the number of lines. It is at least 1, except for a storage
// whose contents were taken, which has none.
func (s *Storage) Len() int {
	if s.lines == nil {
		return 0
	}
	return s.lines.count()
}

// Line returns line i. It panics if i is out of range.
func (s *Storage) Line(i int) TextLine {
	b := s.backend()
	if i < 0 || i >= b.count() {
		panic(fmt.Errorf("storage: line %d of %d: %w", i, b.count(), ErrLineOutOfRange))
	}
	return b.line(i)
}

// Modified reports whether s was edited since it was created or the flag
// was last cleared.
func (s *Storage) Modified() bool {
	return s.modified
}

// SetModified sets the modified flag.
func (s *Storage) SetModified(modified bool) {
	s.modified = modified
}

// Empty reports whether s holds a single empty line.
func (s *Storage) Empty() bool {
	b := s.backend()
	return b.count() == 1 && b.line(0).Len() == 0
}

// Text joins all lines with eol.
func (s *Storage) Text(eol string) string {
	var sb strings.Builder
	_, _ = s.WriteText(&sb, eol)
	return sb.String()
}

// Validate runs the backend's internal consistency checks, if it has any.
func (s *Storage) Validate() error {
	if v, ok := s.backend().(validator); ok {
		return v.validate()
	}
	return nil
}

// Diagnostics reports the internal state of s.
func (s *Storage) Diagnostics() Diagnostics {
	d := Diagnostics{Backend: s.factory.Kind(), Lines: s.Len()}
	if desc, ok := s.backend().(describer); ok {
		desc.describe(&d)
	}
	return d
}

// checkRange validates r against the current contents: line indices first,
// then ordering, then columns.
func (s *Storage) checkRange(r Range) error {
	n := s.backend().count()
	if r.Start.Line < 0 || r.Start.Line >= n || r.End.Line < 0 || r.End.Line >= n {
		return ErrLineOutOfRange
	}
	if !r.IsValid() {
		return ErrRangeInvalid
	}
	if r.Start.Column < 0 || r.Start.Column > s.lines.line(r.Start.Line).Len() ||
		r.End.Column < 0 || r.End.Column > s.lines.line(r.End.Line).Len() {
		return ErrColumnOutOfRange
	}
	return nil
}

// CloneSection copies the text in r into a new Storage from the same
// factory. The copy is not marked modified.
func (s *Storage) CloneSection(r Range) (*Storage, error) {
	if err := s.checkRange(r); err != nil {
		return nil, fmt.Errorf("clone section %s: %w", r, err)
	}
	f := s.factory
	if !r.IsSingleLine() {
		if c, ok := s.lines.(sectionCloner); ok {
			return newStorage(f, c.cloneSection(r)), nil
		}
	}

	out := f.New()
	first := s.lines.line(r.Start.Line)
	if r.IsSingleLine() {
		out.lines.set(0, f.Substring(first, r.Start.Column, r.End.Column-r.Start.Column))
		return out, nil
	}

	out.lines.set(0, f.Substring(first, r.Start.Column, first.Len()-r.Start.Column))
	batch := make([]TextLine, 0, min(insertBlock, r.End.Line-r.Start.Line-1))
	for i := r.Start.Line + 1; i < r.End.Line; i++ {
		batch = append(batch, s.lines.line(i))
		if len(batch) == insertBlock {
			out.lines.insert(out.lines.count(), batch...)
			batch = batch[:0]
		}
	}
	out.lines.insert(out.lines.count(), batch...)
	last := s.lines.line(r.End.Line)
	out.lines.insert(out.lines.count(), f.Substring(last, 0, r.End.Column))
	return out, nil
}

// DeleteSection removes the text in r, joining its first and last lines.
func (s *Storage) DeleteSection(r Range) error {
	if err := s.checkRange(r); err != nil {
		return fmt.Errorf("delete section %s: %w", r, err)
	}
	if r.IsEmpty() {
		return nil
	}
	f := s.factory
	first := s.lines.line(r.Start.Line)
	last := s.lines.line(r.End.Line)
	joined := f.Combine(first, 0, r.Start.Column, nil, last, r.End.Column, last.Len()-r.End.Column)
	if r.End.Line > r.Start.Line {
		s.lines.remove(r.Start.Line+1, r.End.Line-r.Start.Line)
	}
	s.lines.set(r.Start.Line, joined)
	s.modified = true
	return nil
}

// InsertSection inserts the contents of insert at position at. The first
// line of insert joins the text before at and its last line joins the text
// after it.
func (s *Storage) InsertSection(at Position, insert TextStorage) error {
	b := s.backend()
	if at.Line < 0 || at.Line >= b.count() {
		return fmt.Errorf("insert section at %s: %w", at, ErrLineOutOfRange)
	}
	target := b.line(at.Line)
	if at.Column < 0 || at.Column > target.Len() {
		return fmt.Errorf("insert section at %s: %w", at, ErrColumnOutOfRange)
	}
	if other, ok := insert.(*Storage); ok && other == s {
		insert = s.clone()
	}
	n := insert.Len()
	if n == 0 {
		panic(fmt.Errorf("storage: insert section: %w", ErrTaken))
	}

	f := s.factory
	if n == 1 {
		b.set(at.Line, f.Combine(target, 0, at.Column, insert.Line(0), target, at.Column, target.Len()-at.Column))
		s.modified = true
		return nil
	}

	first := f.Combine(target, 0, at.Column, insert.Line(0), target, 0, 0)
	lastIn := insert.Line(n - 1)
	last := f.Combine(lastIn, 0, lastIn.Len(), nil, target, at.Column, target.Len()-at.Column)
	b.set(at.Line, first)

	next := at.Line + 1
	batch := make([]TextLine, 0, min(insertBlock, n-2))
	for i := 1; i < n-1; i++ {
		batch = append(batch, f.Ensure(insert.Line(i)))
		if len(batch) == insertBlock {
			b.insert(next, batch...)
			next += len(batch)
			batch = batch[:0]
		}
	}
	b.insert(next, batch...)
	next += len(batch)
	b.insert(next, last)
	s.modified = true
	return nil
}

func (s *Storage) clone() *Storage {
	last := s.Len() - 1
	c, err := s.CloneSection(Range{End: Position{Line: last, Column: s.lines.line(last).Len()}})
	if err != nil {
		panic(err)
	}
	return c
}

// WriteText writes the lines of s as UTF-8, separated by eol. Output is
// staged in a buffer that is wiped before returning.
func (s *Storage) WriteText(w io.Writer, eol string) (int64, error) {
	b := s.backend()
	buf := make([]byte, 0, writeChunk)
	defer func() { clear(buf[:cap(buf)]) }()

	var written int64
	flush := func() error {
		n, err := w.Write(buf)
		written += int64(n)
		buf = buf[:0]
		return err
	}
	for i := range b.count() {
		if i > 0 {
			buf = append(buf, eol...)
		}
		d := b.line(i).Decode()
		for _, r := range d.Runes() {
			buf = utf8.AppendRune(buf, r)
		}
		d.Release()
		if len(buf) >= writeChunk {
			if err := flush(); err != nil {
				return written, err
			}
		}
	}
	if len(buf) > 0 {
		if err := flush(); err != nil {
			return written, err
		}
	}
	return written, nil
}

// Export writes the lines of s in the given encoding, separated by eol. A
// nil enc means UTF-8. The returned count is the number of encoded bytes
// written to w.
func (s *Storage) Export(w io.Writer, enc encoding.Encoding, eol string) (int64, error) {
	if enc == nil {
		enc = unicode.UTF8
	}
	cw := &countingWriter{w: w}
	tw := transform.NewWriter(cw, enc.NewEncoder())
	if _, err := s.WriteText(tw, eol); err != nil {
		return cw.n, err
	}
	if err := tw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// ExportPreserving writes s with the line endings it was loaded with. Only
// backends that record them support it; the others return ErrNotPreserving.
func (s *Storage) ExportPreserving(w io.Writer, enc encoding.Encoding) (int64, error) {
	raw, ok := s.backend().(rawWriter)
	if !ok {
		return 0, fmt.Errorf("export %s storage: %w", s.factory.Kind(), ErrNotPreserving)
	}
	if enc == nil || enc == unicode.UTF8 {
		return raw.writeRaw(w)
	}
	cw := &countingWriter{w: w}
	tw := transform.NewWriter(cw, enc.NewEncoder())
	if _, err := raw.writeRaw(tw); err != nil {
		return cw.n, err
	}
	if err := tw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
