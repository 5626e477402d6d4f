package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/dshills/linecore/internal/engine/fragment"
	"github.com/dshills/linecore/internal/engine/skipmap"
)

// Kind names a storage backend.
type Kind string

const (
	KindPlain    Kind = "plain"
	KindCompact  Kind = "compact"
	KindHardened Kind = "hardened"
)

// Kinds lists every backend kind.
var Kinds = []Kind{KindPlain, KindCompact, KindHardened}

// ParseKind resolves a backend name.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case KindPlain, KindCompact, KindHardened:
		return k, nil
	case "":
		return KindPlain, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, name)
}

// Factory creates storages of one backend and converts lines into its
// representation. The set of implementations is closed.
type Factory interface {
	Kind() Kind

	// PreservesLineEndings reports whether storages keep the original line
	// terminators of loaded text, making ExportPreserving available.
	PreservesLineEndings() bool

	// PermitsEncoding reports whether FromStream accepts enc. nil means UTF-8.
	PermitsEncoding(enc encoding.Encoding) bool

	// Hardened reports whether lines are kept encrypted in memory.
	Hardened() bool

	New() *Storage
	Copy(src TextStorage) *Storage
	Take(src *Storage) *Storage
	FromString(text, eol string) *Storage
	FromReader(r io.Reader) (*Storage, error)
	FromStream(r io.Reader, enc encoding.Encoding) (*Storage, LineEndingInfo, error)

	// Encode, EncodeRunes and EncodeBytes convert one line of text into the
	// backend's form. Text must be valid UTF-8 without line breaks. An
	// invalid byte counts as one rune and decodes as U+FFFD, so only valid
	// text survives an encode and decode round trip unchanged.
	Encode(s string) TextLine
	EncodeRunes(r []rune) TextLine
	EncodeBytes(p []byte) TextLine

	// NewDecoded wraps a copy of r as a decoded line of this backend.
	NewDecoded(r []rune) DecodedLine

	// Ensure returns l in this backend's form, converting it when it came
	// from another backend.
	Ensure(l TextLine) TextLine

	// Substring returns count runes of l starting at offset.
	Substring(l TextLine, offset, count int) TextLine

	// Combine joins runes [offA, offA+countA) of a, all of b and runes
	// [offC, offC+countC) of c into one line. b may be nil.
	Combine(a TextLine, offA, countA int, b, c TextLine, offC, countC int) TextLine

	newBackend() backend
}

// Option configures a Factory.
type Option func(*options)

type options struct {
	logger     *log.Logger
	sparseness int
	blockSize  int
	eol        LineEnding
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSparseness sets the skip map sparseness of the compact backend.
func WithSparseness(n int) Option {
	return func(o *options) {
		o.sparseness = n
	}
}

// WithBlockSize sets the fragment block size of the plain and hardened
// backends. n must be a power of two.
func WithBlockSize(n int) Option {
	return func(o *options) {
		o.blockSize = n
	}
}

// WithLineEnding sets the terminator the compact backend writes after lines
// it inserts. Loaded lines keep their own.
func WithLineEnding(le LineEnding) Option {
	return func(o *options) {
		o.eol = le
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:     log.New(io.Discard),
		sparseness: skipmap.DefaultSparseness,
		blockSize:  fragment.DefaultBlockSize,
		eol:        LineEndingLF,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewFactory returns the factory for kind.
func NewFactory(kind Kind, opts ...Option) (Factory, error) {
	switch kind {
	case KindPlain, "":
		return NewPlainFactory(opts...), nil
	case KindCompact:
		return NewCompactFactory(opts...), nil
	case KindHardened:
		f, err := NewHardenedFactory(opts...)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
}

// base carries the construction logic shared by every factory. self is the
// embedding factory, so overridden methods are honored.
type base struct {
	self Factory
	kind Kind
	opts options
}

func newBase(self Factory, kind Kind, opts []Option) base {
	return base{self: self, kind: kind, opts: buildOptions(opts)}
}

func (b *base) Kind() Kind { return b.kind }
func (b *base) PreservesLineEndings() bool { return false }
func (b *base) Hardened() bool { return false }

func (b *base) PermitsEncoding(encoding.Encoding) bool { return true }

// New returns a storage holding one empty line.
func (b *base) New() *Storage {
	return newStorage(b.self, b.self.newBackend())
}

// Copy returns a storage holding the lines of src in this factory's
// representation.
func (b *base) Copy(src TextStorage) *Storage {
	n := src.Len()
	if n == 0 {
		panic(fmt.Errorf("storage: copy: %w", ErrTaken))
	}
	out := b.New()
	out.lines.set(0, b.self.Ensure(src.Line(0)))
	batch := make([]TextLine, 0, min(insertBlock, n-1))
	for i := 1; i < n; i++ {
		batch = append(batch, b.self.Ensure(src.Line(i)))
		if len(batch) == insertBlock {
			out.lines.insert(out.lines.count(), batch...)
			batch = batch[:0]
		}
	}
	out.lines.insert(out.lines.count(), batch...)
	return out
}

// Take moves the line container of src into a new storage. src is left
// with no lines and must only be discarded.
func (b *base) Take(src *Storage) *Storage {
	if src.lines == nil {
		panic(fmt.Errorf("storage: take: %w", ErrTaken))
	}
	if !b.accepts(src.factory) {
		panic(fmt.Errorf("storage: take %s storage into %s: %w", src.factory.Kind(), b.kind, ErrBackendMismatch))
	}
	out := &Storage{factory: b.self, lines: src.lines, modified: src.modified}
	src.lines = nil
	return out
}

// accepts reports whether lines made by f can be used by this factory
// without conversion.
func (b *base) accepts(f Factory) bool {
	if f == b.self {
		return true
	}
	return f.Kind() == b.kind && !b.self.Hardened()
}

// FromString splits text on eol. An empty eol yields a single line, and a
// trailing eol yields a trailing empty line.
func (b *base) FromString(text, eol string) *Storage {
	var parts []string
	if eol == "" {
		parts = []string{text}
	} else {
		parts = strings.Split(text, eol)
	}
	out := b.New()
	out.lines.set(0, b.self.Encode(parts[0]))
	batch := make([]TextLine, 0, min(insertBlock, len(parts)-1))
	for _, p := range parts[1:] {
		batch = append(batch, b.self.Encode(p))
		if len(batch) == insertBlock {
			out.lines.insert(out.lines.count(), batch...)
			batch = batch[:0]
		}
	}
	out.lines.insert(out.lines.count(), batch...)
	return out
}

// FromReader reads UTF-8 lines from r the way a line reader does: "\n",
// "\r\n" and "\r" end a line, and a final terminator does not start an
// extra empty line.
func (b *base) FromReader(r io.Reader) (*Storage, error) {
	out, info, err := b.split(r)
	if err != nil {
		return nil, err
	}
	if n := out.lines.count(); n > 1 && info.Total() > 0 && out.lines.line(n-1).Len() == 0 {
		out.lines.remove(n-1, 1)
	}
	return out, nil
}

// FromStream decodes r with enc and splits it into lines, counting each
// kind of terminator. A nil enc means UTF-8; a leading byte order mark is
// dropped.
func (b *base) FromStream(r io.Reader, enc encoding.Encoding) (*Storage, LineEndingInfo, error) {
	if !b.self.PermitsEncoding(enc) {
		return nil, LineEndingInfo{}, fmt.Errorf("%s storage: %w", b.kind, ErrEncodingNotPermitted)
	}
	if enc == nil || enc == unicode.UTF8 {
		enc = unicode.UTF8BOM
	}
	out, info, err := b.split(transform.NewReader(r, enc.NewDecoder()))
	if err != nil {
		return nil, info, err
	}
	b.opts.logger.Debug("loaded storage", "backend", b.kind, "lines", out.Len(),
		"unix", info.Unix, "windows", info.Windows, "mac", info.Macintosh)
	return out, info, nil
}

// split reads UTF-8 from r and breaks it into lines. The read buffer and
// the line accumulator are wiped before returning.
func (b *base) split(r io.Reader) (*Storage, LineEndingInfo, error) {
	var info LineEndingInfo
	out := b.New()
	buf := make([]byte, 32<<10)
	line := make([]byte, 0, 256)
	defer func() {
		clear(buf)
		clear(line[:cap(line)])
	}()

	first := true
	batch := make([]TextLine, 0, 64)
	emit := func() {
		l := b.self.EncodeBytes(line)
		clear(line)
		line = line[:0]
		if first {
			out.lines.set(0, l)
			first = false
			return
		}
		batch = append(batch, l)
		if len(batch) == insertBlock {
			out.lines.insert(out.lines.count(), batch...)
			batch = batch[:0]
		}
	}

	pendingCR := false
	for {
		n, err := r.Read(buf)
		for _, c := range buf[:n] {
			if pendingCR {
				pendingCR = false
				if c == '\n' {
					info.Windows++
					emit()
					continue
				}
				info.Macintosh++
				emit()
			}
			switch c {
			case '\r':
				pendingCR = true
			case '\n':
				info.Unix++
				emit()
			default:
				line = append(line, c)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, info, fmt.Errorf("read %s storage: %w", b.kind, err)
		}
	}
	if pendingCR {
		info.Macintosh++
		emit()
	}
	emit()
	out.lines.insert(out.lines.count(), batch...)
	return out, info, nil
}

// NewDecoded returns a decoded view of a copy of r.
func (b *base) NewDecoded(r []rune) DecodedLine {
	return newRuneLine(append([]rune(nil), r...))
}

// Substring returns count runes of l starting at offset, through the
// decode and re-encode path.
func (b *base) Substring(l TextLine, offset, count int) TextLine {
	checkSpan(offset, count, l.Len())
	d := l.Decode()
	defer d.Release()
	return b.self.EncodeRunes(d.Runes()[offset : offset+count])
}

// Combine joins a span of a, all of b (which may be nil) and a span of c
// into a new line, through the decode and re-encode path.
func (b *base) Combine(a TextLine, offA, countA int, mid, c TextLine, offC, countC int) TextLine {
	runes := spliceRunes(a, offA, countA, mid, c, offC, countC)
	defer clear(runes)
	return b.self.EncodeRunes(runes)
}
