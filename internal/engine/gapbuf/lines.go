package gapbuf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dshills/linecore/internal/engine/skipmap"
)

// Errors reported by LineBuffer.
var (
	// ErrLineBreak indicates line content containing CR or LF. It is raised
	// by panicking.
	ErrLineBreak = errors.New("gapbuf: line content contains a line break")

	// ErrLastLine indicates an attempt to remove the only line. It is raised
	// by panicking.
	ErrLastLine = errors.New("gapbuf: cannot remove the only line")

	// ErrCorrupt is returned by Validate when the buffer and its index
	// disagree.
	ErrCorrupt = errors.New("gapbuf: corrupt line buffer")
)

const lineBreakChars = "\r\n"

var (
	sentinel = []byte("\r\n")
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	lf       = []byte("\n")
)

// EndingCounts tallies the line terminators seen while loading.
type EndingCounts struct {
	Unix      int // "\n"
	Windows   int // "\r\n"
	Macintosh int // lone "\r"
}

// LineOption configures a LineBuffer.
type LineOption func(*LineBuffer)

// WithSparseness sets the skip map segment size.
func WithSparseness(n int) LineOption {
	return func(lb *LineBuffer) {
		if n > 1 {
			lb.sparseness = n
		}
	}
}

// WithLineEnding sets the terminator given to lines created by InsertLine.
// It must be "\n", "\r\n" or "\r".
func WithLineEnding(ending string) LineOption {
	return func(lb *LineBuffer) {
		switch ending {
		case "\n", "\r\n", "\r":
			lb.ending = []byte(ending)
		}
	}
}

// WithValidation makes every edit run Validate and panic on failure. It is
// meant for tests.
func WithValidation() LineOption {
	return func(lb *LineBuffer) {
		lb.validate = true
	}
}

// LineBuffer stores a document as one UTF-8 byte sequence. Each line owns its
// body and its terminator. The sequence is framed by a "\r\n" prefix and a
// "\r\n" suffix that the last line uses as its terminator, so every line start
// is preceded by a line break and every line ends with one. An optional
// byte-order mark sits in front of the prefix.
//
// A cursor remembers the start of the most recently addressed line, which
// makes sequential access cheap; the skip map bounds the cost of random
// access to one segment scan.
type LineBuffer struct {
	buf   Buffer
	skip  *skipmap.Map
	lines int

	curLine int
	curOff  int

	bomLen    int
	prefixLen int
	suffixLen int

	ending     []byte
	sparseness int
	validate   bool
}

// NewLineBuffer creates a buffer holding a single empty line.
func NewLineBuffer(opts ...LineOption) *LineBuffer {
	lb := newLineBuffer(opts)
	lb.Clear()
	return lb
}

func newLineBuffer(opts []LineOption) *LineBuffer {
	lb := &LineBuffer{
		ending:     lf,
		sparseness: skipmap.DefaultSparseness,
	}
	for _, opt := range opts {
		opt(lb)
	}
	lb.skip = skipmap.New(skipmap.WithSparseness(lb.sparseness))
	return lb
}

// Load reads UTF-8 text from r into a new buffer, keeping its line endings
// and a leading byte-order mark.
func Load(r io.Reader, opts ...LineOption) (*LineBuffer, EndingCounts, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, EndingCounts{}, fmt.Errorf("read text: %w", err)
	}
	lb := newLineBuffer(opts)
	counts := lb.load(data, true)
	return lb, counts, nil
}

func (lb *LineBuffer) load(data []byte, detectBOM bool) EndingCounts {
	lb.bomLen = 0
	if detectBOM && bytes.HasPrefix(data, utf8BOM) {
		lb.bomLen = len(utf8BOM)
	}
	body := data[lb.bomLen:]

	lb.prefixLen = lb.bomLen + len(sentinel)
	lb.suffixLen = len(sentinel)
	framed := make([]byte, 0, lb.prefixLen+len(body)+lb.suffixLen)
	framed = append(framed, data[:lb.bomLen]...)
	framed = append(framed, sentinel...)
	framed = append(framed, body...)
	framed = append(framed, sentinel...)
	lb.buf.Reset(framed)
	lb.skip.Reset(lb.prefixLen, lb.suffixLen)

	var counts EndingCounts
	terminated := 0
	segStart, segLines, segOff, segChars := 0, 0, lb.prefixLen, 0
	lb.lines = 0

	for off := 0; off < len(body); {
		next := len(body)
		if i := bytes.IndexAny(body[off:], lineBreakChars); i >= 0 {
			brk := off + i
			terminated++
			switch {
			case body[brk] == '\n':
				counts.Unix++
				next = brk + 1
			case brk+1 < len(body) && body[brk+1] == '\n':
				counts.Windows++
				next = brk + 2
			default:
				counts.Macintosh++
				next = brk + 1
			}
		}

		segLines++
		segChars += next - off
		lb.lines++
		if segLines == lb.sparseness {
			lb.skip.BulkLinesInserted(segStart, segLines, segOff, segChars)
			segStart += segLines
			segOff += segChars
			segLines, segChars = 0, 0
		}
		off = next
	}
	if segLines > 0 {
		lb.skip.BulkLinesInserted(segStart, segLines, segOff, segChars)
	}

	if terminated == lb.lines {
		// The text ends with a line break (or is empty), so the empty line
		// framed by the suffix is a real line.
		lb.lines++
	} else {
		// The last line is unterminated and takes the suffix as its own
		// terminator.
		lb.skip.LineRemoved(lb.lines, lb.suffixLen, nil)
		lb.skip.LineLengthChanged(lb.lines-1, lb.suffixLen)
	}

	lb.curLine = 0
	lb.curOff = lb.prefixLen
	lb.check()
	return counts
}

// Clear resets the buffer to a single empty line without a byte-order mark.
func (lb *LineBuffer) Clear() {
	lb.bomLen = 0
	lb.prefixLen = len(sentinel)
	lb.suffixLen = len(sentinel)
	lb.buf.Reset(append(append([]byte{}, sentinel...), sentinel...))
	lb.lines = 1
	lb.curLine = 0
	lb.curOff = lb.prefixLen
	lb.skip.Reset(lb.prefixLen, lb.suffixLen)
	lb.check()
}

// Count returns the number of lines. It is always at least one.
func (lb *LineBuffer) Count() int {
	return lb.lines
}

// Size returns the number of text bytes, including the byte-order mark and
// every line terminator except the final one.
func (lb *LineBuffer) Size() int {
	return lb.buf.Len() - lb.prefixLen - lb.suffixLen + lb.bomLen
}

// HasBOM reports whether the text started with a UTF-8 byte-order mark.
func (lb *LineBuffer) HasBOM() bool {
	return lb.bomLen > 0
}

// SegmentCount returns the number of skip map segments.
func (lb *LineBuffer) SegmentCount() int {
	return lb.skip.SegmentCount()
}

// Line returns a copy of the body of line i.
func (lb *LineBuffer) Line(i int) []byte {
	return lb.AppendLine(nil, i)
}

// AppendLine appends the body of line i to dst.
func (lb *LineBuffer) AppendLine(dst []byte, i int) []byte {
	lb.checkLine(i)
	lb.moveTo(i)
	body, _ := lb.extentAt(lb.curOff)
	return lb.buf.AppendTo(dst, lb.curOff, body)
}

// LineLen returns the length in bytes of the body of line i.
func (lb *LineBuffer) LineLen(i int) int {
	lb.checkLine(i)
	lb.moveTo(i)
	body, _ := lb.extentAt(lb.curOff)
	return body
}

// SetLine replaces the body of line i, keeping its terminator.
func (lb *LineBuffer) SetLine(i int, p []byte) {
	checkBody(p)
	lb.checkLine(i)
	lb.moveTo(i)
	off := lb.curOff
	body, _ := lb.extentAt(off)
	lb.buf.Replace(off, body, p)
	lb.skip.LineLengthChanged(i, len(p)-body)
	if len(p) == 0 && lb.splitFused(i-1, off) {
		lb.curOff++
	}
	lb.check()
}

// InsertLine inserts a new line with body p in front of line i. i may equal
// Count to append.
func (lb *LineBuffer) InsertLine(i int, p []byte) {
	checkBody(p)
	if i < 0 || i > lb.lines {
		panic(fmt.Sprintf("gapbuf: insert line %d out of range [0,%d]", i, lb.lines))
	}
	lb.moveTo(i)
	off := lb.curOff

	var added int
	if i == lb.lines {
		// The old last line gives up the suffix for a real terminator and
		// the new line takes the suffix over.
		if lb.ending[0] == '\n' && lb.buf.At(off-lb.suffixLen-1) == '\r' {
			// The old last line is empty and follows a lone "\r" that our
			// "\n" would fuse with.
			lb.buf.Insert(off-lb.suffixLen, lf)
			lb.skip.LineLengthChanged(i-2, 1)
			off++
		}
		delta := len(lb.ending) - lb.suffixLen
		lb.buf.Replace(off-lb.suffixLen, lb.suffixLen, lb.ending)
		lb.skip.LineLengthChanged(i-1, delta)
		off += delta
		lb.buf.Insert(off, p)
		lb.buf.Insert(off+len(p), sentinel)
		added = len(p) + lb.suffixLen
	} else {
		end := lb.ending
		if len(p) == 0 && end[0] == '\n' && lb.buf.At(off-1) == '\r' {
			// Keep the previous lone "\r" from fusing with our "\n".
			lb.buf.Insert(off, lf)
			lb.skip.LineLengthChanged(i-1, 1)
			off++
		}
		if end[len(end)-1] == '\r' && lb.buf.At(off) == '\n' {
			end = sentinel
		}
		lb.buf.Insert(off, p)
		lb.buf.Insert(off+len(p), end)
		added = len(p) + len(end)
	}

	lb.curLine, lb.curOff = i, off
	lb.skip.LineInserted(i, added, lb.offsetsFrom(i, off))
	lb.lines++
	lb.check()
}

// RemoveLine removes line i and its terminator.
func (lb *LineBuffer) RemoveLine(i int) {
	if lb.lines == 1 {
		panic(ErrLastLine)
	}
	lb.checkLine(i)
	lb.moveTo(i)
	off := lb.curOff
	body, end := lb.extentAt(off)

	if i == lb.lines-1 {
		// The last line owns the suffix. Remove the previous terminator and
		// this body instead so the suffix stays in place.
		brk := lb.startOfBreak(off - 1)
		prevEnd := off - brk
		lb.buf.Delete(brk, prevEnd+body)
		lb.skip.LineLengthChanged(i-1, lb.suffixLen-prevEnd)
		lb.skip.LineRemoved(i, body+lb.suffixLen, nil)
		lb.lines--
		lb.curLine, lb.curOff = lb.lines, brk+lb.suffixLen
		lb.check()
		return
	}

	lb.buf.Delete(off, body+end)
	if lb.splitFused(i-1, off) {
		off++
	}
	lb.lines--
	lb.curLine, lb.curOff = i, off
	lb.skip.LineRemoved(i, body+end, lb.offsetsFrom(i, off))
	lb.check()
}

// Section copies count lines starting at line start into a new buffer. The
// copied lines keep their terminators, so unless the section reaches the last
// line the result has count+1 lines, the last of them empty.
func (lb *LineBuffer) Section(start, count int) *LineBuffer {
	if start < 0 || count < 0 || start+count > lb.lines {
		panic(fmt.Sprintf("gapbuf: section [%d,%d) out of range [0,%d]", start, start+count, lb.lines))
	}
	lb.moveTo(start)
	from := lb.curOff
	_, to := lb.walk(start+count, start, from)
	if start+count == lb.lines {
		to -= lb.suffixLen
	}

	section := &LineBuffer{
		ending:     lb.ending,
		sparseness: lb.sparseness,
		validate:   lb.validate,
		skip:       skipmap.New(skipmap.WithSparseness(lb.sparseness)),
	}
	section.load(lb.buf.Slice(from, to-from), false)
	return section
}

// WriteTo writes the text with its original line endings and byte-order
// mark.
func (lb *LineBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := lb.buf.WriteRange(w, 0, lb.bomLen)
	if err != nil {
		return n, err
	}
	m, err := lb.buf.WriteRange(w, lb.prefixLen, lb.buf.Len()-lb.suffixLen)
	return n + m, err
}

// Validate rescans the whole buffer and checks it against the line count,
// the cursor and the skip map.
func (lb *LineBuffer) Validate() error {
	n := lb.buf.Len()
	if !lb.hasSentinel(lb.prefixLen-len(sentinel)) || !lb.hasSentinel(n-lb.suffixLen) {
		return fmt.Errorf("%w: missing frame", ErrCorrupt)
	}

	var starts []int
	for off := lb.prefixLen; off != n; {
		starts = append(starts, off)
		brk := lb.buf.IndexAny(off, n, lineBreakChars)
		if brk < 0 {
			return fmt.Errorf("%w: unterminated line at %d", ErrCorrupt, off)
		}
		off = lb.afterBreak(brk)
	}
	if len(starts) != lb.lines {
		return fmt.Errorf("%w: scanned %d lines, want %d", ErrCorrupt, len(starts), lb.lines)
	}
	starts = append(starts, n)

	if lb.curLine < 0 || lb.curLine > lb.lines || starts[lb.curLine] != lb.curOff {
		return fmt.Errorf("%w: cursor at line %d offset %d", ErrCorrupt, lb.curLine, lb.curOff)
	}
	if lb.skip.LineCount() != lb.lines || lb.skip.CharCount() != n {
		return fmt.Errorf("%w: skip map covers %d lines %d bytes, want %d and %d",
			ErrCorrupt, lb.skip.LineCount(), lb.skip.CharCount(), lb.lines, n)
	}
	for seg := range lb.skip.Segments() {
		if seg.Lines > lb.sparseness {
			return fmt.Errorf("%w: segment at line %d spans %d lines", ErrCorrupt, seg.StartLine, seg.Lines)
		}
		if starts[seg.StartLine] != seg.CharIndex {
			return fmt.Errorf("%w: segment at line %d starts at %d, want %d",
				ErrCorrupt, seg.StartLine, seg.CharIndex, starts[seg.StartLine])
		}
	}
	return nil
}

func (lb *LineBuffer) check() {
	if !lb.validate {
		return
	}
	if err := lb.Validate(); err != nil {
		panic(err)
	}
}

func (lb *LineBuffer) checkLine(i int) {
	if i < 0 || i >= lb.lines {
		panic(fmt.Sprintf("gapbuf: line %d out of range [0,%d)", i, lb.lines))
	}
}

func checkBody(p []byte) {
	if bytes.ContainsAny(p, lineBreakChars) {
		panic(ErrLineBreak)
	}
}

// moveTo positions the cursor at the start of line target, jumping to the
// nearest segment start first when that is closer.
func (lb *LineBuffer) moveTo(target int) {
	seg := lb.skip.NearestLessOrEqual(target)
	if abs(seg.StartLine-target) < abs(lb.curLine-target) {
		lb.curLine, lb.curOff = seg.StartLine, seg.CharIndex
	}
	lb.curLine, lb.curOff = lb.walk(target, lb.curLine, lb.curOff)
}

// walk moves from the start of line, at offset off, to the start of line
// target by scanning line breaks.
func (lb *LineBuffer) walk(target, line, off int) (int, int) {
	for line < target {
		body, end := lb.extentAt(off)
		off += body + end
		line++
	}
	for line > target {
		off = lb.previousLineStart(off)
		line--
	}
	return line, off
}

// offsetsFrom returns a skip map callback that locates lines relative to a
// known line start.
func (lb *LineBuffer) offsetsFrom(line, off int) skipmap.OffsetFunc {
	return func(target int) int {
		_, o := lb.walk(target, line, off)
		return o
	}
}

// extentAt returns the body and terminator lengths of the line starting at
// off.
func (lb *LineBuffer) extentAt(off int) (body, end int) {
	brk := lb.buf.IndexAny(off, lb.buf.Len(), lineBreakChars)
	return brk - off, lb.afterBreak(brk) - brk
}

// previousLineStart returns the start of the line that ends just before off.
func (lb *LineBuffer) previousLineStart(off int) int {
	brk := lb.startOfBreak(off - 1)
	return lb.buf.LastIndexAny(0, brk, lineBreakChars) + 1
}

// startOfBreak returns where the line break whose last byte is at i begins.
func (lb *LineBuffer) startOfBreak(i int) int {
	if lb.buf.At(i) == '\n' && lb.buf.At(i-1) == '\r' {
		return i - 1
	}
	return i
}

// afterBreak returns the offset just past the line break starting at i.
func (lb *LineBuffer) afterBreak(i int) int {
	if lb.buf.At(i) == '\r' && i+1 < lb.buf.Len() && lb.buf.At(i+1) == '\n' {
		return i + 2
	}
	return i + 1
}

// splitFused turns a lone "\r" ending line prev into "\r\n" when the next
// line starts at pos with a "\n", which would otherwise read back as a single
// "\r\n" break.
func (lb *LineBuffer) splitFused(prev, pos int) bool {
	if prev < 0 || pos >= lb.buf.Len() {
		return false
	}
	if lb.buf.At(pos-1) != '\r' || lb.buf.At(pos) != '\n' {
		return false
	}
	lb.buf.Insert(pos, lf)
	lb.skip.LineLengthChanged(prev, 1)
	return true
}

func (lb *LineBuffer) hasSentinel(at int) bool {
	if at < 0 || at+len(sentinel) > lb.buf.Len() {
		return false
	}
	for i, c := range sentinel {
		if lb.buf.At(at+i) != c {
			return false
		}
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
