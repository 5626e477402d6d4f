// Package skipmap maps line numbers to character offsets for a flat text buffer.
//
// Lines are grouped into segments of up to Sparseness lines. Each segment
// records how many lines it spans and how many characters they occupy, and the
// segments live in an order-statistics splay tree keyed by line. Locating a
// line therefore costs a tree lookup plus a scan of at most one segment, and
// edits only touch the segment that contains the edited line.
//
// Index 0 of the underlying tree is a placeholder for a fixed prefix in front
// of the first line, so every public line number is stored shifted by one.
package skipmap

import (
	"errors"
	"fmt"
	"iter"

	"github.com/dshills/linecore/internal/engine/splay"
)

// DefaultSparseness is the segment size used when none is configured.
const DefaultSparseness = 4096

// ErrMisaligned indicates a bulk insertion that does not start on an existing
// segment boundary.
var ErrMisaligned = errors.New("skipmap: bulk insert not on a segment boundary")

// OffsetFunc returns the character offset at which a line starts.
type OffsetFunc func(line int) int

// Segment describes a run of consecutive lines.
type Segment struct {
	StartLine  int // first line of the segment
	Lines      int // number of lines in the segment
	CharIndex  int // character offset of the first line
	CharLength int // characters covered by all lines of the segment
}

// EndLine returns the line just after the segment.
func (s Segment) EndLine() int {
	return s.StartLine + s.Lines
}

// Contains reports whether line falls inside the segment.
func (s Segment) Contains(line int) bool {
	return line >= s.StartLine && line < s.EndLine()
}

// Option configures a Map.
type Option func(*Map)

// WithSparseness sets the maximum number of lines per segment.
func WithSparseness(n int) Option {
	return func(m *Map) {
		if n > 1 {
			m.sparseness = n
		}
	}
}

// Map is a line skip map. Call Reset before use.
type Map struct {
	tree       splay.Tree
	sparseness int
}

// New creates an empty map.
func New(opts ...Option) *Map {
	m := &Map{sparseness: DefaultSparseness}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sparseness returns the maximum number of lines per segment.
func (m *Map) Sparseness() int {
	return m.sparseness
}

// Reset discards all segments and describes a buffer holding a prefix of
// prefixChars characters followed by one empty line whose terminator spans
// suffixChars characters.
func (m *Map) Reset(prefixChars, suffixChars int) {
	m.tree.Clear()
	m.tree.InsertAt(0, 1, prefixChars)
	m.tree.InsertAt(1, 1, suffixChars)
}

// LineCount returns the number of lines.
func (m *Map) LineCount() int {
	return m.tree.XExtent() - 1
}

// CharCount returns the number of characters including the prefix.
func (m *Map) CharCount() int {
	return m.tree.YExtent()
}

// SegmentCount returns the number of line segments, not counting the prefix.
func (m *Map) SegmentCount() int {
	return m.tree.Len() - 1
}

// Segment returns the segment that starts exactly at line.
func (m *Map) Segment(line int) Segment {
	return m.segmentAt(line + 1)
}

// NearestLessOrEqual returns the segment containing line. A line at or past
// the end of the map resolves to the last segment.
func (m *Map) NearestLessOrEqual(line int) Segment {
	start, ok := m.tree.NearestLessOrEqual(line + 1)
	if !ok {
		panic(fmt.Errorf("%w: line %d", splay.ErrNotInTree, line))
	}
	return m.segmentAt(start)
}

// Next returns the first line of the segment after the one starting at line.
func (m *Map) Next(line int) (int, bool) {
	next, ok := m.tree.NearestGreater(line + 1)
	return next - 1, ok
}

// Segments iterates over all line segments in order.
func (m *Map) Segments() iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		m.tree.Walk(func(xStart, xLen, yStart, yLen int) bool {
			if xStart == 0 {
				return true
			}
			return yield(Segment{
				StartLine:  xStart - 1,
				Lines:      xLen,
				CharIndex:  yStart,
				CharLength: yLen,
			})
		})
	}
}

// LineLengthChanged records that line grew by delta characters.
func (m *Map) LineLengthChanged(line, delta int) {
	start, ok := m.tree.NearestLessOrEqual(line + 1)
	if !ok {
		panic(fmt.Errorf("%w: line %d", splay.ErrNotInTree, line))
	}
	xLen, _, yLen := m.tree.QueryAt(start)
	m.tree.SetAt(start, xLen, yLen+delta)
}

// BulkLinesInserted adds a whole segment while loading a buffer. startLine
// must be the start of an existing segment or the end of the map.
func (m *Map) BulkLinesInserted(startLine, numLines, charOffset, charLength int) {
	start := startLine + 1
	if nearest, ok := m.tree.NearestLessOrEqual(start); !ok || (nearest != start && start != m.tree.XExtent()) {
		panic(fmt.Errorf("%w: line %d", ErrMisaligned, startLine))
	}
	if _, yStart, _ := m.queryOrEnd(start); yStart != charOffset {
		panic(fmt.Errorf("%w: line %d at char %d, want %d", ErrMisaligned, startLine, charOffset, yStart))
	}
	m.tree.InsertAt(start, numLines, charLength)
}

// LineInserted records a new line of charsAdded characters at line. The
// segment holding it is split in two when it outgrows the sparseness, using
// offsetOf to find where the second half starts.
func (m *Map) LineInserted(line, charsAdded int, offsetOf OffsetFunc) {
	start, ok := m.tree.NearestLessOrEqual(line + 1)
	if !ok {
		panic(fmt.Errorf("%w: line %d", splay.ErrNotInTree, line))
	}
	xLen, yStart, yLen := m.tree.QueryAt(start)
	xLen++
	yLen += charsAdded
	m.tree.SetAt(start, xLen, yLen)

	if xLen > m.sparseness {
		m.split(Segment{start, xLen, yStart, yLen}, offsetOf)
	}
}

// LineRemoved records that line and its charsRemoved characters are gone. An
// underfull segment is merged into its successor; if that overfills it and
// offsetOf is not nil the result is split again.
func (m *Map) LineRemoved(line, charsRemoved int, offsetOf OffsetFunc) {
	start, ok := m.tree.NearestLessOrEqual(line + 1)
	if !ok {
		panic(fmt.Errorf("%w: line %d", splay.ErrNotInTree, line))
	}
	xLen, yStart, yLen := m.tree.QueryAt(start)
	xLen--
	yLen -= charsRemoved
	if xLen == 0 {
		m.tree.RemoveAt(start)
		return
	}
	m.tree.SetAt(start, xLen, yLen)

	if xLen > m.sparseness/2 {
		return
	}
	next, ok := m.tree.Next(start)
	if !ok {
		return
	}
	nextLen, _, nextChars := m.tree.QueryAt(next)
	m.tree.RemoveAt(next)
	xLen += nextLen
	yLen += nextChars
	m.tree.SetAt(start, xLen, yLen)

	if xLen > m.sparseness && offsetOf != nil {
		m.split(Segment{start, xLen, yStart, yLen}, offsetOf)
	}
}

// split halves a segment given in tree coordinates.
func (m *Map) split(s Segment, offsetOf OffsetFunc) {
	mid := s.StartLine + s.Lines/2
	firstChars := offsetOf(mid-1) - s.CharIndex
	m.tree.SetAt(s.StartLine, mid-s.StartLine, firstChars)
	m.tree.InsertAt(mid, s.StartLine+s.Lines-mid, s.CharLength-firstChars)
}

func (m *Map) segmentAt(start int) Segment {
	xLen, yStart, yLen := m.tree.QueryAt(start)
	return Segment{
		StartLine:  start - 1,
		Lines:      xLen,
		CharIndex:  yStart,
		CharLength: yLen,
	}
}

// queryOrEnd is QueryAt that also accepts the end of the tree.
func (m *Map) queryOrEnd(start int) (xLen, yStart, yLen int) {
	if start == m.tree.XExtent() {
		return 0, m.tree.YExtent(), 0
	}
	return m.tree.QueryAt(start)
}
