// Package widthcache caches the rendered width of document lines.
//
// The cache holds a window of consecutive line indices. Widths are supplied
// by the renderer, which asks TryGet before measuring a line and calls Set
// afterwards. Edits elsewhere in the document are reported with Insert and
// Delete so that cached entries follow their lines.
//
// Memory is bounded: the window never exceeds MaxCount slots. When an
// operation would grow it further, the whole cache is cleared instead.
//
// A Cache is not safe for concurrent use, except for Stats, which may be
// read from any goroutine.
package widthcache

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

// DefaultMaxCount is the default bound on the window size.
const DefaultMaxCount = 1000

// Cache maps line indices to rendered widths.
type Cache struct {
	start int
	// widths holds the ones' complement of each width, so the zero value of
	// a slot means "not cached" while a width of zero is still storable.
	widths   []int
	maxCount int
	logger   *log.Logger

	hits    atomic.Uint64
	misses  atomic.Uint64
	clears  atomic.Uint64
	entries atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxCount sets the window bound. n must be positive.
func WithMaxCount(n int) Option {
	if n <= 0 {
		panic(fmt.Sprintf("widthcache: max count %d must be positive", n))
	}
	return func(c *Cache) {
		c.maxCount = n
	}
}

// WithLogger sets the logger that reports implicit clears.
func WithLogger(l *log.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxCount: DefaultMaxCount,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.widths = make([]int, 0, c.maxCount)
	return c
}

// MaxCount returns the window bound.
func (c *Cache) MaxCount() int {
	return c.maxCount
}

// Window returns the first line index of the window and its length.
func (c *Cache) Window() (start, length int) {
	return c.start, len(c.widths)
}

// Set records the width of line index. When covering index would stretch
// the window past MaxCount lines, the cache is cleared first.
func (c *Cache) Set(index, width int) {
	checkIndex(index)
	if width < 0 {
		panic(fmt.Sprintf("widthcache: negative width %d", width))
	}
	if n := len(c.widths); n != 0 && spanWith(c.start, n, index) > c.maxCount {
		c.reset("set outside window", index)
	}

	switch n := len(c.widths); {
	case n == 0:
		c.start = index
		c.widths = append(c.widths, ^width)
	case index < c.start:
		c.widths = insertZeros(c.widths, 0, c.start-index)
		c.start = index
	case index >= c.start+n:
		c.widths = append(c.widths, make([]int, index+1-(c.start+n))...)
	}
	c.widths[index-c.start] = ^width
	c.entries.Store(int64(len(c.widths)))
}

// spanWith returns the length of the window [start, start+n) once it is
// widened to cover index.
func spanWith(start, n, index int) int {
	switch {
	case index < start:
		return start + n - index
	case index >= start+n:
		return index - start + 1
	}
	return n
}

// Invalidate forgets the width of line index.
func (c *Cache) Invalidate(index int) {
	checkIndex(index)
	if i := index - c.start; i >= 0 && i < len(c.widths) {
		c.widths[i] = 0
	}
}

// TryGet returns the cached width of line index.
func (c *Cache) TryGet(index int) (int, bool) {
	checkIndex(index)
	if i := index - c.start; i >= 0 && i < len(c.widths) {
		if w := ^c.widths[i]; w >= 0 {
			c.hits.Add(1)
			return w, true
		}
	}
	c.misses.Add(1)
	return 0, false
}

// Insert reports that count lines were inserted before line index. Cached
// widths after index move down by count; the new lines are not cached.
func (c *Cache) Insert(index, count int) {
	checkIndex(index)
	checkCount(count)
	if count == 0 {
		return
	}
	if len(c.widths)+count > c.maxCount {
		c.reset("insert exceeds bound", index)
		return
	}
	switch {
	case index <= c.start:
		c.start += count
	case index <= c.start+len(c.widths):
		c.widths = insertZeros(c.widths, index-c.start, count)
	}
	c.entries.Store(int64(len(c.widths)))
}

// Delete reports that count lines starting at line index were removed.
// Their widths are dropped and widths after them move up by count.
func (c *Cache) Delete(index, count int) {
	checkIndex(index)
	checkCount(count)
	if count == 0 {
		return
	}
	n := len(c.widths)
	switch {
	case index+count <= c.start:
		c.start -= count
	case index <= c.start:
		// The deletion covers the head of the window.
		covered := min(index+count-c.start, n)
		c.widths = append(c.widths[:0], c.widths[covered:]...)
		c.start = index
	case index < c.start+n:
		from := index - c.start
		to := min(from+count, n)
		c.widths = append(c.widths[:from], c.widths[to:]...)
	}
	clear(c.widths[len(c.widths):n])
	c.entries.Store(int64(len(c.widths)))
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.start = 0
	clear(c.widths)
	c.widths = c.widths[:0]
	c.clears.Add(1)
	c.entries.Store(0)
}

func (c *Cache) reset(reason string, index int) {
	c.logger.Debug("width cache cleared", "reason", reason, "index", index,
		"start", c.start, "len", len(c.widths))
	c.Clear()
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
	Clears  uint64
	HitRate float64
}

// Stats returns the current counters. It is safe to call concurrently with
// other methods.
func (c *Cache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Entries: int(c.entries.Load()),
		Hits:    hits,
		Misses:  misses,
		Clears:  c.clears.Load(),
		HitRate: rate,
	}
}

// insertZeros opens n invalid slots at position i.
func insertZeros(s []int, i, n int) []int {
	s = append(s, make([]int, n)...)
	copy(s[i+n:], s[i:])
	clear(s[i : i+n])
	return s
}

func checkIndex(index int) {
	if index < 0 {
		panic(fmt.Sprintf("widthcache: negative index %d", index))
	}
}

func checkCount(count int) {
	if count < 0 {
		panic(fmt.Sprintf("widthcache: negative count %d", count))
	}
}
