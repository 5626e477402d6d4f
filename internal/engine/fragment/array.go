// Package fragment provides a growable array that avoids huge contiguous
// allocations.
//
// Small arrays are a single slice. Once an array outgrows one block it switches
// to a list of fixed-size blocks, so growth allocates only new blocks and never
// copies existing elements to a bigger backing store. Element access stays O(1)
// through shift-and-mask addressing because the block size is a power of two.
package fragment

import (
	"fmt"
	"iter"
	"math/bits"
)

// DefaultBlockSize is the number of elements per block.
const DefaultBlockSize = 4096

// Option configures an Array.
type Option func(*config)

type config struct {
	blockSize int
}

// WithBlockSize sets the block size. It must be a power of two.
func WithBlockSize(n int) Option {
	return func(c *config) {
		if n <= 0 || n&(n-1) != 0 {
			panic(fmt.Sprintf("fragment: block size %d is not a power of two", n))
		}
		c.blockSize = n
	}
}

// storage is the active representation. Exactly one implementation is live
// at a time.
type storage[T any] interface {
	capacity() int
	at(i int) *T
	// move copies n elements from src to dst; the ranges may overlap.
	move(dst, src, n int)
	clear(from, to int)
}

// contiguous holds up to one block of elements in a single slice.
type contiguous[T any] struct {
	items []T
}

func (c *contiguous[T]) capacity() int { return len(c.items) }
func (c *contiguous[T]) at(i int) *T { return &c.items[i] }
func (c *contiguous[T]) move(dst, src, n int) { copy(c.items[dst : dst+n], c.items[src : src+n]) }
func (c *contiguous[T]) clear(from, to int) { clear(c.items[from:to]) }

// blocked holds elements in fixed-size blocks.
type blocked[T any] struct {
	blocks [][]T
	shift  uint
	mask   int
}

func (b *blocked[T]) capacity() int { return len(b.blocks) << b.shift }

func (b *blocked[T]) at(i int) *T {
	return &b.blocks[i>>b.shift][i&b.mask]
}

func (b *blocked[T]) move(dst, src, n int) {
	size := b.mask + 1
	if dst > src {
		// Copy backwards so unread source elements are never overwritten.
		for n > 0 {
			se, de := src+n-1, dst+n-1
			sOff, dOff := se&b.mask, de&b.mask
			c := min(n, sOff+1, dOff+1)
			copy(b.blocks[de>>b.shift][dOff+1-c : dOff+1], b.blocks[se>>b.shift][sOff+1-c : sOff+1])
			n -= c
		}
		return
	}
	for n > 0 {
		sOff, dOff := src&b.mask, dst&b.mask
		c := min(n, size-sOff, size-dOff)
		copy(b.blocks[dst>>b.shift][dOff : dOff+c], b.blocks[src>>b.shift][sOff : sOff+c])
		src += c
		dst += c
		n -= c
	}
}

func (b *blocked[T]) clear(from, to int) {
	for from < to {
		off := from & b.mask
		c := min(to-from, b.mask+1-off)
		clear(b.blocks[from>>b.shift][off : off+c])
		from += c
	}
}

// Array is a fragmented dynamic array. The zero value is not usable; create
// arrays with New.
type Array[T any] struct {
	count     int
	blockSize int
	store     storage[T]
}

// New creates an empty array.
func New[T any](opts ...Option) *Array[T] {
	cfg := config{blockSize: DefaultBlockSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Array[T]{
		blockSize: cfg.blockSize,
		store:     &contiguous[T]{},
	}
}

// Len returns the number of elements.
func (a *Array[T]) Len() int {
	return a.count
}

// Fragmented reports whether the array has switched to block storage.
func (a *Array[T]) Fragmented() bool {
	_, ok := a.store.(*blocked[T])
	return ok
}

// At returns the element at index i.
func (a *Array[T]) At(i int) T {
	a.checkIndex(i, a.count)
	return *a.store.at(i)
}

// Set replaces the element at index i.
func (a *Array[T]) Set(i int, v T) {
	a.checkIndex(i, a.count)
	*a.store.at(i) = v
}

// Append adds v to the end of the array.
func (a *Array[T]) Append(v T) {
	a.Insert(a.count, v)
}

// Insert inserts v at index i, shifting later elements up.
func (a *Array[T]) Insert(i int, v T) {
	a.InsertRange(i, v)
}

// InsertRange inserts items at index i, shifting later elements up.
func (a *Array[T]) InsertRange(i int, items ...T) {
	a.checkIndex(i, a.count+1)
	n := len(items)
	if n == 0 {
		return
	}
	a.grow(a.count + n)
	a.store.move(i+n, i, a.count-i)
	for j, v := range items {
		*a.store.at(i + j) = v
	}
	a.count += n
}

// RemoveAt removes the element at index i.
func (a *Array[T]) RemoveAt(i int) {
	a.RemoveRange(i, 1)
}

// RemoveRange removes n elements starting at index i. Vacated slots are
// zeroed so removed values can be collected.
func (a *Array[T]) RemoveRange(i, n int) {
	if n < 0 || i < 0 || i+n > a.count {
		panic(fmt.Sprintf("fragment: range [%d,%d) out of range [0,%d)", i, i+n, a.count))
	}
	if n == 0 {
		return
	}
	a.store.move(i, i+n, a.count-i-n)
	a.store.clear(a.count-n, a.count)
	a.count -= n
}

// Clear removes all elements, keeping the allocated capacity.
func (a *Array[T]) Clear() {
	a.store.clear(0, a.count)
	a.count = 0
}

// All iterates over index and value pairs in order.
func (a *Array[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i := 0; i < a.count; i++ {
			if !yield(i, *a.store.at(i)) {
				return
			}
		}
	}
}

// Slice copies the elements [i, i+n) into a new slice.
func (a *Array[T]) Slice(i, n int) []T {
	if n < 0 || i < 0 || i+n > a.count {
		panic(fmt.Sprintf("fragment: range [%d,%d) out of range [0,%d)", i, i+n, a.count))
	}
	out := make([]T, n)
	for j := range out {
		out[j] = *a.store.at(i + j)
	}
	return out
}

func (a *Array[T]) checkIndex(i, limit int) {
	if i < 0 || i >= limit {
		panic(fmt.Sprintf("fragment: index %d out of range [0,%d)", i, limit))
	}
}

// grow makes room for at least need elements.
func (a *Array[T]) grow(need int) {
	if need <= a.store.capacity() {
		return
	}

	switch s := a.store.(type) {
	case *contiguous[T]:
		if need <= a.blockSize {
			size := 1
			if need > 1 {
				size = 1 << bits.Len(uint(need-1))
			}
			items := make([]T, min(size, a.blockSize))
			copy(items, s.items)
			s.items = items
			return
		}
		first := make([]T, a.blockSize)
		copy(first, s.items)
		b := &blocked[T]{
			blocks: [][]T{first},
			shift:  uint(bits.TrailingZeros(uint(a.blockSize))),
			mask:   a.blockSize - 1,
		}
		a.store = b
		a.growBlocks(b, need)
	case *blocked[T]:
		a.growBlocks(s, need)
	}
}

func (a *Array[T]) growBlocks(b *blocked[T], need int) {
	for b.capacity() < need {
		b.blocks = append(b.blocks, make([]T, a.blockSize))
	}
}
