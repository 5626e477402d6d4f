package storage

import (
	"fmt"

	"github.com/dshills/linecore/internal/engine/fragment"
)

// sizedLine is a line value that knows its encoded size in bytes.
type sizedLine interface {
	TextLine
	size() int
}

// arrayLines keeps one line value per slot of a fragmented array. It backs
// the plain and hardened storages.
type arrayLines[T sizedLine] struct {
	items *fragment.Array[T]
}

func newArrayLines[T sizedLine](blockSize int) *arrayLines[T] {
	items := fragment.New[T](fragment.WithBlockSize(blockSize))
	var empty T
	items.Append(empty)
	return &arrayLines[T]{items: items}
}

func (a *arrayLines[T]) as(l TextLine) T {
	v, ok := l.(T)
	if !ok {
		var want T
		panic(fmt.Errorf("storage: %T where %T was expected: %w", l, want, ErrBackendMismatch))
	}
	return v
}

func (a *arrayLines[T]) count() int { return a.items.Len() }
func (a *arrayLines[T]) line(i int) TextLine { return a.items.At(i) }
func (a *arrayLines[T]) set(i int, l TextLine) { a.items.Set(i, a.as(l)) }
func (a *arrayLines[T]) remove(i, n int) { a.items.RemoveRange(i, n) }

func (a *arrayLines[T]) insert(i int, lines ...TextLine) {
	if len(lines) == 0 {
		return
	}
	items := make([]T, len(lines))
	for j, l := range lines {
		items[j] = a.as(l)
	}
	a.items.InsertRange(i, items...)
}

func (a *arrayLines[T]) reset() {
	var empty T
	a.items.Clear()
	a.items.Append(empty)
}

func (a *arrayLines[T]) describe(d *Diagnostics) {
	for _, l := range a.items.All() {
		d.Bytes += l.size()
	}
}
