package splay

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type span struct{ x, y int }

// model is a naive reference: an ordered slice of spans.
type model []span

func (m model) starts() (xs, ys []int) {
	x, y := 0, 0
	for _, s := range m {
		xs = append(xs, x)
		ys = append(ys, y)
		x += s.x
		y += s.y
	}
	return xs, ys
}

func (m model) extents() (int, int) {
	x, y := 0, 0
	for _, s := range m {
		x += s.x
		y += s.y
	}
	return x, y
}

func verifyAgainst(t *testing.T, tree *Tree, m model) {
	t.Helper()
	require.NoError(t, tree.Check(0))
	x, y := m.extents()
	require.Equal(t, x, tree.XExtent())
	require.Equal(t, y, tree.YExtent())
	require.Equal(t, len(m), tree.Len())

	xs, ys := m.starts()
	for i, s := range m {
		xLen, yStart, yLen := tree.QueryAt(xs[i])
		require.Equal(t, s.x, xLen, "xLen of node %d", i)
		require.Equal(t, ys[i], yStart, "yStart of node %d", i)
		require.Equal(t, s.y, yLen, "yLen of node %d", i)
	}
}

func TestEmptyTree(t *testing.T) {
	var tree Tree
	assert.Equal(t, 0, tree.XExtent())
	assert.Equal(t, 0, tree.YExtent())
	assert.Equal(t, 0, tree.Len())

	_, ok := tree.NearestLessOrEqual(0)
	assert.False(t, ok)
	_, ok = tree.NearestGreater(0)
	assert.False(t, ok)
	assert.NoError(t, tree.Check(1))
}

func TestInsertFrontAndAppend(t *testing.T) {
	var tree Tree
	tree.InsertAt(0, 3, 30)  // [0,3)
	tree.InsertAt(3, 2, 20)  // [3,5)
	tree.InsertAt(0, 1, 5)   // [0,1) pushes the rest right
	tree.InsertAt(4, 4, 100) // in front of [4,6)

	verifyAgainst(t, &tree, model{{1, 5}, {3, 30}, {4, 100}, {2, 20}})
}

func TestNearestLessOrEqual(t *testing.T) {
	var tree Tree
	tree.InsertAt(0, 10, 400)
	tree.InsertAt(10, 5, 90)
	tree.InsertAt(15, 1, 7)

	tests := []struct {
		x     int
		start int
	}{
		{0, 0},
		{9, 0},
		{10, 10},
		{12, 10},
		{14, 10},
		{15, 15},
		{16, 15},
		{100, 15},
	}
	for _, tt := range tests {
		got, ok := tree.NearestLessOrEqual(tt.x)
		if !ok || got != tt.start {
			t.Errorf("NearestLessOrEqual(%d) = %d, %v, want %d", tt.x, got, ok, tt.start)
		}
	}

	_, ok := tree.NearestLessOrEqual(-1)
	assert.False(t, ok)
}

func TestNearestGreaterAndNext(t *testing.T) {
	var tree Tree
	tree.InsertAt(0, 10, 400)
	tree.InsertAt(10, 5, 90)

	got, ok := tree.NearestGreater(3)
	assert.True(t, ok)
	assert.Equal(t, 10, got)

	got, ok = tree.NearestGreater(0)
	assert.True(t, ok)
	assert.Equal(t, 10, got)

	_, ok = tree.NearestGreater(10)
	assert.False(t, ok)

	next, ok := tree.Next(0)
	assert.True(t, ok)
	assert.Equal(t, 10, next)

	next, ok = tree.Next(10)
	assert.False(t, ok)
	assert.Equal(t, 15, next)
}

func TestSelect(t *testing.T) {
	var tree Tree
	m := model{{2, 1}, {3, 4}, {1, 0}, {5, 9}}
	x := 0
	for _, s := range m {
		tree.InsertAt(x, s.x, s.y)
		x += s.x
	}
	xs, ys := m.starts()
	for i := range m {
		xStart, xLen, yStart, yLen := tree.Select(i)
		assert.Equal(t, xs[i], xStart)
		assert.Equal(t, m[i].x, xLen)
		assert.Equal(t, ys[i], yStart)
		assert.Equal(t, m[i].y, yLen)
	}
	assert.Panics(t, func() { tree.Select(len(m)) })
}

func TestUnitExtentsActAsRankArray(t *testing.T) {
	var tree Tree
	sizes := []int{7, 0, 3, 12, 1}
	for i, s := range sizes {
		tree.InsertAt(i, 1, s)
	}
	tree.RemoveAt(1)
	tree.InsertAt(4, 1, 2)

	// 7 3 12 1 2
	want := []int{7, 3, 12, 1, 2}
	prefix := 0
	for i, w := range want {
		xLen, yStart, yLen := tree.QueryAt(i)
		assert.Equal(t, 1, xLen)
		assert.Equal(t, prefix, yStart)
		assert.Equal(t, w, yLen)
		prefix += w
	}
}

func TestSetAt(t *testing.T) {
	var tree Tree
	tree.InsertAt(0, 2, 10)
	tree.InsertAt(2, 2, 10)
	tree.SetAt(0, 3, 15)
	verifyAgainst(t, &tree, model{{3, 15}, {2, 10}})
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	var tree Tree
	x := 0
	for i := 1; i <= 20; i++ {
		tree.InsertAt(x, i, i*i)
		x += i
	}
	beforeX, beforeY, beforeN := tree.XExtent(), tree.YExtent(), tree.Len()

	// Insert in front of an interior node, then remove it again.
	start, ok := tree.NearestLessOrEqual(50)
	require.True(t, ok)
	tree.InsertAt(start, 4, 17)
	assert.Equal(t, beforeX+4, tree.XExtent())
	tree.RemoveAt(start)

	assert.Equal(t, beforeX, tree.XExtent())
	assert.Equal(t, beforeY, tree.YExtent())
	assert.Equal(t, beforeN, tree.Len())
	assert.NoError(t, tree.Check(0))
}

func TestDefectsPanic(t *testing.T) {
	var tree Tree
	tree.InsertAt(0, 5, 5)

	tests := []struct {
		name string
		fn   func()
	}{
		{"insert inside node", func() { tree.InsertAt(2, 1, 1) }},
		{"insert past extent", func() { tree.InsertAt(6, 1, 1) }},
		{"zero extent", func() { tree.InsertAt(0, 0, 1) }},
		{"remove inside node", func() { tree.RemoveAt(3) }},
		{"query missing", func() { tree.QueryAt(1) }},
		{"insert into empty at rank", func() {
			var empty Tree
			empty.InsertAt(1, 1, 1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, tt.fn)
		})
	}
}

func TestRandomAgainstModel(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var tree Tree
	var m model

	for step := 0; step < 3000; step++ {
		xs, _ := m.starts()
		switch op := rng.Intn(10); {
		case op < 6 || len(m) == 0:
			s := span{rng.Intn(8) + 1, rng.Intn(50)}
			pos := rng.Intn(len(m) + 1)
			start, _ := m.extents()
			if pos < len(m) {
				start = xs[pos]
			}
			tree.InsertAt(start, s.x, s.y)
			m = append(m, span{})
			copy(m[pos+1:], m[pos:])
			m[pos] = s
		case op < 9:
			pos := rng.Intn(len(m))
			tree.RemoveAt(xs[pos])
			m = append(m[:pos], m[pos+1:]...)
		default:
			x, _ := m.extents()
			probe := rng.Intn(x + 1)
			got, ok := tree.NearestLessOrEqual(probe)
			require.True(t, ok)
			want := 0
			for _, s := range xs {
				if s <= probe {
					want = s
				}
			}
			require.Equal(t, want, got, "NearestLessOrEqual(%d)", probe)
		}
		if step%100 == 0 {
			verifyAgainst(t, &tree, m)
		}
	}
	verifyAgainst(t, &tree, m)
}

func TestWalk(t *testing.T) {
	var tree Tree
	tree.InsertAt(0, 1, 2)
	tree.InsertAt(1, 3, 4)
	tree.InsertAt(4, 5, 6)

	var got []span
	tree.Walk(func(_, xLen, _, yLen int) bool {
		got = append(got, span{xLen, yLen})
		return true
	})
	assert.Equal(t, []span{{1, 2}, {3, 4}, {5, 6}}, got)

	n := 0
	tree.Walk(func(_, _, _, _ int) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestSequentialAppendStaysShallowAfterAccess(t *testing.T) {
	var tree Tree
	for i := 0; i < 10000; i++ {
		tree.InsertAt(i, 1, 1)
	}
	// Sequential appends build a spine; a few random accesses rebalance it.
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		tree.QueryAt(rng.Intn(10000))
	}
	assert.NoError(t, tree.Check(0))
	assert.Equal(t, 10000, tree.XExtent())
}
