package splay

import (
	"errors"
	"fmt"
)

// Errors reported by tree operations. Both describe caller defects and are
// raised by panicking with a wrapped error.
var (
	// ErrNotInTree indicates a rank that is not the start of any node.
	ErrNotInTree = errors.New("splay: item not in tree")

	// ErrInvalidExtent indicates a node with a non-positive X extent or a
	// negative Y extent.
	ErrInvalidExtent = errors.New("splay: invalid extent")

	// ErrCorrupt is returned by Check when an aggregate disagrees with the
	// sum of its parts.
	ErrCorrupt = errors.New("splay: corrupt tree")
)

// node is a tree node. The local extents describe the range the node covers;
// the size fields aggregate the whole subtree rooted at the node.
type node struct {
	left, right *node

	xLen, yLen   int
	xSize, ySize int
	count        int
}

func (n *node) update() {
	n.xSize = n.xLen + xSizeOf(n.left) + xSizeOf(n.right)
	n.ySize = n.yLen + ySizeOf(n.left) + ySizeOf(n.right)
	n.count = 1 + countOf(n.left) + countOf(n.right)
}

func xSizeOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.xSize
}

func ySizeOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.ySize
}

func countOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.count
}

// dim selects the aggregate a splay descends by.
type dim int

const (
	byX dim = iota
	byCount
)

func (d dim) size(n *node) int {
	if d == byCount {
		return countOf(n)
	}
	return xSizeOf(n)
}

func (d dim) local(n *node) int {
	if d == byCount {
		return 1
	}
	return n.xLen
}

// Tree is an order-statistics splay tree of ranges. The zero value is an
// empty tree ready to use.
type Tree struct {
	root *node
}

// XExtent returns the total X extent of all nodes.
func (t *Tree) XExtent() int {
	return xSizeOf(t.root)
}

// YExtent returns the total Y extent of all nodes.
func (t *Tree) YExtent() int {
	return ySizeOf(t.root)
}

// Len returns the number of nodes.
func (t *Tree) Len() int {
	return countOf(t.root)
}

// Clear removes every node.
func (t *Tree) Clear() {
	t.root = nil
}

// InsertAt inserts a node covering xLen positions with Y length yLen. start
// must be the start of an existing node, in which case the new node is placed
// in front of it, or the total X extent, in which case the node is appended.
func (t *Tree) InsertAt(start, xLen, yLen int) {
	if xLen <= 0 || yLen < 0 {
		panic(fmt.Errorf("%w: x %d, y %d", ErrInvalidExtent, xLen, yLen))
	}

	i := &node{xLen: xLen, yLen: yLen}
	i.update()

	if t.root == nil {
		if start != 0 {
			panic(fmt.Errorf("%w: insert at %d of empty tree", ErrNotInTree, start))
		}
		t.root = i
		return
	}

	t.root = splay(t.root, start, byX)
	root := t.root

	if start == xSizeOf(root.left) {
		// In front of the current root.
		left := root.left
		root.left = nil
		root.update()
		i.left = left
		i.right = root
		i.update()
		t.root = i
		return
	}

	// Append.
	if root.right != nil || start != root.xSize {
		panic(fmt.Errorf("%w: insert at %d, extent %d", ErrNotInTree, start, root.xSize))
	}
	root.right = i
	root.update()
}

// RemoveAt removes the node starting at start.
func (t *Tree) RemoveAt(start int) {
	t.mustSplay(start)

	root := t.root
	var x *node
	if root.left == nil {
		x = root.right
	} else {
		// The largest node of the left subtree has no right child after
		// being splayed to the top.
		x = splay(root.left, start, byX)
		x.right = root.right
	}
	if x != nil {
		x.update()
	}
	t.root = x
}

// QueryAt returns the X extent of the node starting at start, the total Y
// extent of all nodes before it and its own Y extent.
func (t *Tree) QueryAt(start int) (xLen, yStart, yLen int) {
	t.mustSplay(start)
	return t.root.xLen, ySizeOf(t.root.left), t.root.yLen
}

// SetAt replaces the extents of the node starting at start.
func (t *Tree) SetAt(start, xLen, yLen int) {
	if xLen <= 0 || yLen < 0 {
		panic(fmt.Errorf("%w: x %d, y %d", ErrInvalidExtent, xLen, yLen))
	}
	t.mustSplay(start)
	t.root.xLen = xLen
	t.root.yLen = yLen
	t.root.update()
}

// NearestLessOrEqual returns the start of the node containing x, that is the
// greatest node start not after x. ok is false when the tree is empty or x is
// negative.
func (t *Tree) NearestLessOrEqual(x int) (start int, ok bool) {
	if t.root == nil {
		return 0, false
	}
	t.root = splay(t.root, x, byX)
	root := t.root
	rootStart := xSizeOf(root.left)
	if x >= rootStart {
		return rootStart, true
	}
	if root.left == nil {
		return 0, false
	}
	root.left = splay(root.left, rootStart, byX)
	return xSizeOf(root.left.left), true
}

// NearestGreater returns the smallest node start after x.
func (t *Tree) NearestGreater(x int) (start int, ok bool) {
	if t.root == nil {
		return 0, false
	}
	t.root = splay(t.root, x, byX)
	root := t.root
	rootStart := xSizeOf(root.left)
	if rootStart > x {
		return rootStart, true
	}
	if root.right == nil {
		return 0, false
	}
	return rootStart + root.xLen, true
}

// Next returns the start of the node following the one at start. ok reports
// whether such a node exists; next is the end of the node either way.
func (t *Tree) Next(start int) (next int, ok bool) {
	t.mustSplay(start)
	return start + t.root.xLen, t.root.right != nil
}

// Select returns the i-th node in order.
func (t *Tree) Select(i int) (xStart, xLen, yStart, yLen int) {
	if t.root == nil || i < 0 || i >= t.root.count {
		panic(fmt.Errorf("%w: index %d of %d", ErrNotInTree, i, countOf(t.root)))
	}
	t.root = splay(t.root, i, byCount)
	root := t.root
	return xSizeOf(root.left), root.xLen, ySizeOf(root.left), root.yLen
}

func (t *Tree) mustSplay(start int) {
	if t.root != nil {
		t.root = splay(t.root, start, byX)
	}
	if t.root == nil || xSizeOf(t.root.left) != start {
		panic(fmt.Errorf("%w: rank %d", ErrNotInTree, start))
	}
}

// splay performs a top-down splay of the subtree rooted at t for key, measured
// in dimension d, and returns the new subtree root. Sizes on the paths split
// off during the descent are corrected once the final root is known.
func splay(t *node, key int, d dim) *node {
	if t == nil {
		return nil
	}

	var header node
	l, r := &header, &header
	var lx, ly, lc int
	var rx, ry, rc int

	for {
		leftSize := d.size(t.left)
		if key < leftSize {
			if t.left == nil {
				break
			}
			if key < d.size(t.left.left) {
				// Rotate right.
				y := t.left
				t.left = y.right
				y.right = t
				t.update()
				t = y
				if t.left == nil {
					break
				}
			}
			// Link right.
			r.left = t
			r = t
			t = t.left
			rx += r.xLen + xSizeOf(r.right)
			ry += r.yLen + ySizeOf(r.right)
			rc += 1 + countOf(r.right)
		} else if key > leftSize {
			if t.right == nil {
				break
			}
			if key > leftSize+d.local(t)+d.size(t.right.left) {
				// Rotate left.
				y := t.right
				t.right = y.left
				y.left = t
				t.update()
				t = y
				if t.right == nil {
					break
				}
			}
			// Link left.
			l.right = t
			l = t
			key -= d.size(t.left) + d.local(t)
			t = t.right
			lx += l.xLen + xSizeOf(l.left)
			ly += l.yLen + ySizeOf(l.left)
			lc += 1 + countOf(l.left)
		} else {
			break
		}
	}

	lx += xSizeOf(t.left)
	ly += ySizeOf(t.left)
	lc += countOf(t.left)
	rx += xSizeOf(t.right)
	ry += ySizeOf(t.right)
	rc += countOf(t.right)
	t.xSize = lx + rx + t.xLen
	t.ySize = ly + ry + t.yLen
	t.count = lc + rc + 1
	l.right = nil
	r.left = nil

	for y := header.right; y != nil; y = y.right {
		y.xSize, y.ySize, y.count = lx, ly, lc
		lx -= y.xLen + xSizeOf(y.left)
		ly -= y.yLen + ySizeOf(y.left)
		lc -= 1 + countOf(y.left)
	}
	for y := header.left; y != nil; y = y.left {
		y.xSize, y.ySize, y.count = rx, ry, rc
		rx -= y.xLen + xSizeOf(y.right)
		ry -= y.yLen + ySizeOf(y.right)
		rc -= 1 + countOf(y.right)
	}

	l.right = t.left
	r.left = t.right
	t.left = header.right
	t.right = header.left
	return t
}
