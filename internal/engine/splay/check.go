package splay

import "fmt"

// Check walks the whole tree and verifies every node's aggregates against its
// children. The walk is iterative so a degenerate tree cannot exhaust the
// goroutine stack. A maxDepth greater than zero also bounds the depth of any
// node, which catches runaway degeneration in tests.
func (t *Tree) Check(maxDepth int) error {
	type frame struct {
		n     *node
		depth int
	}

	if t.root == nil {
		return nil
	}
	stack := []frame{{t.root, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := f.n

		if maxDepth > 0 && f.depth > maxDepth {
			return fmt.Errorf("%w: depth %d exceeds %d", ErrCorrupt, f.depth, maxDepth)
		}
		if n.xLen <= 0 || n.yLen < 0 {
			return fmt.Errorf("%w: node extents %d/%d", ErrCorrupt, n.xLen, n.yLen)
		}
		if want := n.xLen + xSizeOf(n.left) + xSizeOf(n.right); n.xSize != want {
			return fmt.Errorf("%w: x size %d, want %d", ErrCorrupt, n.xSize, want)
		}
		if want := n.yLen + ySizeOf(n.left) + ySizeOf(n.right); n.ySize != want {
			return fmt.Errorf("%w: y size %d, want %d", ErrCorrupt, n.ySize, want)
		}
		if want := 1 + countOf(n.left) + countOf(n.right); n.count != want {
			return fmt.Errorf("%w: count %d, want %d", ErrCorrupt, n.count, want)
		}

		if n.left != nil {
			stack = append(stack, frame{n.left, f.depth + 1})
		}
		if n.right != nil {
			stack = append(stack, frame{n.right, f.depth + 1})
		}
	}
	return nil
}

// Walk calls fn for every node in order with its start and extents. fn must
// not modify the tree.
func (t *Tree) Walk(fn func(xStart, xLen, yStart, yLen int) bool) {
	var stack []*node
	x, y := 0, 0
	n := t.root
	for n != nil || len(stack) > 0 {
		for n != nil {
			stack = append(stack, n)
			n = n.left
		}
		n = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(x, n.xLen, y, n.yLen) {
			return
		}
		x += n.xLen
		y += n.yLen
		n = n.right
	}
}
