// Package splay provides an order-statistics splay tree over ranges.
//
// Each node covers a contiguous run of X positions (for example lines) and
// carries an associated Y length (for example characters). Subtree aggregates
// of both extents and the node count are maintained through every rotation, so
// prefix sums in either dimension are available in amortized O(log n) time.
//
// Nodes are addressed by their starting X position, which callers usually call
// a rank. Giving every node an X extent of one turns the tree into a plain rank
// array with a sparse length per element.
//
// Basic usage:
//
//	var t splay.Tree
//	t.InsertAt(0, 10, 400)          // lines [0,10) hold 400 chars
//	t.InsertAt(10, 5, 90)           // lines [10,15) hold 90 chars
//	start, _ := t.NearestLessOrEqual(12) // 10
//	_, charStart, _ := t.QueryAt(start)  // 400
//
// Addressing a rank that is not a node start is a programming defect and
// panics with an error wrapping ErrNotInTree.
//
// The tree is not safe for concurrent use; even queries restructure it.
package splay
