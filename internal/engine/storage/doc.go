// Package storage holds the lines of a document behind one editing interface
// with interchangeable representations.
//
// A Storage is an ordered list of at least one line. Editing happens in whole
// sections addressed by line and column (columns count runes): a section can
// be cloned into a new Storage, deleted, or another Storage can be inserted at
// a position. The line container behind a Storage is chosen by its Factory:
//
//   - Plain keeps each line as a Go string in a fragmented array.
//   - Compact keeps the whole document as UTF-8 bytes in a gap buffer indexed
//     by a line skip map, preserving the original line endings.
//   - Hardened keeps every line encrypted in memory and only exposes
//     plaintext through decoded lines that are wiped on Release.
//
// Basic usage:
//
//	f := storage.NewPlainFactory()
//	s := f.FromString("one\ntwo\nthree", "\n")
//	head, _ := s.CloneSection(storage.Range{End: storage.Position{Line: 1, Column: 2}})
//	_ = s.DeleteSection(storage.Range{End: storage.Position{Line: 2}})
//	_ = s.InsertSection(storage.Position{}, head)
//	text := s.Text("\n") // "one\ntwthree"
//
// Decoded lines are scoped handles. Always release them, and release them
// before the Storage they came from is modified:
//
//	d := s.Line(0).Decode()
//	defer d.Release()
//
// Storage is not safe for concurrent use.
package storage
