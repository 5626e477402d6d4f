package storage

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func factories(t *testing.T) []Factory {
	t.Helper()
	h, err := NewHardenedFactory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return []Factory{
		NewPlainFactory(WithBlockSize(4)),
		NewCompactFactory(WithSparseness(4)),
		h,
	}
}

func forEachFactory(t *testing.T, fn func(t *testing.T, f Factory)) {
	for _, f := range factories(t) {
		t.Run(string(f.Kind()), func(t *testing.T) { fn(t, f) })
	}
}

func lines(s *Storage) []string {
	out := make([]string, s.Len())
	for i := range out {
		d := s.Line(i).Decode()
		out[i] = d.String()
		d.Release()
	}
	return out
}

// recoverError runs fn and returns the error it panicked with.
func recoverError(fn func()) (err error) {
	defer func() {
		r := recover()
		if e, ok := r.(error); ok {
			err = e
		} else if r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}

func TestEncodeDecode(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		for _, s := range []string{"", "ascii", "héllo wörld", "日本語", "🎉 e\u0301"} {
			for _, l := range []TextLine{f.Encode(s), f.EncodeBytes([]byte(s)), f.EncodeRunes([]rune(s))} {
				d := l.Decode()
				assert.Equal(t, s, d.String())
				assert.Equal(t, utf8.RuneCountInString(s), l.Len())
				d.Release()
			}
		}

		// Each invalid byte stands for one U+FFFD.
		for _, l := range []TextLine{f.Encode("a\xffb\xc3"), f.EncodeBytes([]byte("a\xffb\xc3"))} {
			d := l.Decode()
			assert.Equal(t, 4, l.Len())
			assert.Equal(t, d.Len(), l.Len())
			assert.Equal(t, "a\uFFFDb\uFFFD", d.String())
			d.Release()
		}
	})
}

func TestNewStorage(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s := f.New()
		assert.Equal(t, 1, s.Len())
		assert.True(t, s.Empty())
		assert.False(t, s.Modified())
		assert.Equal(t, "", s.Text("\n"))
		assert.Same(t, f, s.Factory())
	})
}

func TestSectionRoundTrip(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s := f.FromString("one\ntwo\nthree", "\n")
		assert.False(t, s.Modified())

		head, err := s.CloneSection(Range{End: Position{Line: 1, Column: 2}})
		require.NoError(t, err)
		assert.Equal(t, "one\ntw", head.Text("\n"))
		assert.False(t, head.Modified())

		require.NoError(t, s.DeleteSection(Range{End: Position{Line: 2}}))
		assert.Equal(t, []string{"three"}, lines(s))
		assert.True(t, s.Modified())

		require.NoError(t, s.InsertSection(Position{}, head))
		assert.Equal(t, "one\ntwthree", s.Text("\n"))
		assert.NoError(t, s.Validate())
	})
}

func TestCloneSection(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s := f.FromString("héllo wörld\nbcd\nef\ng\nhij", "\n")

		c, err := s.CloneSection(Range{Start: Position{Column: 1}, End: Position{Column: 5}})
		require.NoError(t, err)
		assert.Equal(t, []string{"éllo"}, lines(c))

		c, err = s.CloneSection(Range{Start: Position{Column: 11}, End: Position{Line: 4, Column: 2}})
		require.NoError(t, err)
		assert.Equal(t, []string{"", "bcd", "ef", "g", "hi"}, lines(c))
		assert.NoError(t, c.Validate())

		c, err = s.CloneSection(Range{Start: Position{Column: 6}, End: Position{Line: 1, Column: 1}})
		require.NoError(t, err)
		assert.Equal(t, []string{"wörld", "b"}, lines(c))

		// Cloning never touches the source.
		assert.Equal(t, "héllo wörld\nbcd\nef\ng\nhij", s.Text("\n"))
		assert.False(t, s.Modified())
	})
}

func TestCloneSectionThroughInterface(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		var src TextStorage = f.FromString("one\ntwo\nthree", "\n")

		c, err := src.CloneSection(Range{Start: Position{Line: 1}, End: Position{Line: 2, Column: 3}})
		require.NoError(t, err)
		assert.Equal(t, []string{"two", "thr"}, lines(c))
		assert.Same(t, src.Factory(), c.Factory())
	})
}

func TestDeleteSection(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s := f.FromString("abc\ndef\nghi\njkl", "\n")

		require.NoError(t, s.DeleteSection(Range{Start: Position{Column: 1}, End: Position{Column: 2}}))
		assert.Equal(t, []string{"ac", "def", "ghi", "jkl"}, lines(s))

		require.NoError(t, s.DeleteSection(Range{Start: Position{Line: 1, Column: 2}, End: Position{Line: 3, Column: 1}}))
		assert.Equal(t, []string{"ac", "dekl"}, lines(s))

		require.NoError(t, s.DeleteSection(Range{End: Position{Line: 1, Column: 4}}))
		assert.True(t, s.Empty())
		assert.NoError(t, s.Validate())
	})
}

func TestInsertSection(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s := f.FromString("abc\ndef", "\n")

		require.NoError(t, s.InsertSection(Position{Column: 1}, f.FromString("X\nY\nZ", "\n")))
		assert.Equal(t, []string{"aX", "Y", "Zbc", "def"}, lines(s))

		require.NoError(t, s.InsertSection(Position{Line: 3, Column: 3}, f.FromString("!?", "\n")))
		assert.Equal(t, []string{"aX", "Y", "Zbc", "def!?"}, lines(s))

		require.NoError(t, s.InsertSection(Position{Line: 3}, f.FromString("\n", "\n")))
		assert.Equal(t, []string{"aX", "Y", "Zbc", "", "def!?"}, lines(s))
		assert.NoError(t, s.Validate())
	})
}

func TestInsertSectionIntoItself(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s := f.FromString("ab\ncd", "\n")
		require.NoError(t, s.InsertSection(Position{Column: 1}, s))
		assert.Equal(t, []string{"aab", "cdb", "cd"}, lines(s))
	})
}

func TestInsertManyLines(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		parts := make([]string, insertBlock+10)
		for i := range parts {
			parts[i] = fmt.Sprintf("line %d", i)
		}
		s := f.FromString("[]", "\n")
		require.NoError(t, s.InsertSection(Position{Column: 1}, f.FromString(strings.Join(parts, "\n"), "\n")))

		assert.Equal(t, len(parts), s.Len())
		got := lines(s)
		assert.Equal(t, "[line 0", got[0])
		assert.Equal(t, "line 4096", got[4096])
		assert.Equal(t, fmt.Sprintf("line %d]", len(parts)-1), got[len(got)-1])
		assert.NoError(t, s.Validate())
	})
}

func TestSectionErrors(t *testing.T) {
	tests := []struct {
		name string
		r    Range
		want error
	}{
		{"line past end", Range{End: Position{Line: 2}}, ErrLineOutOfRange},
		{"negative line", Range{Start: Position{Line: -1}}, ErrLineOutOfRange},
		{"reversed lines", Range{Start: Position{Line: 1}}, ErrRangeInvalid},
		{"reversed columns", Range{Start: Position{Column: 2}, End: Position{Column: 1}}, ErrRangeInvalid},
		{"start column past end", Range{Start: Position{Column: 4}, End: Position{Line: 1}}, ErrColumnOutOfRange},
		{"end column past end", Range{End: Position{Line: 1, Column: 3}}, ErrColumnOutOfRange},
	}
	forEachFactory(t, func(t *testing.T, f Factory) {
		s := f.FromString("abc\nde", "\n")
		for _, tt := range tests {
			_, err := s.CloneSection(tt.r)
			assert.ErrorIs(t, err, tt.want, "clone %s", tt.name)
			assert.ErrorIs(t, s.DeleteSection(tt.r), tt.want, "delete %s", tt.name)
		}
		assert.ErrorIs(t, s.InsertSection(Position{Line: 2}, f.New()), ErrLineOutOfRange)
		assert.ErrorIs(t, s.InsertSection(Position{Line: 1, Column: 3}, f.New()), ErrColumnOutOfRange)
		assert.Equal(t, "abc\nde", s.Text("\n"))
		assert.False(t, s.Modified())
	})
}

func TestTake(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s := f.FromString("a\nb", "\n")
		s.SetModified(true)

		moved := f.Take(s)
		assert.Equal(t, 0, s.Len())
		assert.Equal(t, []string{"a", "b"}, lines(moved))
		assert.True(t, moved.Modified())

		assert.ErrorIs(t, recoverError(func() { _ = s.DeleteSection(Range{}) }), ErrTaken)
		assert.ErrorIs(t, recoverError(func() { f.Take(s) }), ErrTaken)
		assert.ErrorIs(t, recoverError(func() { _ = moved.InsertSection(Position{}, s) }), ErrTaken)
	})
}

func TestTakeForeignStoragePanics(t *testing.T) {
	plain := NewPlainFactory()
	compact := NewCompactFactory()
	assert.ErrorIs(t, recoverError(func() { plain.Take(compact.New()) }), ErrBackendMismatch)
	assert.ErrorIs(t, recoverError(func() { compact.Take(plain.New()) }), ErrBackendMismatch)

	// Plain lines carry no factory state.
	other := NewPlainFactory()
	assert.Equal(t, 1, plain.Take(other.New()).Len())
}

func TestCrossBackendEdits(t *testing.T) {
	all := factories(t)
	for _, dst := range all {
		for _, src := range all {
			t.Run(fmt.Sprintf("%s<-%s", dst.Kind(), src.Kind()), func(t *testing.T) {
				s := dst.FromString("head|tail", "\n")
				require.NoError(t, s.InsertSection(Position{Column: 5}, src.FromString("x\ny\nz", "\n")))
				assert.Equal(t, []string{"head|x", "y", "ztail"}, lines(s))

				c := dst.Copy(src.FromString("1\n2", "\n"))
				assert.Equal(t, []string{"1", "2"}, lines(c))
				assert.False(t, c.Modified())
			})
		}
	}
}

func TestFromStream(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s, info, err := f.FromStream(strings.NewReader("a\r\nb\nc\rd"), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, lines(s))
		assert.Equal(t, LineEndingInfo{Unix: 1, Windows: 1, Macintosh: 1}, info)
		assert.False(t, s.Modified())

		s, info, err = f.FromStream(strings.NewReader("x\r"), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"x", ""}, lines(s))
		assert.Equal(t, 1, info.Macintosh)

		s, _, err = f.FromStream(strings.NewReader("\xEF\xBB\xBFbom"), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"bom"}, lines(s))

		s, _, err = f.FromStream(bytes.NewReader([]byte("caf\xe9\nna\xefve")), charmap.ISO8859_1)
		require.NoError(t, err)
		assert.Equal(t, []string{"café", "naïve"}, lines(s))
	})
}

func TestFromStreamEncodingNotPermitted(t *testing.T) {
	_, _, err := NewCompactFactory().FromStream(strings.NewReader("x"), charmap.CodePage037)
	assert.ErrorIs(t, err, ErrEncodingNotPermitted)

	_, _, err = NewPlainFactory().FromStream(bytes.NewReader([]byte{0xC1}), charmap.CodePage037)
	assert.NoError(t, err)
}

func TestFromReader(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s, err := f.FromReader(strings.NewReader("a\nb\r\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, lines(s))

		s, err = f.FromReader(strings.NewReader("a\n\n"))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", ""}, lines(s))

		s, err = f.FromReader(strings.NewReader(""))
		require.NoError(t, err)
		assert.True(t, s.Empty())
	})
}

func TestFromStringKeepsTrailingEmptyLine(t *testing.T) {
	s := NewPlainFactory().FromString("a\r\nb\r\n", "\r\n")
	assert.Equal(t, []string{"a", "b", ""}, lines(s))

	s = NewPlainFactory().FromString("a\nb", "")
	assert.Equal(t, []string{"a\nb"}, lines(s))
}

func TestExport(t *testing.T) {
	forEachFactory(t, func(t *testing.T, f Factory) {
		s := f.FromString("café\nx", "\n")

		var b bytes.Buffer
		n, err := s.Export(&b, charmap.ISO8859_1, "\r\n")
		require.NoError(t, err)
		assert.Equal(t, "caf\xe9\r\nx", b.String())
		assert.Equal(t, int64(7), n)

		b.Reset()
		n, err = s.WriteText(&b, "\n")
		require.NoError(t, err)
		assert.Equal(t, "café\nx", b.String())
		assert.Equal(t, int64(len("café\nx")), n)
	})
}

func TestExportPreserving(t *testing.T) {
	const text = "\xEF\xBB\xBFa\r\nb\nc\rd"
	s, _, err := NewCompactFactory().FromStream(strings.NewReader(text), nil)
	require.NoError(t, err)
	require.NoError(t, s.DeleteSection(Range{Start: Position{Line: 1}, End: Position{Line: 1, Column: 1}}))
	require.NoError(t, s.InsertSection(Position{Line: 1}, s.Factory().FromString("B", "\n")))

	var b bytes.Buffer
	_, err = s.ExportPreserving(&b, nil)
	require.NoError(t, err)
	assert.Equal(t, "\xEF\xBB\xBFa\r\nB\nc\rd", b.String())

	_, err = NewPlainFactory().New().ExportPreserving(&b, nil)
	assert.ErrorIs(t, err, ErrNotPreserving)
}

func TestExportPreservingAfterAppendToLoneCR(t *testing.T) {
	s := NewCompactFactory().FromString("a\r", "")
	require.Equal(t, []string{"a", ""}, lines(s))

	require.NoError(t, s.InsertSection(Position{Line: 1}, NewPlainFactory().FromString("\nb", "\n")))
	require.NoError(t, s.Validate())
	assert.Equal(t, []string{"a", "", "b"}, lines(s))

	var b bytes.Buffer
	_, err := s.ExportPreserving(&b, nil)
	require.NoError(t, err)
	again := NewCompactFactory().FromString(b.String(), "")
	assert.Equal(t, []string{"a", "", "b"}, lines(again))
}

func TestCompactDiagnostics(t *testing.T) {
	parts := make([]string, 100)
	for i := range parts {
		parts[i] = strings.Repeat("x", i%7)
	}
	s := NewCompactFactory(WithSparseness(4)).FromString(strings.Join(parts, "\n"), "\n")
	d := s.Diagnostics()
	assert.Equal(t, KindCompact, d.Backend)
	assert.Equal(t, 100, d.Lines)
	assert.Equal(t, len(strings.Join(parts, "\n")), d.Bytes)
	assert.GreaterOrEqual(t, d.Segments, 25)
	assert.NoError(t, s.Validate())
}

func TestNewFactory(t *testing.T) {
	for _, k := range Kinds {
		f, err := NewFactory(k)
		require.NoError(t, err)
		assert.Equal(t, k, f.Kind())
		assert.Equal(t, k == KindHardened, f.Hardened())
		assert.Equal(t, k == KindCompact, f.PreservesLineEndings())
	}
	_, err := NewFactory("rope")
	assert.ErrorIs(t, err, ErrUnknownBackend)

	k, err := ParseKind(" Compact ")
	require.NoError(t, err)
	assert.Equal(t, KindCompact, k)
	_, err = ParseKind("rope")
	assert.True(t, errors.Is(err, ErrUnknownBackend))
}
