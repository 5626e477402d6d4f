package storage

// LineEnding specifies a line ending style.
type LineEnding uint8

const (
	LineEndingLF   LineEnding = iota // Unix: \n
	LineEndingCRLF                   // Windows: \r\n
	LineEndingCR                     // Old Mac: \r
)

// ParseLineEnding maps "lf", "crlf" or "cr" to a line ending.
func ParseLineEnding(name string) (LineEnding, bool) {
	switch name {
	case "lf", "unix", "\n":
		return LineEndingLF, true
	case "crlf", "windows", "\r\n":
		return LineEndingCRLF, true
	case "cr", "mac", "\r":
		return LineEndingCR, true
	}
	return LineEndingLF, false
}

// String returns the string representation of the line ending.
func (le LineEnding) String() string {
	switch le {
	case LineEndingCRLF:
		return "\\r\\n"
	case LineEndingCR:
		return "\\r"
	default:
		return "\\n"
	}
}

// Name returns the name ParseLineEnding accepts: "lf", "crlf" or "cr".
func (le LineEnding) Name() string {
	switch le {
	case LineEndingCRLF:
		return "crlf"
	case LineEndingCR:
		return "cr"
	default:
		return "lf"
	}
}

// Sequence returns the actual line ending characters.
func (le LineEnding) Sequence() string {
	switch le {
	case LineEndingCRLF:
		return "\r\n"
	case LineEndingCR:
		return "\r"
	default:
		return "\n"
	}
}

// LineEndingInfo counts the line terminators found while reading a stream.
type LineEndingInfo struct {
	Unix      int
	Windows   int
	Macintosh int
}

// Total returns the number of terminators counted.
func (i LineEndingInfo) Total() int {
	return i.Unix + i.Windows + i.Macintosh
}

// Dominant returns the most frequent line ending, preferring LF on ties and
// when nothing was counted.
func (i LineEndingInfo) Dominant() LineEnding {
	switch {
	case i.Windows > i.Unix && i.Windows >= i.Macintosh:
		return LineEndingCRLF
	case i.Macintosh > i.Unix && i.Macintosh > i.Windows:
		return LineEndingCR
	default:
		return LineEndingLF
	}
}

// Mixed reports whether more than one kind of terminator was seen.
func (i LineEndingInfo) Mixed() bool {
	kinds := 0
	for _, n := range []int{i.Unix, i.Windows, i.Macintosh} {
		if n > 0 {
			kinds++
		}
	}
	return kinds > 1
}
