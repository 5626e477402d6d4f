package storage

import (
	"fmt"
	"strings"

	gencoding "github.com/gdamore/encoding"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// LookupEncoding resolves an encoding name. The empty name is UTF-8. Common
// single-byte names map to the github.com/gdamore/encoding tables; anything
// else is looked up in the IANA registry.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "utf-8-bom", "utf8bom":
		return unicode.UTF8BOM, nil
	case "ascii", "us-ascii":
		return gencoding.ASCII, nil
	case "latin1", "iso-8859-1", "iso8859-1":
		return gencoding.ISO8859_1, nil
	case "latin5", "iso-8859-9", "iso8859-9":
		return gencoding.ISO8859_9, nil
	case "ebcdic":
		return gencoding.EBCDIC, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
	return enc, nil
}

// EncodingName returns a display name for enc.
func EncodingName(enc encoding.Encoding) string {
	switch enc {
	case nil, unicode.UTF8:
		return "utf-8"
	case unicode.UTF8BOM:
		return "utf-8-bom"
	case gencoding.ASCII:
		return "us-ascii"
	case gencoding.ISO8859_1:
		return "iso-8859-1"
	case gencoding.ISO8859_9:
		return "iso-8859-9"
	case gencoding.EBCDIC:
		return "ebcdic"
	}
	if name, err := ianaindex.IANA.Name(enc); err == nil {
		return strings.ToLower(name)
	}
	return fmt.Sprintf("%v", enc)
}
