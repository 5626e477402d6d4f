package cli

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/rivo/uniseg"
	"github.com/spf13/cobra"
	"github.com/tidwall/sjson"

	"github.com/dshills/linecore/internal/engine/storage"
	"github.com/dshills/linecore/internal/logging"
	"github.com/dshills/linecore/internal/renderer/widthcache"
)

// statReport is what stat prints.
type statReport struct {
	Path        string
	Encoding    string
	Chars       int
	Diagnostics storage.Diagnostics
	Endings     storage.LineEndingInfo
	WidestLine  int
	WidestWidth int
	Cache       widthcache.Stats
}

func newStatCommand(a *app) *cobra.Command {
	var asJSON, metrics bool
	var encName string

	cmd := &cobra.Command{
		Use:   "stat FILE",
		Short: "Report line, character and layout statistics for a file",
		Long: `Load FILE with the configured backend and report its line count,
character count, storage diagnostics, line ending counts and widest line.

Display widths are measured per grapheme cluster and memoised in a line width
cache bounded by width_cache.max_count.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.load(args[0], encName)
			if err != nil {
				return err
			}
			defer doc.Close()

			cache := a.cfg.NewWidthCache(logging.WithComponent(a.logger, "widthcache"))
			rep := measure(doc, cache)

			out := cmd.OutOrStdout()
			switch {
			case metrics:
				return writeStatMetrics(out, cache)
			case asJSON:
				return writeStatJSON(out, rep)
			}
			writeStatText(out, rep)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print width cache metrics in Prometheus text format")
	cmd.MarkFlagsMutuallyExclusive("json", "metrics")
	cmd.Flags().StringVar(&encName, "encoding", "", "encoding of FILE (default from config)")

	return cmd
}

// measure walks every line once, filling the width cache, then reads the
// widest line back through it.
func measure(doc *document, cache *widthcache.Cache) statReport {
	s := doc.text
	rep := statReport{
		Path:        doc.path,
		Encoding:    storage.EncodingName(doc.enc),
		Diagnostics: s.Diagnostics(),
		Endings:     doc.endings,
	}
	for i := range s.Len() {
		rep.Chars += s.Line(i).Len()
		if w := lineWidth(s, cache, i); w > rep.WidestWidth {
			rep.WidestLine, rep.WidestWidth = i, w
		}
	}
	rep.WidestWidth = lineWidth(s, cache, rep.WidestLine)
	rep.Cache = cache.Stats()
	return rep
}

// lineWidth returns the display width of line i, from the cache when the
// line is inside its window.
func lineWidth(s *storage.Storage, cache *widthcache.Cache, i int) int {
	if w, ok := cache.TryGet(i); ok {
		return w
	}
	d := s.Line(i).Decode()
	defer d.Release()
	w := runesWidth(d.Runes())
	cache.Set(i, w)
	return w
}

// runesWidth measures runes grapheme by grapheme from a scratch UTF-8 buffer
// that is wiped afterwards, so hardened plaintext never lands in a string.
func runesWidth(runes []rune) int {
	buf := make([]byte, 0, len(runes)*utf8.UTFMax)
	for _, r := range runes {
		buf = utf8.AppendRune(buf, r)
	}
	defer clear(buf)

	width, state := 0, -1
	for rest := buf; len(rest) > 0; {
		var w int
		_, rest, w, state = uniseg.FirstGraphemeCluster(rest, state)
		width += w
	}
	return width
}

func writeStatText(w io.Writer, rep statReport) {
	d := rep.Diagnostics
	fmt.Fprintf(w, "file:      %s\n", rep.Path)
	fmt.Fprintf(w, "backend:   %s\n", d.Backend)
	fmt.Fprintf(w, "encoding:  %s\n", rep.Encoding)
	fmt.Fprintf(w, "lines:     %d\n", d.Lines)
	fmt.Fprintf(w, "chars:     %d\n", rep.Chars)
	fmt.Fprintf(w, "bytes:     %d\n", d.Bytes)
	if d.Backend == storage.KindCompact {
		fmt.Fprintf(w, "segments:  %d\n", d.Segments)
		fmt.Fprintf(w, "bom:       %t\n", d.BOM)
	}
	e := rep.Endings
	fmt.Fprintf(w, "endings:   lf=%d crlf=%d cr=%d dominant=%s mixed=%t\n",
		e.Unix, e.Windows, e.Macintosh, e.Dominant().Name(), e.Mixed())
	fmt.Fprintf(w, "widest:    line %d, %d columns\n", rep.WidestLine+1, rep.WidestWidth)
}

func writeStatJSON(w io.Writer, rep statReport) error {
	d := rep.Diagnostics
	e := rep.Endings

	doc := "{}"
	var err error
	set := func(path string, v any) {
		if err == nil {
			doc, err = sjson.Set(doc, path, v)
		}
	}
	set("file", rep.Path)
	set("backend", string(d.Backend))
	set("encoding", rep.Encoding)
	set("lines", d.Lines)
	set("chars", rep.Chars)
	set("bytes", d.Bytes)
	if d.Backend == storage.KindCompact {
		set("segments", d.Segments)
		set("bom", d.BOM)
	}
	set("endings.lf", e.Unix)
	set("endings.crlf", e.Windows)
	set("endings.cr", e.Macintosh)
	set("endings.dominant", e.Dominant().Name())
	set("endings.mixed", e.Mixed())
	set("widest.line", rep.WidestLine+1)
	set("widest.width", rep.WidestWidth)
	set("width_cache.hits", rep.Cache.Hits)
	set("width_cache.misses", rep.Cache.Misses)
	set("width_cache.clears", rep.Cache.Clears)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	_, err = fmt.Fprintln(w, doc)
	return err
}

// writeStatMetrics gathers the width cache collector from a private registry
// and writes it in the text exposition format.
func writeStatMetrics(w io.Writer, cache *widthcache.Cache) error {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(widthcache.NewCollector("linecore", cache, nil)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
