package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/linecore/internal/engine/storage"
	"github.com/dshills/linecore/internal/logging"
)

// ErrInvalidEOL indicates an --eol value that names no line ending.
var ErrInvalidEOL = errors.New("invalid line ending")

const eolPreserve = "preserve"

func newConvertCommand(a *app) *cobra.Command {
	var eolName, encName, toEncName string

	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Rewrite a file with other line endings or another encoding",
		Long: `Load IN with the configured backend and write it to OUT.

--eol selects the line ending written between lines: lf, crlf or cr. The
default is the ending found most often in IN. "preserve" writes each line
with the ending it was read with and needs the compact backend.

OUT is written to a temporary file in the same directory and renamed into
place, so a failed conversion leaves no partial output.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.convert(args[0], args[1], eolName, encName, toEncName)
		},
	}

	cmd.Flags().StringVar(&eolName, "eol", "", "line ending: lf, crlf, cr or preserve (default: dominant in IN)")
	cmd.Flags().StringVar(&encName, "encoding", "", "encoding of IN (default from config)")
	cmd.Flags().StringVar(&toEncName, "to-encoding", "", "encoding of OUT (default: encoding of IN)")

	return cmd
}

func (a *app) convert(in, out, eolName, encName, toEncName string) (err error) {
	var eol string
	switch eolName {
	case "", eolPreserve:
	default:
		le, ok := storage.ParseLineEnding(eolName)
		if !ok {
			return fmt.Errorf("%w: %q (want lf, crlf, cr or preserve)", ErrInvalidEOL, eolName)
		}
		eol = le.Sequence()
	}

	doc, err := a.load(in, encName)
	if err != nil {
		return err
	}
	defer doc.Close()

	toEnc := doc.enc
	if toEncName != "" {
		if toEnc, err = storage.LookupEncoding(toEncName); err != nil {
			return err
		}
	}
	if eolName == "" {
		eol = doc.endings.Dominant().Sequence()
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), ".linecore-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = tmp.Chmod(0o644); err != nil {
		return err
	}

	w := bufio.NewWriter(tmp)
	var n int64
	if eolName == eolPreserve {
		n, err = doc.text.ExportPreserving(w, toEnc)
		if errors.Is(err, storage.ErrNotPreserving) {
			return fmt.Errorf("%w: use --backend compact with --eol preserve", err)
		}
	} else {
		n, err = doc.text.Export(w, toEnc, eol)
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err = w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err = os.Rename(tmp.Name(), out); err != nil {
		return err
	}

	a.logger.Info("converted",
		logging.FieldPath, out,
		logging.FieldLines, doc.text.Len(),
		logging.FieldBytes, n,
		logging.FieldEncoding, storage.EncodingName(toEnc))
	return nil
}
