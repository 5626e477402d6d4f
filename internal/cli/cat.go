package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/linecore/internal/engine/storage"
)

// ErrPlaintextTerminal is returned when the hardened backend would print
// plaintext to a terminal without --force.
var ErrPlaintextTerminal = errors.New("refusing to print hardened storage to a terminal")

func newCatCommand(a *app) *cobra.Command {
	var force bool
	var encName string

	cmd := &cobra.Command{
		Use:   "cat FILE",
		Short: "Load a file and print it as UTF-8",
		Long: `Load FILE with the configured backend and print its lines as UTF-8,
joined by the line ending found most often in FILE.

With the hardened backend, printing to a terminal leaves the plaintext in
the terminal's scrollback, so cat refuses unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			kind, err := a.cfg.Kind()
			if err != nil {
				return err
			}
			if kind == storage.KindHardened && isTerminal(out) && !force {
				return fmt.Errorf("%w: pass --force or redirect output", ErrPlaintextTerminal)
			}

			doc, err := a.load(args[0], encName)
			if err != nil {
				return err
			}
			defer doc.Close()

			// WriteText stages output in chunks it wipes; no extra buffering.
			_, err = doc.text.WriteText(out, doc.endings.Dominant().Sequence())
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "print hardened plaintext to a terminal anyway")
	cmd.Flags().StringVar(&encName, "encoding", "", "encoding of FILE (default from config)")

	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
