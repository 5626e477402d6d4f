// Package cli provides the Cobra command structure for linecore.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/text/encoding"

	"github.com/dshills/linecore/internal/config"
	"github.com/dshills/linecore/internal/engine/storage"
	"github.com/dshills/linecore/internal/logging"
)

// BuildInfo holds build-time version information.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// app is the state shared by all subcommands. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	backend    string

	cfg    *config.Config
	logger *log.Logger
}

// NewRootCommand creates the root linecore command with all subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "linecore",
		Short: "Inspect and convert text files through linecore storage backends",
		Long: `linecore loads text files into one of its line storage backends and
reports on them or writes them back out.

Backends:
  plain     lines as strings in a fragmented array (default)
  compact   UTF-8 gap buffer indexed by a line skip map, keeps line endings
  hardened  lines encrypted in memory, plaintext wiped after use

Settings come from defaults, then --config (TOML or YAML), then LINECORE_*
environment variables, then flags.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (.toml, .yaml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&a.backend, "backend", "", "storage backend: plain, compact, hardened")

	rootCmd.AddCommand(newStatCommand(a))
	rootCmd.AddCommand(newConvertCommand(a))
	rootCmd.AddCommand(newCatCommand(a))
	rootCmd.AddCommand(newEnvCommand())
	rootCmd.AddCommand(newVersionCommand(info))

	return rootCmd
}

// setup resolves the configuration and installs the process logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Storage.Backend = a.backend
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lc := cfg.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	a.logger = logging.New(lc)
	logging.SetDefault(a.logger)
	a.cfg = cfg

	a.logger.Debug("configuration resolved",
		logging.FieldPath, a.configPath,
		logging.FieldBackend, cfg.Storage.Backend,
		logging.FieldEncoding, cfg.Storage.Encoding)
	return nil
}

// document is a file loaded into storage.
type document struct {
	path    string
	factory storage.Factory
	text    *storage.Storage
	endings storage.LineEndingInfo
	enc     encoding.Encoding
}

// Close releases the factory; hardened factories wipe their key.
func (d *document) Close() error {
	if c, ok := d.factory.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// load reads path with the configured backend. encName overrides the
// configured encoding when set.
func (a *app) load(path, encName string) (*document, error) {
	if encName == "" {
		encName = a.cfg.Storage.Encoding
	}
	enc, err := storage.LookupEncoding(encName)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	factory, err := a.cfg.NewFactory(logging.WithComponent(a.logger, "storage"))
	if err != nil {
		return nil, err
	}
	doc := &document{path: path, factory: factory, enc: enc}

	doc.text, doc.endings, err = factory.FromStream(bufio.NewReader(f), enc)
	if err != nil {
		_ = doc.Close()
		if errors.Is(err, storage.ErrEncodingNotPermitted) {
			return nil, fmt.Errorf("%s: %w (%s backend cannot hold %s)",
				path, err, factory.Kind(), storage.EncodingName(enc))
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
