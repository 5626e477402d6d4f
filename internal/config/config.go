// Package config holds the settings of the linecore tools: which storage
// backend to build, how it is tuned, the width cache bound and the log level.
//
// Settings are resolved from defaults, then an optional TOML or YAML file,
// then LINECORE_* environment variables, then command line flags.
package config

import (
	"errors"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding"

	"github.com/dshills/linecore/internal/engine/fragment"
	"github.com/dshills/linecore/internal/engine/skipmap"
	"github.com/dshills/linecore/internal/engine/storage"
	"github.com/dshills/linecore/internal/logging"
	"github.com/dshills/linecore/internal/renderer/widthcache"
)

// Config is the full settings tree.
type Config struct {
	Storage    StorageConfig    `toml:"storage" yaml:"storage"`
	WidthCache WidthCacheConfig `toml:"width_cache" yaml:"width_cache"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging"`
}

// StorageConfig selects and tunes the text storage backend.
type StorageConfig struct {
	// Backend is "plain", "compact" or "hardened".
	Backend string `toml:"backend" yaml:"backend"`
	// Sparseness is the number of lines per skip map segment (compact only).
	Sparseness int `toml:"sparseness" yaml:"sparseness"`
	// BlockSize is the fragment block size, a power of two (plain and hardened).
	BlockSize int `toml:"block_size" yaml:"block_size"`
	// LineEnding is the terminator for new lines: "lf", "crlf" or "cr".
	LineEnding string `toml:"line_ending" yaml:"line_ending"`
	// Encoding is the default encoding of files read from disk.
	Encoding string `toml:"encoding" yaml:"encoding"`
}

// WidthCacheConfig bounds the line width cache.
type WidthCacheConfig struct {
	MaxCount int `toml:"max_count" yaml:"max_count"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level"`
	Timestamps bool   `toml:"timestamps" yaml:"timestamps"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:    string(storage.KindPlain),
			Sparseness: skipmap.DefaultSparseness,
			BlockSize:  fragment.DefaultBlockSize,
			LineEnding: "lf",
			Encoding:   "utf-8",
		},
		WidthCache: WidthCacheConfig{
			MaxCount: widthcache.DefaultMaxCount,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// Validate reports every invalid setting. The returned error matches
// ErrValidationFailed and wraps one *ValidationError per problem.
func (c *Config) Validate() error {
	var errs []error
	bad := func(path, msg string, v any) {
		errs = append(errs, &ValidationError{Path: path, Message: msg, Value: v})
	}

	if _, err := storage.ParseKind(c.Storage.Backend); err != nil {
		bad("storage.backend", "unknown backend", c.Storage.Backend)
	}
	if c.Storage.Sparseness < 2 {
		bad("storage.sparseness", "must be at least 2", c.Storage.Sparseness)
	}
	if n := c.Storage.BlockSize; n <= 0 || n&(n-1) != 0 {
		bad("storage.block_size", "must be a positive power of two", n)
	}
	if _, ok := storage.ParseLineEnding(c.Storage.LineEnding); !ok {
		bad("storage.line_ending", "must be lf, crlf or cr", c.Storage.LineEnding)
	}
	if _, err := storage.LookupEncoding(c.Storage.Encoding); err != nil {
		bad("storage.encoding", "unknown encoding", c.Storage.Encoding)
	}
	if c.WidthCache.MaxCount <= 0 {
		bad("width_cache.max_count", "must be positive", c.WidthCache.MaxCount)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		bad("logging.level", "must be debug, info, warn or error", c.Logging.Level)
	}
	return errors.Join(errs...)
}

// Kind returns the configured backend kind.
func (c *Config) Kind() (storage.Kind, error) {
	return storage.ParseKind(c.Storage.Backend)
}

// LineEnding returns the configured terminator for new lines.
func (c *Config) LineEnding() storage.LineEnding {
	le, _ := storage.ParseLineEnding(c.Storage.LineEnding)
	return le
}

// Encoding resolves the configured file encoding.
func (c *Config) Encoding() (encoding.Encoding, error) {
	return storage.LookupEncoding(c.Storage.Encoding)
}

// StorageOptions converts the storage settings to factory options.
func (c *Config) StorageOptions(logger *log.Logger) []storage.Option {
	return []storage.Option{
		storage.WithLogger(logger),
		storage.WithSparseness(c.Storage.Sparseness),
		storage.WithBlockSize(c.Storage.BlockSize),
		storage.WithLineEnding(c.LineEnding()),
	}
}

// NewFactory builds the configured storage factory. Hardened factories
// must be closed by the caller.
func (c *Config) NewFactory(logger *log.Logger) (storage.Factory, error) {
	kind, err := c.Kind()
	if err != nil {
		return nil, err
	}
	return storage.NewFactory(kind, c.StorageOptions(logger)...)
}

// NewWidthCache builds a width cache with the configured bound.
func (c *Config) NewWidthCache(logger *log.Logger) *widthcache.Cache {
	return widthcache.New(widthcache.WithMaxCount(c.WidthCache.MaxCount), widthcache.WithLogger(logger))
}

// LoggerConfig converts the logging settings for logging.New.
func (c *Config) LoggerConfig() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Logging.Level
	lc.Timestamps = c.Logging.Timestamps
	return lc
}
