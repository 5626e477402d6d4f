package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/linecore/internal/engine/storage"
	"github.com/dshills/linecore/internal/logging"
	"github.com/dshills/linecore/internal/renderer/widthcache"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	kind, err := cfg.Kind()
	require.NoError(t, err)
	assert.Equal(t, storage.KindPlain, kind)
	assert.Equal(t, storage.LineEndingLF, cfg.LineEnding())
	assert.Equal(t, widthcache.DefaultMaxCount, cfg.WidthCache.MaxCount)
}

func TestLoadTOML(t *testing.T) {
	fsys := fstest.MapFS{
		"linecore.toml": {Data: []byte(`
[storage]
backend = "compact"
sparseness = 64
line_ending = "crlf"

[width_cache]
max_count = 50

[logging]
level = "debug"
`)},
	}
	cfg, err := LoadFS(fsys, "linecore.toml")
	require.NoError(t, err)

	assert.Equal(t, "compact", cfg.Storage.Backend)
	assert.Equal(t, 64, cfg.Storage.Sparseness)
	assert.Equal(t, storage.LineEndingCRLF, cfg.LineEnding())
	assert.Equal(t, 50, cfg.WidthCache.MaxCount)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unset keys keep their defaults.
	assert.Equal(t, Default().Storage.BlockSize, cfg.Storage.BlockSize)
	assert.Equal(t, "utf-8", cfg.Storage.Encoding)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	fsys := fstest.MapFS{
		"linecore.yml": {Data: []byte("storage:\n  backend: hardened\n  encoding: latin1\nlogging:\n  timestamps: true\n")},
		"empty.yaml":   {Data: nil},
	}
	cfg, err := LoadFS(fsys, "linecore.yml")
	require.NoError(t, err)
	assert.Equal(t, "hardened", cfg.Storage.Backend)
	assert.Equal(t, "latin1", cfg.Storage.Encoding)
	assert.True(t, cfg.Logging.Timestamps)

	cfg, err = LoadFS(fsys, "empty.yaml")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.toml":     {Data: []byte("[storage]\nbackend = \n")},
		"unknown.toml": {Data: []byte("[storage]\ncolour = \"blue\"\n")},
		"unknown.yaml": {Data: []byte("storage:\n  colour: blue\n")},
		"conf.ini":     {Data: []byte("backend=plain")},
	}

	_, err := LoadFS(fsys, "missing.toml")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = LoadFS(fsys, "conf.ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	var perr *ParseError
	_, err = LoadFS(fsys, "bad.toml")
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad.toml", perr.Path)
	assert.Positive(t, perr.Line)

	_, err = LoadFS(fsys, "unknown.toml")
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Message, "colour")

	_, err = LoadFS(fsys, "unknown.yaml")
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "colour")
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linecore.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage]\nblock_size = 256\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Storage.BlockSize)
}

func TestMarshalRoundTrip(t *testing.T) {
	want := Default()
	want.Storage.Backend = "compact"
	want.WidthCache.MaxCount = 7

	for _, ext := range []string{".toml", ".yaml"} {
		data, err := Marshal(want, ext)
		require.NoError(t, err, ext)

		got, err := LoadFS(fstest.MapFS{"c" + ext: {Data: data}}, "c"+ext)
		require.NoError(t, err, ext)
		assert.Equal(t, want, got, ext)
	}

	_, err := Marshal(want, ".json")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "tape"
	cfg.Storage.BlockSize = 100
	cfg.Storage.Sparseness = 1
	cfg.Storage.LineEnding = "nel"
	cfg.Storage.Encoding = "klingon"
	cfg.WidthCache.MaxCount = 0
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.ErrorIs(t, err, ErrValidationFailed)

	var paths []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var verr *ValidationError
		require.True(t, errors.As(e, &verr))
		paths = append(paths, verr.Path)
	}
	assert.Equal(t, []string{
		"storage.backend",
		"storage.sparseness",
		"storage.block_size",
		"storage.line_ending",
		"storage.encoding",
		"width_cache.max_count",
		"logging.level",
	}, paths)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LINECORE_BACKEND":         "compact",
		"LINECORE_SPARSENESS":      "16",
		"LINECORE_WIDTH_CACHE_MAX": " 20 ",
		"LINECORE_LOG_LEVEL":       "error",
		"LINECORE_LOG_TIMESTAMPS":  "true",
		"LINECORE_ENCODING":        "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, "compact", cfg.Storage.Backend)
	assert.Equal(t, 16, cfg.Storage.Sparseness)
	assert.Equal(t, 20, cfg.WidthCache.MaxCount)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Timestamps)
	assert.Equal(t, "utf-8", cfg.Storage.Encoding, "empty values are ignored")

	env["LINECORE_BLOCK_SIZE"] = "big"
	err := Default().applyEnv(lookup)
	assert.ErrorIs(t, err, ErrInvalidEnv)
	assert.Contains(t, err.Error(), "LINECORE_BLOCK_SIZE")
}

func TestApplyEnvFromProcess(t *testing.T) {
	t.Setenv("LINECORE_LINE_ENDING", "cr")
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, storage.LineEndingCR, cfg.LineEnding())
}

func TestEnvVarsSorted(t *testing.T) {
	vars := EnvVars()
	require.Len(t, vars, len(envMappings))
	for i := 1; i < len(vars); i++ {
		assert.Less(t, vars[i-1].Name, vars[i].Name)
	}
	for _, v := range vars {
		assert.NotEmpty(t, v.Usage, v.Name)
	}
}

func TestNewFactory(t *testing.T) {
	logger := logging.Discard()
	for _, kind := range storage.Kinds {
		cfg := Default()
		cfg.Storage.Backend = string(kind)

		f, err := cfg.NewFactory(logger)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, f.Kind())
		if hf, ok := f.(*storage.HardenedFactory); ok {
			require.NoError(t, hf.Close())
		}
	}

	cfg := Default()
	cfg.Storage.Backend = "tape"
	_, err := cfg.NewFactory(logger)
	assert.ErrorIs(t, err, storage.ErrUnknownBackend)
}

func TestNewWidthCache(t *testing.T) {
	cfg := Default()
	cfg.WidthCache.MaxCount = 3
	assert.Equal(t, 3, cfg.NewWidthCache(logging.Discard()).MaxCount())

	lc := cfg.LoggerConfig()
	assert.Equal(t, "warn", lc.Level)
	assert.Equal(t, "linecore", lc.Prefix)
}
