package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "LINECORE_"

type envFieldType int

const (
	envTypeString envFieldType = iota
	envTypeInt
	envTypeBool
)

type envMapping struct {
	field string
	typ   envFieldType
	usage string
}

// envMappings maps variable names without the prefix to setting paths.
var envMappings = map[string]envMapping{
	"BACKEND":         {field: "storage.backend", typ: envTypeString, usage: "Storage backend: plain, compact or hardened"},
	"SPARSENESS":      {field: "storage.sparseness", typ: envTypeInt, usage: "Lines per skip map segment"},
	"BLOCK_SIZE":      {field: "storage.block_size", typ: envTypeInt, usage: "Fragment block size, a power of two"},
	"LINE_ENDING":     {field: "storage.line_ending", typ: envTypeString, usage: "Terminator for new lines: lf, crlf or cr"},
	"ENCODING":        {field: "storage.encoding", typ: envTypeString, usage: "Default file encoding"},
	"WIDTH_CACHE_MAX": {field: "width_cache.max_count", typ: envTypeInt, usage: "Maximum cached line widths"},
	"LOG_LEVEL":       {field: "logging.level", typ: envTypeString, usage: "Log level: debug, info, warn or error"},
	"LOG_TIMESTAMPS":  {field: "logging.timestamps", typ: envTypeBool, usage: "Timestamp log entries: true or false"},
}

// ApplyEnv overrides settings from LINECORE_* variables. Empty variables
// are ignored.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for suffix, m := range envMappings {
		name := EnvPrefix + suffix
		value, ok := lookup(name)
		if !ok || value == "" {
			continue
		}
		if err := c.set(m, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) set(m envMapping, value string) error {
	switch m.typ {
	case envTypeInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %q is not an integer", ErrInvalidEnv, value)
		}
		switch m.field {
		case "storage.sparseness":
			c.Storage.Sparseness = n
		case "storage.block_size":
			c.Storage.BlockSize = n
		case "width_cache.max_count":
			c.WidthCache.MaxCount = n
		default:
			return fmt.Errorf("unknown integer field: %s", m.field)
		}
	case envTypeBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: %q is not a boolean", ErrInvalidEnv, value)
		}
		switch m.field {
		case "logging.timestamps":
			c.Logging.Timestamps = b
		default:
			return fmt.Errorf("unknown boolean field: %s", m.field)
		}
	default:
		switch m.field {
		case "storage.backend":
			c.Storage.Backend = value
		case "storage.line_ending":
			c.Storage.LineEnding = value
		case "storage.encoding":
			c.Storage.Encoding = value
		case "logging.level":
			c.Logging.Level = value
		default:
			return fmt.Errorf("unknown string field: %s", m.field)
		}
	}
	return nil
}

// EnvVar is a documented environment override.
type EnvVar struct {
	Name  string
	Field string
	Usage string
}

// EnvVars lists the supported overrides sorted by name.
func EnvVars() []EnvVar {
	vars := make([]EnvVar, 0, len(envMappings))
	for suffix, m := range envMappings {
		vars = append(vars, EnvVar{Name: EnvPrefix + suffix, Field: m.field, Usage: m.usage})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}
