package cli

import (
	"errors"
	"io/fs"

	"github.com/dshills/linecore/internal/config"
	"github.com/dshills/linecore/internal/engine/storage"
)

// Exit codes for linecore.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitFailure indicates a failure with no more specific code.
	ExitFailure = 1

	// ExitInvalidUsage indicates invalid command-line usage.
	ExitInvalidUsage = 64

	// ExitDataError indicates input that could not be decoded or held.
	ExitDataError = 65

	// ExitIOError indicates file I/O errors.
	ExitIOError = 74

	// ExitConfigError indicates configuration file or environment errors.
	ExitConfigError = 78
)

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	var perr *config.ParseError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, config.ErrFileNotFound),
		errors.Is(err, config.ErrUnsupportedFormat),
		errors.Is(err, config.ErrValidationFailed),
		errors.Is(err, config.ErrInvalidEnv),
		errors.As(err, &perr):
		return ExitConfigError
	case errors.Is(err, ErrInvalidEOL),
		errors.Is(err, ErrPlaintextTerminal),
		errors.Is(err, storage.ErrUnknownEncoding),
		errors.Is(err, storage.ErrNotPreserving):
		return ExitInvalidUsage
	case errors.Is(err, storage.ErrEncodingNotPermitted):
		return ExitDataError
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return ExitIOError
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ExitIOError
	}
	return ExitFailure
}
