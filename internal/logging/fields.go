package logging

// Field names for structured logging.
const (
	FieldComponent = "component"
	FieldError     = "err"
	FieldPath      = "path"
	FieldBackend   = "backend"
	FieldEncoding  = "encoding"
	FieldLines     = "lines"
	FieldBytes     = "bytes"
	FieldVersion   = "version"
	FieldCommit    = "commit"
	FieldBuilt     = "built"
)
