package trace

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a trace could not be imported.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindUnrecognizedFormat ErrorKind = "unrecognized_format"
	KindIOFailure          ErrorKind = "io_failure"
)

var (
	ErrNotFound           = errors.New("trace not found")
	ErrUnrecognizedFormat = errors.New("unrecognized trace format")
	ErrIOFailure          = errors.New("trace i/o failure")
)

// ImportError is returned when a trace cannot be turned into durations.
// No partial trace is returned alongside it.
type ImportError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *ImportError) Error() string {
	msg := string(e.Kind)
	switch e.Kind {
	case KindNotFound:
		msg = "file not found"
	case KindUnrecognizedFormat:
		msg = "unrecognized format"
	case KindIOFailure:
		msg = "read failed"
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can use errors.Is(err, ErrNotFound).
func (e *ImportError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUnrecognizedFormat:
		return e.Kind == KindUnrecognizedFormat
	case ErrIOFailure:
		return e.Kind == KindIOFailure
	}
	return false
}

func importError(kind ErrorKind, path string, err error) *ImportError {
	return &ImportError{Kind: kind, Path: path, Err: err}
}
