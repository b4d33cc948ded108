package providers

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrTransport     = errors.New("transport failure")
	ErrData          = errors.New("malformed response")
	ErrQuotaExceeded = errors.New("provider quota exceeded")
	ErrUnsupported   = errors.New("identifier not supported")
)

// Error attributes a failure to the source that produced it.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(source string, kind error, format string, args ...any) error {
	return &Error{Source: source, Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))}
}

// Kind names the class of err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrData):
		return "data"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	case errors.Is(err, ErrTransport), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "transport"
	default:
		return "unknown"
	}
}
