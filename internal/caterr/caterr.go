package caterr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Wrap them with New/Field so callers can match with errors.Is.
var (
	ErrInvalidFileType           = errors.New("invalid file type")
	ErrMalformedProjectFile      = errors.New("malformed project file")
	ErrUnsupportedProjectVersion = errors.New("unsupported project version")
	ErrAnchorNotFound            = errors.New("anchor not found")
	ErrInvalidTimeFormat         = errors.New("invalid time format")
	ErrZipEntryMissing           = errors.New("zip entry missing")

	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)

// Error carries the field and raw value that caused a failure so the caller
// can show a precise message.
type Error struct {
	Kind  error
	Op    string
	Field string
	Value string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" (field %s", e.Field)
		if e.Value != "" {
			msg += fmt.Sprintf(", value %q", truncate(e.Value, 64))
		}
		msg += ")"
	} else if e.Value != "" {
		msg += fmt.Sprintf(" (value %q)", truncate(e.Value, 64))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New creates an error of the given kind for operation op.
func New(kind error, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Field creates an error of the given kind pointing at a field and its raw value.
func Field(kind error, op, field, value string) *Error {
	return &Error{Kind: kind, Op: op, Field: field, Value: value}
}

// Fatal reports whether err aborts the current operation. AnchorNotFound and
// InvalidTimeFormat degrade to a fallback instead.
func Fatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrAnchorNotFound) && !errors.Is(err, ErrInvalidTimeFormat)
}

// HTTPStatus maps an error kind to a response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidFileType),
		errors.Is(err, ErrMalformedProjectFile),
		errors.Is(err, ErrUnsupportedProjectVersion),
		errors.Is(err, ErrInvalidTimeFormat),
		errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrZipEntryMissing):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
