// Package apierrors defines the ApiError kind hierarchy shared by the pool,
// the text file engine, and the HTTP surface, along with its fixed JSON
// envelope and HTTP status mapping.
package apierrors

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"net/http"
	"os"

	pkgerrors "github.com/pkg/errors"
)

// Kind is the discriminator serialized as "name" in the JSON envelope.
type Kind string

const (
	KindInternal         Kind = "InternalError"
	KindNotFound         Kind = "NotFound"
	KindPermissionDenied Kind = "PermissionDenied"
	KindNotAcceptable    Kind = "NotAcceptable"
	KindParameter        Kind = "ParameterError"
	KindText             Kind = "TextError"
)

// Error is the error type returned by every pool/textfile/httpapi operation.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New creates an Error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap annotates an existing error with a Kind, keeping it as the cause for
// Unwrap/errors.Is/errors.As and for stack-trace reporting via pkg/errors.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: errorsWrap(cause, message)}
}

// errorsWrap defers to github.com/pkg/errors so that internal errors keep a
// stack trace for operator-facing logs, without forcing every call site to
// import pkg/errors directly.
func errorsWrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, message)
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// apiErrorJSON mirrors the fixed shape:
// {"@type":"ApiError","name":Kind,"message":String}
type apiErrorJSON struct {
	Type    string `json:"@type"`
	Name    Kind   `json:"name"`
	Message string `json:"message"`
}

// MarshalJSON implements the fixed ApiError wire shape.
func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(apiErrorJSON{Type: "ApiError", Name: e.Kind, Message: e.Message})
}

// StatusCode maps a Kind to the HTTP status:
// Internal->500, PermissionDenied->403, NotAcceptable->406, otherwise->404.
func StatusCode(err error) int {
	var apiErr *Error
	if !stderrors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Kind {
	case KindInternal:
		return http.StatusInternalServerError
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotAcceptable:
		return http.StatusNotAcceptable
	default:
		// NotFound, ParameterError, TextError
		return http.StatusNotFound
	}
}

// FromIOError maps a filesystem error to a Kind: not-found -> NotFound;
// permission-denied -> PermissionDenied; anything else -> InternalError.
func FromIOError(err error) *Error {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, fs.ErrNotExist), stderrors.Is(err, os.ErrNotExist):
		return Wrap(KindNotFound, "file not found", err)
	case stderrors.Is(err, fs.ErrPermission), stderrors.Is(err, os.ErrPermission):
		return Wrap(KindPermissionDenied, "permission denied", err)
	default:
		return Wrap(KindInternal, "file I/O error", err)
	}
}

// As implements errors.As support so apierrors.Error can be found by kind
// through arbitrarily wrapped causes (e.g. an *Error wrapped by pkg/errors).
func As(err error, target *Kind) bool {
	var apiErr *Error
	if stderrors.As(err, &apiErr) {
		*target = apiErr.Kind
		return true
	}
	return false
}
