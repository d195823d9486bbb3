// Package dsserr defines the typed error kinds shared by the coordination
// core and the HTTP request pipeline, and their mapping to status codes.
package dsserr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a core error independent of its HTTP rendering.
type Kind int

const (
	// Unauthenticated means the bearer token was missing, malformed, expired,
	// badly signed, or otherwise undecodable.
	Unauthenticated Kind = iota
	// Forbidden means the token was valid but lacked a required scope, or the
	// caller is not the owner of the entity it tried to mutate.
	Forbidden
	// NotFound means the referenced entity ID does not exist.
	NotFound
	// VersionConflict means old_version did not match the entity's current version.
	VersionConflict
	// InvalidRequest means the request body or parameters violate the wire contract.
	InvalidRequest
	// ServerMisconfigured means the node's own configuration (key, audience) is incomplete.
	ServerMisconfigured
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "Unauthenticated"
	case Forbidden:
		return "Forbidden"
	case NotFound:
		return "NotFound"
	case VersionConflict:
		return "VersionConflict"
	case InvalidRequest:
		return "InvalidRequest"
	case ServerMisconfigured:
		return "ServerMisconfigured"
	default:
		return "Unknown"
	}
}

// Status returns the HTTP status code this kind maps to.
func (k Kind) Status() int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case VersionConflict:
		return http.StatusConflict
	case InvalidRequest:
		return http.StatusBadRequest
	case ServerMisconfigured:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Error is a core error carrying a Kind and a caller-facing message. The
// message is placed verbatim into the `{"message": ...}` wire envelope, so
// it must never include cryptographic or internal detail beyond what §7 of
// the contract allows.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticatedf(format string, args ...any) *Error {
	return New(Unauthenticated, format, args...)
}

func Forbiddenf(format string, args ...any) *Error {
	return New(Forbidden, format, args...)
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, format, args...)
}

func VersionConflictf(format string, args ...any) *Error {
	return New(VersionConflict, format, args...)
}

func InvalidRequestf(format string, args ...any) *Error {
	return New(InvalidRequest, format, args...)
}

func ServerMisconfiguredf(format string, args ...any) *Error {
	return New(ServerMisconfigured, format, args...)
}

// As reports whether err is (or wraps) a *Error and returns it.
func As(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}
