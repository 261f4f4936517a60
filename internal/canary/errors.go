package canary

import (
	"errors"
	"fmt"
	"strings"
)

// Canary client errors.
var (
	ErrConnection = errors.New("canary service unreachable")
	ErrAuth       = errors.New("canary authentication failed")
	ErrParse      = errors.New("canary response malformed")
	ErrStatus     = errors.New("canary request rejected")
)

// ConnectionError is a transport-level failure. It is never retried by the client.
type ConnectionError struct {
	Op  string // Operation that failed, e.g. "GET /api/locations"
	Err error  // Underlying transport error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrConnection, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

// AuthError is returned when the login handshake fails.
// Status is zero when the failure was not an HTTP status (e.g. a missing cookie).
type AuthError struct {
	Status int
	Reason string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", ErrAuth, e.Reason, e.Status)
	}
	return fmt.Sprintf("%s: %s", ErrAuth, e.Reason)
}

func (e *AuthError) Unwrap() error {
	return ErrAuth
}

// Parse failure reasons.
const (
	ReasonMissing      = "missing field"
	ReasonWrongType    = "wrong type"
	ReasonUnknownValue = "unknown value"
	ReasonInvalidJSON  = "invalid JSON"
	ReasonNotArray     = "expected JSON array"
	ReasonNotObject    = "expected JSON object"
)

// ParseError describes a response body that could not be turned into a value.
type ParseError struct {
	Entity string // Value type being built, e.g. "Location"
	Field  string // JSON field at fault, empty for whole-body failures
	Value  string // Offending raw value, set for unknown enums and fractional ids
	Reason string
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(ErrParse.Error())
	b.WriteString(": ")
	b.WriteString(e.Entity)
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Value != "" {
		fmt.Fprintf(&b, " %q", e.Value)
	}
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// MaxStatusBody caps how much of a failed response is kept on a StatusError.
const MaxStatusBody = 512

// StatusError is returned by resource calls whose final response was not 2xx.
type StatusError struct {
	Status int
	Body   string // at most MaxStatusBody bytes of the response
}

// NewStatusError keeps the leading MaxStatusBody bytes of body.
func NewStatusError(status int, body []byte) *StatusError {
	if len(body) > MaxStatusBody {
		body = body[:MaxStatusBody]
	}
	return &StatusError{Status: status, Body: strings.ToValidUTF8(string(body), "")}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrStatus, e.Status, strings.TrimSpace(e.Body))
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}
