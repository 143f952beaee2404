package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrSessionState        = errors.New("session state")
	ErrConflict            = errors.New("conflict")
	ErrPaymentVerification = errors.New("payment verification failed")
	ErrConfiguration       = errors.New("configuration error")
	ErrUpstream            = errors.New("upstream failure")
	ErrTemporary           = errors.New("temporary failure")
	ErrInternal            = errors.New("internal error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// PublicError carries the exact message shown to the client next to its kind.
type PublicError struct {
	Kind    error
	Message string
	Cause   error
}

func NewPublicError(kind error, message string, cause error) *PublicError {
	return &PublicError{Kind: kind, Message: message, Cause: cause}
}

func (e *PublicError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *PublicError) Unwrap() []error {
	out := []error{e.Kind}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// PublicMessage returns the client-facing message of err, or fallback.
func PublicMessage(err error, fallback string) string {
	var pub *PublicError
	if errors.As(err, &pub) && pub.Message != "" {
		return pub.Message
	}
	return fallback
}

// ValidationError reports per-field failures keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
