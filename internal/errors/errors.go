package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Common error values for the storefront client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrInvalidToken     = errors.New("invalid token")

	// Cart errors
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmptyCart       = errors.New("cart is empty")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// ValidationError is raised client-side before any network call. Fields maps
// the offending field name to a user-facing message. Err optionally names the
// rule that failed, so errors.Is works against the sentinels above.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// NewRuleError builds a single-field ValidationError from a sentinel
func NewRuleError(field string, rule error) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: rule.Error()}, Err: rule}
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Field returns the message for a single field, empty if the field passed.
func (e *ValidationError) Field(name string) string {
	return e.Fields[name]
}

// NetworkError is a transport failure: no response was received. Timeouts are
// reported as NetworkError too.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HttpError is a non-2xx response.
type HttpError struct {
	Status  int
	Body    []byte
	Message string // "message" field of the body, if the backend sent one
}

func (e *HttpError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, http.StatusText(e.Status))
}

// AuthExpiredError is a 401. Receiving one tears the whole session down.
type AuthExpiredError struct {
	*HttpError
}

func (e *AuthExpiredError) Error() string {
	return "session expired: " + e.HttpError.Error()
}

func (e *AuthExpiredError) Unwrap() []error {
	return []error{e.HttpError, ErrSessionExpired}
}

// UserMessage renders err as a message suitable for a notification.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	var authErr *AuthExpiredError
	var httpErr *HttpError
	var netErr *NetworkError

	switch {
	case As(err, &validationErr):
		return validationErr.Error()
	case As(err, &authErr):
		return "Your session has expired, please log in again"
	case As(err, &netErr):
		return "Could not reach the store, check your connection and try again"
	case As(err, &httpErr):
		if httpErr.Message != "" {
			return httpErr.Message
		}
		return fmt.Sprintf("The store responded with an error (%d)", httpErr.Status)
	case Is(err, ErrEmptyCart):
		return "Your cart is empty"
	case Is(err, ErrNotAuthenticated):
		return "Please log in to continue"
	}
	return err.Error()
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
