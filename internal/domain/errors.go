package domain

import (
	"errors"
	"sort"
	"strings"
)

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeInternal     ErrorType = iota // unexpected failures
	ErrorTypeValidation                    // malformed or missing input, never retried
	ErrorTypeConflict                      // ledger-local double booking
	ErrorTypeRoomConflict                  // provider reported an overlapping room reservation
	ErrorTypeProviderAuth                  // token/credential failure against the calendar provider
	ErrorTypeProviderIO                    // a single provider call failed
	ErrorTypeNotFound                      // identity key or booking lookup failed
	ErrorTypeAuthorization                 // caller lacks rights for the operation
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeConflict:
		return "conflict"
	case ErrorTypeRoomConflict:
		return "room_conflict"
	case ErrorTypeProviderAuth:
		return "provider_auth"
	case ErrorTypeProviderIO:
		return "provider_io"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeAuthorization:
		return "authorization"
	default:
		return "internal"
	}
}

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	// Fields holds field level validation messages, keyed by field name.
	Fields map[string]string
	Err    error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// IsType reports whether err carries the given semantic type anywhere in its chain.
func IsType(err error, t ErrorType) bool {
	if err == nil {
		return false
	}
	return GetErrorType(err) == t
}

func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

// NewFieldValidationError builds a validation error from field level messages.
// It returns nil when fields is empty so callers can return it unconditionally.
func NewFieldValidationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &DomainError{Type: ErrorTypeValidation, Message: "validation failed", Fields: fields}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

func NewRoomConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeRoomConflict, Message: message, Err: errors.Join(err...)}
}

func NewProviderAuthError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeProviderAuth, Message: message, Err: errors.Join(err...)}
}

func NewProviderIOError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeProviderIO, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewAuthorizationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeAuthorization, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}
