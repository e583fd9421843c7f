package errx

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error is a coded error with context and metadata. Code is a four-digit
// string ("2002") so it serializes unambiguously in JSON envelopes.
type Error struct {
	// Code is the four-digit error code
	Code string `json:"code"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// Type categorizes the error
	Type Type `json:"type"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"http_status"`

	// Details contains additional context about the error
	Details map[string]interface{} `json:"details,omitempty"`

	// Err is the underlying error (not exported in JSON)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error and returns the error for chaining
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithDetails adds multiple details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithMessage replaces the default message and returns the error for chaining
func (e *Error) WithMessage(message string) *Error {
	e.Message = message
	return e
}

// MarshalJSON implements json.Marshaler
func (e *Error) MarshalJSON() ([]byte, error) {
	type Alias Error
	return json.Marshal(&struct {
		*Alias
		Error string `json:"error,omitempty"`
	}{
		Alias: (*Alias)(e),
		Error: e.Error(),
	})
}

// New creates an ad-hoc error with the family's generic code. Prefer
// registered codes for anything a client may need to match on.
func New(message string, errType Type) *Error {
	return &Error{
		Code:       fmt.Sprintf("%d", typeToFamily(errType)+1),
		Message:    message,
		Type:       errType,
		HTTPStatus: typeToHTTPStatus(errType),
		Details:    make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with additional context. If err already is an
// *Error its code, status, and details are preserved so leaf codes survive
// the trip through orchestration layers.
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Code:       existing.Code,
			Message:    message,
			Type:       existing.Type,
			HTTPStatus: existing.HTTPStatus,
			Details:    existing.Details,
			Err:        err,
		}
	}

	return &Error{
		Code:       fmt.Sprintf("%d", typeToFamily(errType)+1),
		Message:    message,
		Type:       errType,
		HTTPStatus: typeToHTTPStatus(errType),
		Details:    make(map[string]interface{}),
		Err:        err,
	}
}

// Wrapf wraps an error with a formatted message
func Wrapf(err error, errType Type, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...), errType)
}

// Is checks if an error matches the target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// HasCode reports whether err carries the given four-digit code.
func HasCode(err error, code *Code) bool {
	if err == nil || code == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code.Code
}

// typeToFamily maps error types to their code family
func typeToFamily(t Type) int {
	switch t {
	case TypeValidation, TypeRateLimit:
		return FamilyInput
	case TypeAuthentication, TypeAuthorization:
		return FamilyAuth
	case TypeNotFound, TypeConflict:
		return FamilyResource
	case TypeTimeout:
		return FamilyTimeout
	default:
		return FamilyInternal
	}
}

// typeToHTTPStatus maps error types to HTTP status codes
func typeToHTTPStatus(t Type) int {
	switch t {
	case TypeValidation:
		return 400
	case TypeAuthentication:
		return 401
	case TypeAuthorization:
		return 403
	case TypeNotFound:
		return 404
	case TypeConflict:
		return 409
	case TypeRateLimit:
		return 429
	case TypeTimeout:
		return 504
	case TypeExternal:
		return 502
	default:
		return 500
	}
}
