package errx

import (
	"fmt"
	"sync"
)

// Code represents a registered error code
type Code struct {
	Code       string
	Number     int
	Module     string
	Type       Type
	HTTPStatus int
	Message    string
}

// Registry manages the error codes of one module. Codes are four-digit
// numbers whose thousands digit names the family (1xxx input/ratelimit,
// 2xxx auth/authz, 3xxx resource, 4xxx timeout, 5xxx downstream/internal);
// a module may register codes from several families.
type Registry struct {
	module string
	codes  map[int]*Code
	mu     sync.RWMutex
}

// NewRegistry creates a new error registry for a module
func NewRegistry(module string) *Registry {
	return &Registry{
		module: module,
		codes:  make(map[int]*Code),
	}
}

// Register registers a new error code. The number must be a four-digit code;
// anything else is a programming error and panics at init time.
func (r *Registry) Register(number int, errType Type, httpStatus int, message string) *Code {
	if number < 1000 || number > 9999 {
		panic(fmt.Sprintf("errx: %s registered non four-digit code %d", r.module, number))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.codes[number]; dup {
		panic(fmt.Sprintf("errx: %s registered code %d twice", r.module, number))
	}

	code := &Code{
		Code:       fmt.Sprintf("%04d", number),
		Number:     number,
		Module:     r.module,
		Type:       errType,
		HTTPStatus: httpStatus,
		Message:    message,
	}

	r.codes[number] = code
	return code
}

// New creates a new error from a registered code
func (r *Registry) New(code *Code) *Error {
	return &Error{
		Code:       code.Code,
		Message:    code.Message,
		Type:       code.Type,
		HTTPStatus: code.HTTPStatus,
		Details:    make(map[string]interface{}),
	}
}

// NewWithMessage creates a new error with a custom message
func (r *Registry) NewWithMessage(code *Code, message string) *Error {
	return &Error{
		Code:       code.Code,
		Message:    message,
		Type:       code.Type,
		HTTPStatus: code.HTTPStatus,
		Details:    make(map[string]interface{}),
	}
}

// NewWithCause creates a new error wrapping an underlying cause
func (r *Registry) NewWithCause(code *Code, cause error) *Error {
	return &Error{
		Code:       code.Code,
		Message:    code.Message,
		Type:       code.Type,
		HTTPStatus: code.HTTPStatus,
		Details:    make(map[string]interface{}),
		Err:        cause,
	}
}

// Get retrieves a registered error code
func (r *Registry) Get(number int) (*Code, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code, exists := r.codes[number]
	return code, exists
}

// Codes returns a copy of all registered error codes
func (r *Registry) Codes() map[int]*Code {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make(map[int]*Code, len(r.codes))
	for k, v := range r.codes {
		codes[k] = v
	}
	return codes
}
