package errx

// Type represents the category of error
type Type string

const (
	// TypeInternal represents internal server errors
	TypeInternal Type = "INTERNAL"

	// TypeValidation represents input validation errors
	TypeValidation Type = "VALIDATION"

	// TypeAuthentication represents missing or invalid credentials
	TypeAuthentication Type = "AUTHENTICATION"

	// TypeAuthorization represents insufficient permissions
	TypeAuthorization Type = "AUTHORIZATION"

	// TypeNotFound represents resource not found errors
	TypeNotFound Type = "NOT_FOUND"

	// TypeConflict represents resource conflict errors
	TypeConflict Type = "CONFLICT"

	// TypeRateLimit represents admission denials
	TypeRateLimit Type = "RATE_LIMIT"

	// TypeTimeout represents deadline-exceeded errors
	TypeTimeout Type = "TIMEOUT"

	// TypeExternal represents errors from downstream services
	TypeExternal Type = "EXTERNAL"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}

// Code families. Every registered code is a four-digit number whose
// thousands digit names the family. The gateway is the only layer that
// turns these into HTTP responses; internals pass the typed error around.
const (
	FamilyInput    = 1000 // input validation, rate limiting
	FamilyAuth     = 2000 // authentication, authorization
	FamilyResource = 3000 // missing or conflicting resources
	FamilyTimeout  = 4000 // deadline exceeded
	FamilyInternal = 5000 // downstream and internal failures
)
