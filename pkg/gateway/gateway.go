package gateway

import (
	"net/http"

	"github.com/axonlabs/axongate/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("gateway")

var (
	// CodeUpstreamError wraps upstream failures that do not carry the
	// standard error envelope.
	CodeUpstreamError       = ErrRegistry.Register(5003, errx.TypeExternal, http.StatusBadGateway, "Upstream service returned an unexpected error")
	CodeUpstreamUnavailable = ErrRegistry.Register(5004, errx.TypeExternal, http.StatusServiceUnavailable, "Upstream service is unavailable")
	CodeUpstreamTimeout     = ErrRegistry.Register(4003, errx.TypeTimeout, http.StatusGatewayTimeout, "Upstream service timed out")
	CodeRouteNotFound       = ErrRegistry.Register(3012, errx.TypeNotFound, http.StatusNotFound, "No route matches the requested path")
)

func ErrUpstreamError(excerpt string) *errx.Error {
	return ErrRegistry.New(CodeUpstreamError).WithDetail("upstream_body", excerpt)
}

func ErrUpstreamUnavailable(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeUpstreamUnavailable, cause)
}

func ErrUpstreamTimeout() *errx.Error { return ErrRegistry.New(CodeUpstreamTimeout) }
func ErrRouteNotFound() *errx.Error   { return ErrRegistry.New(CodeRouteNotFound) }
