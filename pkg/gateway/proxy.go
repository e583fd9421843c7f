package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/axonlabs/axongate/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// upstreamExcerptLimit caps how much of a non-conforming upstream error body
// is echoed back to the client.
const upstreamExcerptLimit = 500

// hopByHopHeaders never cross the proxy in either direction.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Proxy forwards matched requests to their upstream. One shared client with
// a bounded keep-alive pool serves every route; per-request deadlines come
// from the route.
type Proxy struct {
	table  *Table
	client *http.Client
}

// NewProxy builds the proxy over a route table.
func NewProxy(table *Table) *Proxy {
	return &Proxy{
		table: table,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
			// Redirects from upstreams pass through to the client.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Handler resolves the route and forwards. Authentication has already run;
// the proxy only consumes its outcome.
func (p *Proxy) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		route := p.table.Match(c.Path())
		if route == nil {
			return ErrRouteNotFound()
		}
		return p.forward(c, route)
	}
}

func (p *Proxy) forward(c *fiber.Ctx, route *Route) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), route.Timeout)

	req, err := p.buildRequest(ctx, c, route)
	if err != nil {
		cancel()
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		cancel()
		return translateTransportError(err, route)
	}

	if isEventStream(c, resp) {
		// cancel ownership moves into the stream writer.
		p.stream(c, resp, cancel)
		return nil
	}
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return translateTransportError(err, route)
	}

	if resp.StatusCode >= 400 {
		return p.translateUpstreamError(c, resp, body, route)
	}

	copyResponseHeaders(c, resp)
	return c.Status(resp.StatusCode).Send(body)
}

// buildRequest re-targets the inbound request at the upstream, stripping
// what must not cross and injecting the identity headers.
func (p *Proxy) buildRequest(ctx context.Context, c *fiber.Ctx, route *Route) (*http.Request, error) {
	target := strings.TrimSuffix(route.Target, "/") + c.Path()
	if qs := string(c.Request().URI().QueryString()); qs != "" {
		target += "?" + qs
	}

	var body io.Reader
	if len(c.Body()) > 0 {
		body = bytes.NewReader(c.Body())
	}

	req, err := http.NewRequestWithContext(ctx, c.Method(), target, body)
	if err != nil {
		return nil, ErrUpstreamUnavailable(err)
	}

	c.Request().Header.VisitAll(func(key, value []byte) {
		req.Header.Add(string(key), string(value))
	})

	// Host and Content-Length are recomputed by the client; hop-by-hop and
	// identity headers must not leak through.
	req.Header.Del("Host")
	req.Header.Del("Content-Length")
	for _, h := range hopByHopHeaders {
		req.Header.Del(h)
	}
	for _, h := range identityHeaders {
		req.Header.Del(h)
	}

	req.Header.Set(RequestIDHeader, requestID(c))
	if pr := PrincipalFrom(c); pr != nil {
		req.Header.Set("X-User-Id", pr.UserID.String())
		req.Header.Set("X-Tenant-Id", pr.TenantID.String())
		req.Header.Set("X-User-Role", pr.Role)
		req.Header.Set("X-User-Email", pr.Email)
	}

	return req, nil
}

// stream pipes the upstream response to the client one chunk at a time. A
// failed write means the client is gone; the upstream read is aborted
// through the context so nothing keeps fanning out to a dead connection.
func (p *Proxy) stream(c *fiber.Ctx, resp *http.Response, cancel context.CancelFunc) {
	copyResponseHeaders(c, resp)
	c.Status(resp.StatusCode)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer resp.Body.Close()

		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				if _, werr := w.Write(buf[:n]); werr != nil {
					return
				}
				if werr := w.Flush(); werr != nil {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
					logx.WithError(err).Warn("upstream stream ended abnormally")
				}
				return
			}
		}
	}))
}

// translateUpstreamError re-emits conforming upstream error envelopes under
// this request's id and wraps everything else.
func (p *Proxy) translateUpstreamError(c *fiber.Ctx, resp *http.Response, body []byte, route *Route) error {
	var upstream struct {
		Error struct {
			Code    string                 `json:"code"`
			Message string                 `json:"message"`
			Details map[string]interface{} `json:"details"`
		} `json:"error"`
	}

	if err := json.Unmarshal(body, &upstream); err == nil && upstream.Error.Code != "" {
		return RespondError(c, resp.StatusCode, upstream.Error.Code, upstream.Error.Message, upstream.Error.Details)
	}

	excerpt := string(body)
	if len(excerpt) > upstreamExcerptLimit {
		excerpt = excerpt[:upstreamExcerptLimit]
	}

	logx.WithFields(map[string]interface{}{
		"service": route.ServiceTag,
		"status":  resp.StatusCode,
	}).Warn("upstream returned non-conforming error")

	return ErrUpstreamError(excerpt).WithDetail("upstream_status", resp.StatusCode)
}

func translateTransportError(err error, route *Route) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return ErrUpstreamTimeout().WithDetail("service", route.ServiceTag)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing to answer.
		return nil
	default:
		return ErrUpstreamUnavailable(err).WithDetail("service", route.ServiceTag)
	}
}

// isEventStream reports whether this exchange should be piped rather than
// buffered: an SSE content type, an explicit stream flag, or a /stream path
// segment.
func isEventStream(c *fiber.Ctx, resp *http.Response) bool {
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/event-stream") {
		return true
	}
	if c.Query("stream") == "true" {
		return true
	}
	path := c.Path()
	return strings.HasSuffix(path, "/stream") || strings.Contains(path, "/stream/")
}

func copyResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for key, values := range resp.Header {
		if isHopByHop(key) {
			continue
		}
		for _, v := range values {
			c.Set(key, v)
		}
	}
	c.Set(RequestIDHeader, requestID(c))
}

func isHopByHop(key string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, key) {
			return true
		}
	}
	return false
}
