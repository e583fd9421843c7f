package gateway

import (
	"sort"
	"strings"
	"time"

	"github.com/axonlabs/axongate/pkg/config"
)

// Route maps one path prefix to an upstream. The table is immutable after
// startup.
type Route struct {
	Prefix      string
	Target      string
	ServiceTag  string
	RequireAuth bool
	Timeout     time.Duration
}

// Table resolves request paths to routes by longest matching prefix.
type Table struct {
	routes []Route
}

// NewTable builds a table, ordered so that the longest prefix is examined
// first.
func NewTable(routes []Route) *Table {
	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Table{routes: sorted}
}

// TableFromConfig builds the standard proxy table from configured upstreams.
// Everything under /api/v1/<tag> requires auth.
func TableFromConfig(cfg config.GatewayConfig) *Table {
	routes := make([]Route, 0, len(cfg.Upstreams))
	for _, up := range cfg.Upstreams {
		timeout := up.Timeout
		if timeout <= 0 {
			timeout = cfg.DefaultTimeout
		}
		routes = append(routes, Route{
			Prefix:      "/api/v1/" + up.Tag,
			Target:      up.BaseURL,
			ServiceTag:  up.Tag,
			RequireAuth: true,
			Timeout:     timeout,
		})
	}
	return NewTable(routes)
}

// Match returns the longest-prefix route for a path, or nil. A prefix
// matches whole path segments only, so /api/v1/chatx does not hit
// /api/v1/chat.
func (t *Table) Match(path string) *Route {
	for i := range t.routes {
		r := &t.routes[i]
		if path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			return r
		}
	}
	return nil
}

// Routes returns the table contents, longest prefix first.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}
