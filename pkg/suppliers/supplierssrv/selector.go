package supplierssrv

import (
	"context"
	"sort"

	"github.com/axonlabs/axongate/pkg/asyncx"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/axonlabs/axongate/pkg/logx"
	"github.com/axonlabs/axongate/pkg/suppliers"
)

// Selector implements credential selection and probing over the encrypted
// store. Callers are internal service principals that have already asserted
// a tenant scope; nothing here reaches the public gateway.
type Selector struct {
	repo   suppliers.Repository
	cursor suppliers.Cursor
	prober suppliers.Prober
}

// NewSelector wires the selector.
func NewSelector(repo suppliers.Repository, cursor suppliers.Cursor, prober suppliers.Prober) *Selector {
	return &Selector{repo: repo, cursor: cursor, prober: prober}
}

// Select returns the tenant's credentials with decrypted secrets, ordered
// by the chosen strategy. The head of the slice is the one a caller should
// use first; its last-used stamp is touched on the way out.
func (s *Selector) Select(ctx context.Context, tenantID kernel.TenantID, opts suppliers.SelectOptions) ([]suppliers.View, error) {
	if opts.Strategy == "" {
		opts.Strategy = suppliers.StrategyFirstAvailable
	}
	if !opts.Strategy.Valid() {
		return nil, suppliers.ErrInvalidStrategy(opts.Strategy)
	}

	scope, err := kernel.NewTenantScope(tenantID)
	if err != nil {
		return nil, err
	}

	creds, err := s.repo.ListByTenant(ctx, scope, true)
	if err != nil {
		return nil, err
	}

	creds = filter(creds, opts)
	if len(creds) == 0 {
		return []suppliers.View{}, nil
	}

	switch opts.Strategy {
	case suppliers.StrategyRoundRobin:
		creds = s.rotate(ctx, tenantID, creds)
	case suppliers.StrategyLeastUsed:
		sortByIdle(creds)
	}

	if err := s.repo.TouchUsed(ctx, creds[0].ID); err != nil {
		logx.WithError(err).WithField("credential_id", creds[0].ID.String()).
			Warn("failed to stamp credential usage")
	}

	views := make([]suppliers.View, 0, len(creds))
	for _, c := range creds {
		views = append(views, suppliers.View{
			ID:       c.ID,
			Provider: c.Provider,
			Name:     c.Name,
			Secret:   c.Secret,
			Endpoint: c.Endpoint,
			Model:    c.ModelConfigs["default"],
		})
	}
	return views, nil
}

// Test runs one live probe against the provider behind a credential.
func (s *Selector) Test(ctx context.Context, tenantID kernel.TenantID, id kernel.CredentialID, kind suppliers.ProbeKind, model string) (*suppliers.ProbeResult, error) {
	scope, err := kernel.NewTenantScope(tenantID)
	if err != nil {
		return nil, err
	}

	cred, err := s.repo.FetchByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if kind == "" {
		kind = suppliers.ProbeModelList
	}

	result := s.prober.Probe(ctx, cred, kind, model)
	if result.Success {
		if err := s.repo.TouchUsed(ctx, cred.ID); err != nil {
			logx.WithError(err).WithField("credential_id", cred.ID.String()).
				Warn("failed to stamp credential usage")
		}
	}
	return result, nil
}

// TestAll probes every active credential of the tenant concurrently and
// returns the results keyed by credential id. Individual probe failures are
// results, not errors, so one bad key never hides the others.
func (s *Selector) TestAll(ctx context.Context, tenantID kernel.TenantID, kind suppliers.ProbeKind) (map[string]*suppliers.ProbeResult, error) {
	scope, err := kernel.NewTenantScope(tenantID)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = suppliers.ProbeModelList
	}

	creds, err := s.repo.ListByTenant(ctx, scope, true)
	if err != nil {
		return nil, err
	}

	active := make([]*suppliers.Credential, 0, len(creds))
	for _, c := range creds {
		if c.IsActive {
			active = append(active, c)
		}
	}

	results, err := asyncx.Map(ctx, 4, active, func(ctx context.Context, c *suppliers.Credential) (*suppliers.ProbeResult, error) {
		return s.prober.Probe(ctx, c, kind, ""), nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]*suppliers.ProbeResult, len(results))
	for i, r := range results {
		out[active[i].ID.String()] = r
	}
	return out, nil
}

// rotate shifts the slice by the tenant's round-robin cursor. A cursor
// failure degrades to first_available rather than failing the selection.
func (s *Selector) rotate(ctx context.Context, tenantID kernel.TenantID, creds []*suppliers.Credential) []*suppliers.Credential {
	pos, err := s.cursor.Next(ctx, tenantID)
	if err != nil {
		logx.WithError(err).WithField("tenant_id", tenantID.String()).
			Warn("selection cursor unavailable, using creation order")
		return creds
	}

	offset := int(pos % int64(len(creds)))
	return append(creds[offset:], creds[:offset]...)
}

// filter applies the active flag and provider list.
func filter(creds []*suppliers.Credential, opts suppliers.SelectOptions) []*suppliers.Credential {
	allowed := map[suppliers.Provider]struct{}{}
	for _, p := range opts.Providers {
		allowed[p] = struct{}{}
	}

	out := creds[:0]
	for _, c := range creds {
		if opts.OnlyActive && !c.IsActive {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[c.Provider]; !ok {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// sortByIdle orders by descending idle time: never-used first, then the
// longest-idle, ties broken by creation time.
func sortByIdle(creds []*suppliers.Credential) {
	sort.SliceStable(creds, func(i, j int) bool {
		a, b := creds[i], creds[j]
		switch {
		case a.LastUsedAt == nil && b.LastUsedAt != nil:
			return true
		case a.LastUsedAt != nil && b.LastUsedAt == nil:
			return false
		case a.LastUsedAt == nil && b.LastUsedAt == nil:
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if !a.LastUsedAt.Equal(*b.LastUsedAt) {
			return a.LastUsedAt.Before(*b.LastUsedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

// IsServicePrincipal gates the internal selection surface: admins and
// holders of the internal suppliers permission only.
func IsServicePrincipal(p *kernel.Principal) bool {
	return p != nil && (p.IsAdmin() || p.HasPermission("internal:suppliers"))
}
