package suppliersinfra

import (
	"context"
	"fmt"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/redis/go-redis/v9"
)

// RedisCursor keeps the round-robin position per tenant. INCR gives each
// selection a fresh position; the counter never resets, callers take it
// modulo the candidate count.
type RedisCursor struct {
	rdb *redis.Client
}

// NewRedisCursor creates the cursor store.
func NewRedisCursor(rdb *redis.Client) *RedisCursor {
	return &RedisCursor{rdb: rdb}
}

func cursorKey(tenantID kernel.TenantID) string {
	return fmt.Sprintf("suppliers:cursor:%s", tenantID)
}

// Next advances and returns the tenant's cursor.
func (c *RedisCursor) Next(ctx context.Context, tenantID kernel.TenantID) (int64, error) {
	n, err := c.rdb.Incr(ctx, cursorKey(tenantID)).Result()
	if err != nil {
		return 0, errx.Wrap(err, "failed to advance selection cursor", errx.TypeInternal).
			WithDetail("tenant_id", tenantID.String())
	}
	return n, nil
}
