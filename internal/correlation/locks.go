package correlation

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

const lockStripes = 64

// tenantLocks serializes evaluations per tenant. The upsert is a
// read-modify-write on the (tenant, kind) aggregate, so two concurrent
// evaluations for one tenant would lose increments. Tenants map onto a
// fixed stripe set by murmur3 hash; unrelated tenants sharing a stripe
// only cost a little extra waiting.
type tenantLocks struct {
	stripes [lockStripes]sync.Mutex
}

func newTenantLocks() *tenantLocks {
	return &tenantLocks{}
}

func (l *tenantLocks) lock(tenantID string) *sync.Mutex {
	idx := murmur3.Sum64([]byte(tenantID)) % lockStripes
	return &l.stripes[idx]
}
