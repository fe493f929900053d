package models

import "time"

// Tenant plans. The starter plan runs without IP reputation enrichment.
const (
	PlanStarter  = "starter"
	PlanBusiness = "business"
)

// Tenant statuses. Suspended tenants keep their data but cannot ingest.
const (
	TenantActive    = "active"
	TenantSuspended = "suspended"
)

// Tenant is an isolated customer account. All events, incidents and
// rate limits are scoped to a tenant.
type Tenant struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Plan          string    `db:"plan" json:"plan"`
	Status        string    `db:"status" json:"status"`
	IngestKeyHash string    `db:"ingest_key_hash" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Agent is a host-side collector submitting event batches.
type Agent struct {
	ID         string    `db:"id" json:"id"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	OS         string    `db:"os" json:"os,omitempty"`
	Version    string    `db:"version" json:"version,omitempty"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// Asset is a monitored host, upserted from agent registrations.
type Asset struct {
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	Host       string    `db:"host" json:"host"`
	OS         string    `db:"os" json:"os,omitempty"`
	AgentID    string    `db:"agent_id" json:"agent_id,omitempty"`
	LastSeenAt time.Time `db:"last_seen_at" json:"last_seen_at"`
}
