package models

import "time"

// Incident kinds produced by the correlation rules.
const (
	KindBruteForce          = "brute_force"
	KindSuspiciousExecution = "suspicious_execution"
	KindCriticalChange      = "critical_change"
)

// Incident severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Incident statuses. An incident opens on first rule match and only an
// operator acknowledgement moves it out of open; there is no way back.
const (
	StatusOpen         = "open"
	StatusAcknowledged = "acknowledged"
)

// Incident is the accumulating aggregate for a detected pattern,
// keyed by (tenant, kind). At most one open incident exists per key.
type Incident struct {
	ID        string                 `db:"id" json:"id"`
	TenantID  string                 `db:"tenant_id" json:"tenant_id"`
	Kind      string                 `db:"kind" json:"kind"`
	Severity  string                 `db:"severity" json:"severity"`
	FirstSeen time.Time              `db:"first_seen" json:"first_seen"`
	LastSeen  time.Time              `db:"last_seen" json:"last_seen"`
	Count     int                    `db:"count" json:"count"`
	Context   map[string]interface{} `db:"context" json:"context"`
	Status    string                 `db:"status" json:"status"`
}

// IncidentPayload is the shape handed to the notification collaborator.
type IncidentPayload struct {
	TenantID string                 `json:"tenant_id"`
	Kind     string                 `json:"kind"`
	Severity string                 `json:"severity"`
	Context  map[string]interface{} `json:"context"`
}

// SeverityWeight maps severities to their risk-score contribution.
var SeverityWeight = map[string]int{
	SeverityLow:      1,
	SeverityMedium:   3,
	SeverityHigh:     7,
	SeverityCritical: 12,
}
