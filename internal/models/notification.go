package models

import "time"

// Notification delivery states.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification records one delivery attempt handed to the external
// notification collaborator. Delivery itself happens out-of-band.
type Notification struct {
	ID        string          `db:"id" json:"id"`
	TenantID  string          `db:"tenant_id" json:"tenant_id"`
	Kind      string          `db:"kind" json:"kind"`
	Severity  string          `db:"severity" json:"severity"`
	Channel   string          `db:"channel" json:"channel"`
	Payload   IncidentPayload `db:"payload" json:"payload"`
	Status    string          `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
