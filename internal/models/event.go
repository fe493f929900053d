package models

import "time"

// Event is one security-relevant log record submitted by an agent.
// Events are immutable once stored and owned by the tenant.
type Event struct {
	ID        string                 `db:"id" json:"id"`
	TenantID  string                 `db:"tenant_id" json:"tenant_id"`
	AgentID   string                 `db:"agent_id" json:"agent_id"`
	TS        time.Time              `db:"ts" json:"ts"`
	Host      string                 `db:"host" json:"host,omitempty"`
	App       string                 `db:"app" json:"app,omitempty"`
	EventType string                 `db:"event_type" json:"event_type,omitempty"`
	SrcIP     string                 `db:"src_ip" json:"src_ip,omitempty"`
	DstIP     string                 `db:"dst_ip" json:"dst_ip,omitempty"`
	Username  string                 `db:"username" json:"username,omitempty"`
	Severity  string                 `db:"severity" json:"severity,omitempty"`
	Raw       map[string]interface{} `db:"raw" json:"raw,omitempty"`
}

// RawMessage returns the free-form message carried in the raw payload, if any.
func (e *Event) RawMessage() string {
	if e.Raw == nil {
		return ""
	}
	if msg, ok := e.Raw["message"].(string); ok {
		return msg
	}
	return ""
}
