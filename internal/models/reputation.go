package models

import "time"

// ReputationRecord caches the risk score of an IP address. The score is
// trusted only while now - UpdatedAt < the configured TTL; stale records
// are overwritten in place, never deleted.
type ReputationRecord struct {
	IP        string    `db:"ip" json:"ip"`
	Score     int       `db:"score" json:"score"`
	Source    string    `db:"source" json:"source"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Fresh reports whether the record is still within its TTL.
func (r *ReputationRecord) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.UpdatedAt) < ttl
}
