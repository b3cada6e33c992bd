package entity

import "time"

// AuditEntry is an immutable record of one workflow transition
type AuditEntry struct {
	ID           string    `json:"id"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	Action       string    `json:"action"`
	Description  string    `json:"description"`
	ActorID      string    `json:"actor_id"`
	TimestampUTC time.Time `json:"timestamp_utc"`
}
