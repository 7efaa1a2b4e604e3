package entities

import "time"

// Audit actions recorded by the mutation layer.
const (
	AuditAddEntry     = "add_entry"
	AuditDeleteDate   = "delete_date"
	AuditDeleteEntity = "delete_entity"
	AuditRebuild      = "rebuild_bundle"
)

// AuditEntry represents a logged action in the system.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	EntityKey string         `json:"entity_key,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
