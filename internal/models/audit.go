// internal/models/audit.go
package models

import "time"

// AuditEntry records one user-visible action on an entity.
type AuditEntry struct {
	Event      string                 `json:"event"`
	Actor      string                 `json:"actor"`
	Message    string                 `json:"message"`
	EntityType string                 `json:"entityType,omitempty"`
	EntityRef  string                 `json:"entityRef,omitempty"`
	Diff       map[string]interface{} `json:"diff,omitempty"`
	At         time.Time              `json:"at"`
}
