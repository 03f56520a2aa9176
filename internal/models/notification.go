// internal/models/notification.go
package models

import "time"

// Notification is an in-app message for one user.
type Notification struct {
	ID        string    `json:"id,omitempty"`
	For       string    `json:"for"`
	Message   string    `json:"message"`
	TaskRef   string    `json:"taskRef,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
