// internal/models/account.go
package models

import "time"

// RealmSuper bypasses role permission checks.
const RealmSuper = "super"

// Actor identifies the user performing an operation.
type Actor struct {
	UserID string `json:"userId"`
}

// Account is the staff profile bound to a user.
type Account struct {
	ID            string    `json:"id,omitempty"`
	User          string    `json:"user"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Role          string    `json:"role,omitempty"`
	Realm         string    `json:"realm,omitempty"`
	DefaultBranch string    `json:"defaultBranch,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Permission grants operations on one module.
type Permission struct {
	Module     string   `json:"module"`
	Operations []string `json:"operations"`
}

type Role struct {
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
