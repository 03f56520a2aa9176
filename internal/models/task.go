// internal/models/task.go
package models

import "time"

type TaskType string

const (
	TaskTypeApprove TaskType = "approve"
	TaskTypeReview  TaskType = "review"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is a unit of work assigned to a user or branch about one entity.
type Task struct {
	ID         string     `json:"id,omitempty"`
	Task       string     `json:"task"`
	TaskType   TaskType   `json:"taskType"`
	EntityRef  string     `json:"entityRef"`
	EntityType string     `json:"entityType"`
	CreatedBy  string     `json:"createdBy"`
	User       string     `json:"user,omitempty"`
	Branch     string     `json:"branch,omitempty"`
	Status     TaskStatus `json:"status"`
	Comment    string     `json:"comment,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
