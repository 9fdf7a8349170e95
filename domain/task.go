package domain

import "time"

// Status enumerates the lifecycle states a task can be in.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the persistable status values.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

// Task represents a single tracked item owned by a user.
type Task struct {
	ID          string    `json:"id"`
	Owner       string    `json:"user"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskDraft carries the caller-supplied fields for task creation.
type TaskDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// TaskPatch carries a partial update. Nil fields are left unchanged; the
// owner is never part of a patch.
type TaskPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *Status `json:"status"`
}
