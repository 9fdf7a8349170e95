package api

import (
	"context"

	"taskmaster-api/domain"
)

// TaskAccess is the task mutation/query surface consumed by the handlers.
type TaskAccess interface {
	List(ctx context.Context, ownerID string) ([]domain.Task, error)
	Create(ctx context.Context, ownerID string, draft domain.TaskDraft) (domain.Task, error)
	Update(ctx context.Context, requesterID, taskID string, patch domain.TaskPatch) (domain.Task, error)
	Delete(ctx context.Context, requesterID, taskID string) (string, error)
}

// UserAccess is the account surface consumed by the handlers.
type UserAccess interface {
	Register(ctx context.Context, name, email, password string) (domain.User, error)
	Authenticate(ctx context.Context, email, password string) (domain.User, error)
	Profile(ctx context.Context, id string) (domain.User, error)
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// TokenMinter issues bearer tokens for freshly registered or logged-in users.
type TokenMinter interface {
	Issue(userID string) (string, error)
}
