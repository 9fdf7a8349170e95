package domain

import "errors"

var (
	// ErrNotFound indicates the referenced task does not exist.
	ErrNotFound = errors.New("task not found")
	// ErrNotOwner indicates the requester does not own the referenced task.
	ErrNotOwner = errors.New("user not authorized")
	// ErrEmptyTitle indicates a create or update without a usable title.
	ErrEmptyTitle = errors.New("please add a title")
	// ErrInvalidStatus indicates a status outside the pending/completed enum.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrMissingFields indicates a registration with required fields absent.
	ErrMissingFields = errors.New("please add all fields")
	// ErrEmailTaken indicates the registration email is already in use.
	ErrEmailTaken = errors.New("user already exists")
	// ErrBadCredentials indicates a failed login attempt.
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrUserNotFound indicates a profile lookup for an unknown user id.
	ErrUserNotFound = errors.New("user not found")
)
