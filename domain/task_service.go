package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TaskStorage defines the persistence operations the task service relies on.
// GetTask returns nil when the task does not exist.
type TaskStorage interface {
	ListTasks(ctx context.Context, ownerID string) ([]Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	InsertTask(ctx context.Context, t Task) error
	UpdateTask(ctx context.Context, upd TaskUpdate) error
	DeleteTask(ctx context.Context, ownerID, id string) error
}

// TaskUpdate carries a partial update addressed to a stored task.
type TaskUpdate struct {
	Owner       string
	ID          string
	Title       *string
	Description *string
	Status      *Status
	UpdatedAt   time.Time
}

// TaskService is the sole mutation and query surface for tasks. Every
// operation that touches an existing task looks it up first and rejects
// requesters that do not match the stored owner.
type TaskService struct {
	st  TaskStorage
	now func() time.Time
}

func NewTaskService(st TaskStorage) *TaskService {
	return &TaskService{st: st, now: time.Now}
}

// List returns every task owned by ownerID. Order follows the store; the
// table backend returns partition order over random row keys, so callers
// must not rely on it.
func (s *TaskService) List(ctx context.Context, ownerID string) ([]Task, error) {
	return s.st.ListTasks(ctx, ownerID)
}

// Create persists a new task owned by ownerID. The title is required and
// the status defaults to pending when not supplied.
func (s *TaskService) Create(ctx context.Context, ownerID string, draft TaskDraft) (Task, error) {
	if strings.TrimSpace(draft.Title) == "" {
		return Task{}, ErrEmptyTitle
	}
	status := draft.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return Task{}, ErrInvalidStatus
	}
	now := s.now().UTC()
	t := Task{
		ID:          uuid.NewString(),
		Owner:       ownerID,
		Title:       draft.Title,
		Description: draft.Description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.st.InsertTask(ctx, t); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Update applies patch to the task identified by id and returns the updated
// task. Fields omitted from the patch keep their stored values; the owner is
// never reassigned.
func (s *TaskService) Update(ctx context.Context, requesterID, id string, patch TaskPatch) (Task, error) {
	t, err := s.lookupOwned(ctx, requesterID, id, "update")
	if err != nil {
		return Task{}, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return Task{}, ErrEmptyTitle
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return Task{}, ErrInvalidStatus
	}
	upd := TaskUpdate{
		Owner:       t.Owner,
		ID:          t.ID,
		Title:       patch.Title,
		Description: patch.Description,
		Status:      patch.Status,
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.st.UpdateTask(ctx, upd); err != nil {
		return Task{}, err
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	t.UpdatedAt = upd.UpdatedAt
	return *t, nil
}

// Delete permanently removes the task identified by id and returns its id.
func (s *TaskService) Delete(ctx context.Context, requesterID, id string) (string, error) {
	t, err := s.lookupOwned(ctx, requesterID, id, "delete")
	if err != nil {
		return "", err
	}
	if err := s.st.DeleteTask(ctx, t.Owner, t.ID); err != nil {
		return "", err
	}
	return t.ID, nil
}

func (s *TaskService) lookupOwned(ctx context.Context, requesterID, id, op string) (*Task, error) {
	t, err := s.st.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNotFound
	}
	if t.Owner != requesterID {
		log.WithFields(log.Fields{"task": id, "requester": requesterID, "op": op}).Warn("rejected request from non-owner")
		return nil, ErrNotOwner
	}
	return t, nil
}
