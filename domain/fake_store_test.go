package domain

import (
	"context"
	"errors"
)

type fakeTaskStore struct {
	tasks map[string]Task
	order []string

	failWith error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{tasks: map[string]Task{}}
}

func (f *fakeTaskStore) ListTasks(ctx context.Context, ownerID string) ([]Task, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	out := []Task{}
	for _, id := range f.order {
		if t, ok := f.tasks[id]; ok && t.Owner == ownerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) GetTask(ctx context.Context, id string) (*Task, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (f *fakeTaskStore) InsertTask(ctx context.Context, t Task) error {
	if f.failWith != nil {
		return f.failWith
	}
	if _, exists := f.tasks[t.ID]; exists {
		return errors.New("duplicate row key")
	}
	f.tasks[t.ID] = t
	f.order = append(f.order, t.ID)
	return nil
}

func (f *fakeTaskStore) UpdateTask(ctx context.Context, upd TaskUpdate) error {
	if f.failWith != nil {
		return f.failWith
	}
	t, ok := f.tasks[upd.ID]
	if !ok || t.Owner != upd.Owner {
		return errors.New("entity not found")
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	t.UpdatedAt = upd.UpdatedAt
	f.tasks[upd.ID] = t
	return nil
}

func (f *fakeTaskStore) DeleteTask(ctx context.Context, ownerID, id string) error {
	if f.failWith != nil {
		return f.failWith
	}
	t, ok := f.tasks[id]
	if !ok || t.Owner != ownerID {
		return errors.New("entity not found")
	}
	delete(f.tasks, id)
	return nil
}

type fakeUserStore struct {
	users map[string]UserRecord
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]UserRecord{}}
}

func (f *fakeUserStore) GetUser(ctx context.Context, id string) (*UserRecord, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeUserStore) GetUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	for _, u := range f.users {
		if u.Email == email {
			rec := u
			return &rec, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) InsertUser(ctx context.Context, u UserRecord) error {
	f.users[u.ID] = u
	return nil
}
