package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskmaster-api/domain"
)

// usersPartition holds every user entity; user ids are row keys.
const usersPartition = "user"

// Storage provides table-backed persistence for tasks and users. Tasks are
// partitioned by owner id with the task id as row key, so a list is a single
// partition scan and ownership lives in the key itself.
type Storage struct {
	taskTable *aztables.Client
	userTable *aztables.Client
}

// New creates a Storage instance from the given connection string.
func New(connStr, tasksTable, usersTable string) (*Storage, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable: svc.NewClient(tasksTable),
		userTable: svc.NewClient(usersTable),
	}, nil
}

type taskEntity struct {
	aztables.Entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Status      string `json:"Status"`
	CreatedAt   string `json:"CreatedAt"`
	UpdatedAt   string `json:"UpdatedAt"`
}

// taskEntityUpdate carries only the changed columns for a merge-mode update.
type taskEntityUpdate struct {
	aztables.Entity
	Title       *string `json:"Title,omitempty"`
	Description *string `json:"Description,omitempty"`
	Status      *string `json:"Status,omitempty"`
	UpdatedAt   *string `json:"UpdatedAt,omitempty"`
}

type userEntity struct {
	aztables.Entity
	Name         string `json:"Name"`
	Email        string `json:"Email"`
	PasswordHash string `json:"PasswordHash"`
}

// ListTasks retrieves all tasks owned by ownerID.
func (s *Storage) ListTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	filter := "PartitionKey eq '" + escapeODataString(ownerID) + "'"
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			tasks = append(tasks, taskFromEntity(ent))
		}
	}
	return tasks, nil
}

// GetTask looks a task up by id alone. The owner is unknown at this point, so
// the lookup filters on the row key across partitions; the caller compares
// the returned owner against the requester. Returns nil when absent.
func (s *Storage) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	filter := "RowKey eq '" + escapeODataString(id) + "'"
	top := int32(1)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: &top})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			t := taskFromEntity(ent)
			return &t, nil
		}
	}
	return nil, nil
}

// InsertTask persists a new task entity.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	ent := taskEntity{
		Entity:      aztables.Entity{PartitionKey: t.Owner, RowKey: t.ID},
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:   t.UpdatedAt.Format(time.RFC3339Nano),
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return err
}

// UpdateTask merges the changed columns into an existing task entity.
func (s *Storage) UpdateTask(ctx context.Context, upd domain.TaskUpdate) error {
	ent := taskEntityUpdate{
		Entity:      aztables.Entity{PartitionKey: upd.Owner, RowKey: upd.ID},
		Title:       upd.Title,
		Description: upd.Description,
	}
	if upd.Status != nil {
		v := string(*upd.Status)
		ent.Status = &v
	}
	if !upd.UpdatedAt.IsZero() {
		v := upd.UpdatedAt.Format(time.RFC3339Nano)
		ent.UpdatedAt = &v
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.taskTable.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{
		IfMatch:    &et,
		UpdateMode: aztables.UpdateModeMerge,
	})
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

// DeleteTask permanently removes a task entity.
func (s *Storage) DeleteTask(ctx context.Context, ownerID, id string) error {
	_, err := s.taskTable.DeleteEntity(ctx, ownerID, id, nil)
	if isNotFound(err) {
		return domain.ErrNotFound
	}
	return err
}

// GetUser retrieves a user by id. Returns nil when absent.
func (s *Storage) GetUser(ctx context.Context, id string) (*domain.UserRecord, error) {
	resp, err := s.userTable.GetEntity(ctx, usersPartition, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent userEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	rec := userFromEntity(ent)
	return &rec, nil
}

// GetUserByEmail retrieves a user by email. Returns nil when absent.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	filter := "PartitionKey eq '" + usersPartition + "' and Email eq '" + escapeODataString(email) + "'"
	top := int32(1)
	pager := s.userTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter, Top: &top})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent userEntity
			if err := json.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			rec := userFromEntity(ent)
			return &rec, nil
		}
	}
	return nil, nil
}

// InsertUser persists a new user entity.
func (s *Storage) InsertUser(ctx context.Context, u domain.UserRecord) error {
	ent := userEntity{
		Entity:       aztables.Entity{PartitionKey: usersPartition, RowKey: u.ID},
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
	}
	payload, err := json.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = s.userTable.AddEntity(ctx, payload, nil)
	return err
}

func taskFromEntity(ent taskEntity) domain.Task {
	return domain.Task{
		ID:          ent.RowKey,
		Owner:       ent.PartitionKey,
		Title:       ent.Title,
		Description: ent.Description,
		Status:      domain.Status(ent.Status),
		CreatedAt:   parseEntityTime(ent.CreatedAt),
		UpdatedAt:   parseEntityTime(ent.UpdatedAt),
	}
}

func userFromEntity(ent userEntity) domain.UserRecord {
	return domain.UserRecord{
		User:         domain.User{ID: ent.RowKey, Name: ent.Name, Email: ent.Email},
		PasswordHash: ent.PasswordHash,
	}
}

func parseEntityTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// escapeODataString doubles single quotes per the OData filter grammar.
func escapeODataString(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
