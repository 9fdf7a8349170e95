package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"taskmaster-api/domain"
)

// Session mirrors the authenticated user's server state: it holds the bearer
// credential and the last-fetched task list, and re-fetches the full list
// after every mutation rather than patching it locally. A failed call leaves
// the previously fetched list untouched.
//
// A Session backs a single-threaded UI loop and is not safe for concurrent
// use.
type Session struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore

	token   string
	profile *domain.User
	tasks   []domain.Task
}

// Summary is the two-bucket dashboard aggregate.
type Summary struct {
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// APIError is a non-2xx response decoded into the server's message shape.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// NewSession creates a Session against baseURL. tokens may be nil, in which
// case the credential lives only in memory.
func NewSession(baseURL string, tokens TokenStore) *Session {
	return &Session{baseURL: baseURL, http: &http.Client{}, tokens: tokens}
}

type credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// Register creates an account, stores the returned credential and fetches
// the (empty) task list.
func (s *Session) Register(ctx context.Context, name, email, password string) error {
	var resp authPayload
	if err := s.call(ctx, http.MethodPost, "/api/users", credentials{Name: name, Email: email, Password: password}, &resp); err != nil {
		return err
	}
	s.adopt(resp)
	return s.Refresh(ctx)
}

// Login authenticates, stores the returned credential and fetches the list.
func (s *Session) Login(ctx context.Context, email, password string) error {
	var resp authPayload
	if err := s.call(ctx, http.MethodPost, "/api/users/login", credentials{Email: email, Password: password}, &resp); err != nil {
		return err
	}
	s.adopt(resp)
	return s.Refresh(ctx)
}

// Restore loads a persisted token and resolves it through the me endpoint.
// It reports whether a session was restored; a rejected token is cleared.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.tokens == nil {
		return false, nil
	}
	token, err := s.tokens.Load()
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}
	s.token = token
	var user domain.User
	if err := s.call(ctx, http.MethodGet, "/api/users/me", nil, &user); err != nil {
		s.token = ""
		_ = s.tokens.Clear()
		return false, nil
	}
	s.profile = &user
	return true, s.Refresh(ctx)
}

// Logout clears the credential and all mirrored state.
func (s *Session) Logout() {
	s.token = ""
	s.profile = nil
	s.tasks = nil
	if s.tokens != nil {
		_ = s.tokens.Clear()
	}
}

// User returns the authenticated profile, or nil before login.
func (s *Session) User() *domain.User {
	return s.profile
}

// Refresh replaces the mirrored task list with the server's current state.
func (s *Session) Refresh(ctx context.Context) error {
	var tasks []domain.Task
	if err := s.call(ctx, http.MethodGet, "/api/tasks", nil, &tasks); err != nil {
		log.WithError(err).Error("fetching tasks")
		return err
	}
	s.tasks = tasks
	return nil
}

// Tasks returns a copy of the mirrored list.
func (s *Session) Tasks() []domain.Task {
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Filter returns the mirrored tasks matching status; an empty status returns
// everything.
func (s *Session) Filter(status domain.Status) []domain.Task {
	if status == "" {
		return s.Tasks()
	}
	out := []domain.Task{}
	for _, t := range s.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

// Summarize derives the completed/pending buckets the dashboard chart plots.
func (s *Session) Summarize() Summary {
	var sum Summary
	for _, t := range s.tasks {
		switch t.Status {
		case domain.StatusCompleted:
			sum.Completed++
		default:
			sum.Pending++
		}
	}
	return sum
}

// CreateTask creates a task and re-fetches the list.
func (s *Session) CreateTask(ctx context.Context, draft domain.TaskDraft) error {
	if err := s.call(ctx, http.MethodPost, "/api/tasks", draft, nil); err != nil {
		log.WithError(err).Error("saving task")
		return err
	}
	return s.Refresh(ctx)
}

// UpdateTask patches a task and re-fetches the list.
func (s *Session) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error {
	if err := s.call(ctx, http.MethodPut, "/api/tasks/"+id, patch, nil); err != nil {
		log.WithError(err).Error("saving task")
		return err
	}
	return s.Refresh(ctx)
}

// DeleteTask deletes a task and re-fetches the list.
func (s *Session) DeleteTask(ctx context.Context, id string) error {
	if err := s.call(ctx, http.MethodDelete, "/api/tasks/"+id, nil, nil); err != nil {
		log.WithError(err).Error("deleting task")
		return err
	}
	return s.Refresh(ctx)
}

// ToggleStatus flips a mirrored task between pending and completed.
func (s *Session) ToggleStatus(ctx context.Context, id string) error {
	for _, t := range s.tasks {
		if t.ID != id {
			continue
		}
		next := domain.StatusCompleted
		if t.Status == domain.StatusCompleted {
			next = domain.StatusPending
		}
		return s.UpdateTask(ctx, id, domain.TaskPatch{Status: &next})
	}
	return &APIError{Status: http.StatusBadRequest, Message: "task not in view"}
}

func (s *Session) adopt(resp authPayload) {
	s.token = resp.Token
	s.profile = &domain.User{ID: resp.ID, Name: resp.Name, Email: resp.Email}
	if s.tokens != nil {
		if err := s.tokens.Save(resp.Token); err != nil {
			log.WithError(err).Warn("persisting token")
		}
	}
}

func (s *Session) call(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Buffer
	if body != nil {
		reader = new(bytes.Buffer)
		if err := json.NewEncoder(reader).Encode(body); err != nil {
			return err
		}
	}
	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, s.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&msg); err == nil {
			apiErr.Message = msg.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
