package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"taskmaster-api/domain"
)

type mockTasks struct {
	list    []domain.Task
	listErr error

	created   domain.Task
	createErr error

	updated     domain.Task
	updateErr   error
	lastPatch   domain.TaskPatch
	lastTaskID  string
	lastOwnerID string

	deleteErr error
}

func (m *mockTasks) List(ctx context.Context, ownerID string) ([]domain.Task, error) {
	m.lastOwnerID = ownerID
	return m.list, m.listErr
}

func (m *mockTasks) Create(ctx context.Context, ownerID string, draft domain.TaskDraft) (domain.Task, error) {
	m.lastOwnerID = ownerID
	if m.createErr != nil {
		return domain.Task{}, m.createErr
	}
	created := m.created
	created.Owner = ownerID
	created.Title = draft.Title
	return created, nil
}

func (m *mockTasks) Update(ctx context.Context, requesterID, taskID string, patch domain.TaskPatch) (domain.Task, error) {
	m.lastOwnerID = requesterID
	m.lastTaskID = taskID
	m.lastPatch = patch
	return m.updated, m.updateErr
}

func (m *mockTasks) Delete(ctx context.Context, requesterID, taskID string) (string, error) {
	m.lastOwnerID = requesterID
	m.lastTaskID = taskID
	if m.deleteErr != nil {
		return "", m.deleteErr
	}
	return taskID, nil
}

type mockUsers struct {
	user domain.User
	err  error
}

func (m *mockUsers) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	return m.user, m.err
}

func (m *mockUsers) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	return m.user, m.err
}

func (m *mockUsers) Profile(ctx context.Context, id string) (domain.User, error) {
	return m.user, m.err
}

type mockAuth struct {
	userID string
	err    error
}

func (m mockAuth) UserIDFromAuthHeader(string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.userID == "" {
		return "user", nil
	}
	return m.userID, nil
}

type mockMinter struct{}

func (mockMinter) Issue(userID string) (string, error) { return "tok-" + userID, nil }

func newTestContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer token")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func nullLogger() *log.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func TestGetTasks(t *testing.T) {
	tasks := &mockTasks{list: []domain.Task{{ID: "1", Owner: "alice", Title: "t", Status: domain.StatusPending}}}
	c, rec := newTestContext(http.MethodGet, "/api/tasks", "")

	if err := getTasks(tasks, mockAuth{userID: "alice"}, nullLogger())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if tasks.lastOwnerID != "alice" {
		t.Fatalf("expected resolved identity to scope the list, got %q", tasks.lastOwnerID)
	}
	var resp []domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "1" || resp[0].Status != domain.StatusPending {
		t.Fatalf("unexpected tasks: %#v", resp)
	}
}

func TestGetTasksUnauthorized(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/api/tasks", "")
	if err := getTasks(&mockTasks{}, mockAuth{err: errors.New("token expired")}, nullLogger())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestPostTask(t *testing.T) {
	tasks := &mockTasks{created: domain.Task{ID: "t1", Status: domain.StatusPending}}
	c, rec := newTestContext(http.MethodPost, "/api/tasks", `{"title":"Buy milk"}`)

	if err := postTask(tasks, mockAuth{userID: "alice"})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.Task
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Title != "Buy milk" || resp.Owner != "alice" {
		t.Fatalf("unexpected task: %#v", resp)
	}
}

func TestPostTaskEmptyTitle(t *testing.T) {
	tasks := &mockTasks{createErr: domain.ErrEmptyTitle}
	c, rec := newTestContext(http.MethodPost, "/api/tasks", `{"title":""}`)

	if err := postTask(tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	var resp errorResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Message == "" {
		t.Fatal("expected error message")
	}
}

func TestPutTaskPatchForwarding(t *testing.T) {
	tasks := &mockTasks{updated: domain.Task{ID: "t1", Title: "kept", Status: domain.StatusCompleted}}
	c, rec := newTestContext(http.MethodPut, "/api/tasks/t1", `{"status":"completed","ignored":"field"}`)
	c.SetParamNames("id")
	c.SetParamValues("t1")

	if err := putTask(tasks, mockAuth{userID: "alice"})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if tasks.lastTaskID != "t1" || tasks.lastOwnerID != "alice" {
		t.Fatalf("unexpected forwarding: task=%q owner=%q", tasks.lastTaskID, tasks.lastOwnerID)
	}
	if tasks.lastPatch.Status == nil || *tasks.lastPatch.Status != domain.StatusCompleted {
		t.Fatalf("status not forwarded: %#v", tasks.lastPatch)
	}
	if tasks.lastPatch.Title != nil || tasks.lastPatch.Description != nil {
		t.Fatalf("absent fields must stay nil: %#v", tasks.lastPatch)
	}
}

func TestPutTaskErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrNotFound, http.StatusBadRequest}, // 400 by contract, not 404
		{domain.ErrNotOwner, http.StatusUnauthorized},
		{errors.New("table unavailable"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tasks := &mockTasks{updateErr: tc.err}
		c, rec := newTestContext(http.MethodPut, "/api/tasks/t1", `{"status":"completed"}`)
		c.SetParamNames("id")
		c.SetParamValues("t1")

		if err := putTask(tasks, mockAuth{})(c); err != nil {
			t.Fatalf("%v: handler returned error: %v", tc.err, err)
		}
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d got %d", tc.err, tc.status, rec.Code)
		}
	}
}

func TestDeleteTask(t *testing.T) {
	tasks := &mockTasks{}
	c, rec := newTestContext(http.MethodDelete, "/api/tasks/t1", "")
	c.SetParamNames("id")
	c.SetParamValues("t1")

	if err := deleteTask(tasks, mockAuth{userID: "alice"})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var resp deleteResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "t1" {
		t.Fatalf("unexpected id: %q", resp.ID)
	}
}

func TestDeleteTaskNotOwner(t *testing.T) {
	tasks := &mockTasks{deleteErr: domain.ErrNotOwner}
	c, rec := newTestContext(http.MethodDelete, "/api/tasks/t1", "")
	c.SetParamNames("id")
	c.SetParamValues("t1")

	if err := deleteTask(tasks, mockAuth{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestRegisterUserReturnsToken(t *testing.T) {
	users := &mockUsers{user: domain.User{ID: "u1", Name: "Alice", Email: "a@b.c"}}
	c, rec := newTestContext(http.MethodPost, "/api/users", `{"name":"Alice","email":"a@b.c","password":"pw"}`)

	if err := registerUser(users, mockMinter{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp authResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token != "tok-u1" || resp.Name != "Alice" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestLoginBadCredentials(t *testing.T) {
	users := &mockUsers{err: domain.ErrBadCredentials}
	c, rec := newTestContext(http.MethodPost, "/api/users/login", `{"email":"a@b.c","password":"nope"}`)

	if err := loginUser(users, mockMinter{})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestGetMe(t *testing.T) {
	users := &mockUsers{user: domain.User{ID: "u1", Name: "Alice", Email: "a@b.c"}}
	c, rec := newTestContext(http.MethodGet, "/api/users/me", "")

	if err := getMe(users, mockAuth{userID: "u1"})(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var resp domain.User
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.ID != "u1" {
		t.Fatalf("unexpected user: %#v", resp)
	}
}
