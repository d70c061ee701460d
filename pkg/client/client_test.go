package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ankittk/signoff/internal/httpapi"
	"github.com/ankittk/signoff/pkg/models"
)

func TestNew(t *testing.T) {
	c := New("http://127.0.0.1:5000", "")
	if c.BaseURL != "http://127.0.0.1:5000" || c.APIKey != "" {
		t.Errorf("New: %+v", c)
	}
	c2 := New("http://127.0.0.1:5000", "secret")
	if c2.APIKey != "secret" {
		t.Errorf("New with key: %+v", c2)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ctx := context.Background()
	ok, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !ok {
		t.Fatal("Health: expected ok true")
	}
}

func TestHealth_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"down"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	ctx := context.Background()
	_, err := c.Health(ctx)
	if err == nil {
		t.Fatal("expected error from 503")
	}
	if StatusCode(err) != http.StatusServiceUnavailable || err.Error() != "down" {
		t.Fatalf("error: status=%d msg=%q", StatusCode(err), err)
	}
}

func TestClient_setsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "mykey")
	ctx := context.Background()
	_, _ = c.Health(ctx)
	if gotKey != "mykey" {
		t.Errorf("X-API-Key: got %q", gotKey)
	}
}

func TestAPIError_noMessage(t *testing.T) {
	err := &APIError{StatusCode: 502}
	if err.Error() != "api: status 502" {
		t.Errorf("Error: %q", err.Error())
	}
	if StatusCode(errors.New("plain")) != 0 {
		t.Error("StatusCode of non-API error should be 0")
	}
}

func newServer(t *testing.T) *Client {
	t.Helper()
	app, err := httpapi.NewApp(httpapi.ServerOptions{DBDriver: "memory"})
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	srv := httptest.NewServer(app.Server.Handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "")
}

func TestClient_approvalFlow(t *testing.T) {
	c := newServer(t)
	ctx := context.Background()

	msg, err := c.CreateTask(ctx, models.CreateTaskRequest{
		TaskName: "q3 budget", Approver1: "user1", Approver2: "user2", Approver3: "user3",
		TaskDescription: "Review the Q3 budget",
	})
	if err != nil || msg != "Task q3 budget added." {
		t.Fatalf("CreateTask: %q %v", msg, err)
	}
	if _, err := c.CreateTask(ctx, models.CreateTaskRequest{TaskName: "q3 budget"}); StatusCode(err) != http.StatusConflict {
		t.Fatalf("duplicate CreateTask: %v", err)
	}

	if msg, err = c.AddComment(ctx, "q3 budget", "looks fine", "user1"); err != nil || msg != "Comment added to task q3 budget." {
		t.Fatalf("AddComment: %q %v", msg, err)
	}
	_, err = c.AddComment(ctx, "q3 budget", "hi", "user4")
	if StatusCode(err) != http.StatusUnauthorized || err.Error() != "User user4 is not an approver for task q3 budget." {
		t.Fatalf("AddComment by non-approver: %v", err)
	}
	if msg, err = c.AddRecommendation(ctx, "q3 budget", "approve", "user2"); err != nil || msg != "Recommendation added to task q3 budget." {
		t.Fatalf("AddRecommendation: %q %v", msg, err)
	}

	task, err := c.GetTask(ctx, "q3 budget", "user3")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if len(task.Comments) != 1 || task.Comments[0] != "looks fine:--:user1" {
		t.Errorf("Comments: %v", task.Comments)
	}
	if task.Recommendation != "approve" || task.DecisionMaker != "user2" {
		t.Errorf("Recommendation: %+v", task)
	}

	if msg, err = c.ClearComments(ctx, "q3 budget", "user3"); err != nil || msg != "Comments cleared for task q3 budget." {
		t.Fatalf("ClearComments: %q %v", msg, err)
	}
	tasks, err := c.ListTasks(ctx)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 1 || len(tasks[0].Comments) != 0 || tasks[0].Recommendation != "approve" {
		t.Fatalf("ListTasks: %+v", tasks)
	}

	if _, err := c.GetTask(ctx, "missing", ""); StatusCode(err) != http.StatusNotFound {
		t.Fatalf("GetTask missing: %v", err)
	}
}
