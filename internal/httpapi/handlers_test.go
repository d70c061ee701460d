package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

type apiResult struct {
	status int
	body   []byte
}

func call(t *testing.T, ts *httptest.Server, method, path, body string) apiResult {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	return apiResult{status: resp.StatusCode, body: b}
}

func (r apiResult) message(t *testing.T) string {
	t.Helper()
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.body, &m); err != nil {
		t.Fatalf("decode message %q: %v", r.body, err)
	}
	return m.Message
}

func expect(t *testing.T, r apiResult, status int, msg string) {
	t.Helper()
	if r.status != status {
		t.Fatalf("status=%d want %d body=%s", r.status, status, r.body)
	}
	if got := r.message(t); got != msg {
		t.Fatalf("message=%q want %q", got, msg)
	}
}

const task1 = `{"taskName":"task1","approver1":"user1","approver2":"user2","approver3":"user3","taskDescription":"Review the Q3 budget"}`

// TestExampleScenario walks the approval flow end to end over HTTP.
func TestExampleScenario(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})

	expect(t, call(t, ts, "POST", "/tasks", task1), 200, "Task task1 added.")
	expect(t, call(t, ts, "POST", "/tasks/task1/comments", `{"comment":"looks fine","user":"user1"}`), 200, "Comment added to task task1.")
	expect(t, call(t, ts, "POST", "/tasks/task1/comments", `{"comment":"hi","user":"user4"}`), 401, "User user4 is not an approver for task task1.")
	expect(t, call(t, ts, "POST", "/tasks/task1/recommendation", `{"recommendation":"approve","user":"user2"}`), 200, "Recommendation added to task task1.")

	got := call(t, ts, "GET", "/tasks/task1?user=user3", "")
	if got.status != 200 {
		t.Fatalf("GET task1 status=%d", got.status)
	}
	var task map[string]any
	if err := json.Unmarshal(got.body, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	comments, _ := task["comments"].([]any)
	if len(comments) != 1 || comments[0] != "looks fine:--:user1" {
		t.Fatalf("comments: %v", task["comments"])
	}
	if task["recommendation"] != "approve" || task["decisionMaker"] != "user2" {
		t.Fatalf("recommendation: %v", task)
	}
	if task["taskDescription"] != "Review the Q3 budget" || task["approver3"] != "user3" {
		t.Fatalf("task fields: %v", task)
	}

	expect(t, call(t, ts, "DELETE", "/tasks/task1/comments?user=user3", ""), 200, "Comments cleared for task task1.")
	got = call(t, ts, "GET", "/tasks/task1", "")
	task = nil
	_ = json.Unmarshal(got.body, &task)
	if c, ok := task["comments"].([]any); !ok || len(c) != 0 {
		t.Fatalf("comments after clear: %v", task["comments"])
	}
	if task["recommendation"] != "approve" {
		t.Fatalf("clear must not touch recommendation: %v", task)
	}
}

func TestErrorResponses(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	expect(t, call(t, ts, "POST", "/tasks", task1), 200, "Task task1 added.")

	expect(t, call(t, ts, "POST", "/tasks", task1), 409, "Task task1 already exists.")
	expect(t, call(t, ts, "POST", "/tasks", `{"taskName":"  "}`), 400, "task name required")
	expect(t, call(t, ts, "POST", "/tasks", `{not json`), 400, "invalid json")
	expect(t, call(t, ts, "GET", "/tasks/nope", ""), 404, "Task nope not found.")
	expect(t, call(t, ts, "POST", "/tasks/nope/comments", `{"comment":"x","user":"user1"}`), 404, "Task nope not found.")
	expect(t, call(t, ts, "POST", "/tasks/nope/recommendation", `{"recommendation":"x","user":"user1"}`), 404, "Task nope not found.")
	expect(t, call(t, ts, "DELETE", "/tasks/nope/comments?user=user1", ""), 404, "Task nope not found.")
	expect(t, call(t, ts, "POST", "/tasks/task1/recommendation", `{"recommendation":"x","user":"User1"}`), 401, "User User1 is not an approver for task task1.")
	expect(t, call(t, ts, "DELETE", "/tasks/task1/comments?user=user9", ""), 401, "User user9 is not an approver for task task1.")

	expect(t, call(t, ts, "POST", "/tasks/task1/comments", `{"comment":"x"}`), 400, "user required")
	expect(t, call(t, ts, "DELETE", "/tasks/task1/comments", ""), 400, "user required")
	expect(t, call(t, ts, "POST", "/tasks/task1/comments", `{"comment":"x","user":`), 400, "invalid json")
}

func TestBodyTooLarge(t *testing.T) {
	t.Parallel()
	app, _ := newTestServer(t, ServerOptions{})
	big := `{"comment":"` + strings.Repeat("x", defaultMaxRequestBodyBytes) + `","user":"user1"}`
	req := httptest.NewRequest(http.MethodPost, "/tasks/task1/comments", strings.NewReader(big))
	rec := httptest.NewRecorder()
	app.Server.Handler.ServeHTTP(rec, req)
	expect(t, apiResult{status: rec.Code, body: rec.Body.Bytes()}, 413, "request body too large")
}

func TestEscapedTaskNames(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	name := "q3 budget/v2"
	body := `{"taskName":"q3 budget/v2","approver1":"user1","approver2":"","approver3":""}`
	expect(t, call(t, ts, "POST", "/tasks", body), 200, "Task q3 budget/v2 added.")

	p := "/tasks/" + url.PathEscape(name)
	expect(t, call(t, ts, "POST", p+"/comments", `{"comment":"ok","user":"user1"}`), 200, "Comment added to task q3 budget/v2.")
	got := call(t, ts, "GET", p, "")
	if got.status != 200 || !strings.Contains(string(got.body), `"ok:--:user1"`) {
		t.Fatalf("GET %s: status=%d body=%s", p, got.status, got.body)
	}
}

func TestListEmptyIsArray(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t, ServerOptions{})
	got := call(t, ts, "GET", "/tasks", "")
	if got.status != 200 || strings.TrimSpace(string(got.body)) != "[]" {
		t.Fatalf("GET /tasks: status=%d body=%s", got.status, got.body)
	}
}

func TestMutationsPublishEvents(t *testing.T) {
	t.Parallel()
	app, ts := newTestServer(t, ServerOptions{})
	ch := app.Hub.Subscribe()
	defer app.Hub.Unsubscribe(ch)

	call(t, ts, "POST", "/tasks", task1)
	call(t, ts, "POST", "/tasks/task1/comments", `{"comment":"c","user":"user1"}`)
	call(t, ts, "POST", "/tasks/task1/comments", `{"comment":"c","user":"user4"}`) // rejected, no event
	call(t, ts, "POST", "/tasks/task1/recommendation", `{"recommendation":"r","user":"user1"}`)
	call(t, ts, "DELETE", "/tasks/task1/comments?user=user1", "")

	want := []string{"create", "comment", "recommend", "clear_comments"}
	for _, op := range want {
		select {
		case msg := <-ch:
			var ev struct{ Type, Task, Op string }
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if ev.Type != "task_update" || ev.Task != "task1" || ev.Op != op {
				t.Fatalf("event %+v, want op %s", ev, op)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no event for %s", op)
		}
	}
	select {
	case msg := <-ch:
		t.Fatalf("unexpected extra event %s", msg)
	default:
	}
}
