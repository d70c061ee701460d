// Package client provides a Go SDK for the signoff HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ankittk/signoff/pkg/models"
)

// Client calls the signoff HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://127.0.0.1:5000"
	APIKey     string       // optional; sent as X-API-Key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return e.Message
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an *APIError.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}

// New returns a client for the given base URL (e.g. "http://127.0.0.1:5000").
// APIKey is optional.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg models.Message
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		return &APIError{StatusCode: resp.StatusCode, Message: msg.Message}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) message(ctx context.Context, method, path string, body any) (string, error) {
	var out models.Message
	err := c.doJSON(ctx, method, path, body, &out)
	return out.Message, err
}

func taskPath(name string) string {
	return "/tasks/" + url.PathEscape(name)
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// CreateTask creates a task and returns the confirmation message.
func (c *Client) CreateTask(ctx context.Context, req models.CreateTaskRequest) (string, error) {
	return c.message(ctx, http.MethodPost, "/tasks", req)
}

// GetTask returns one task. user is passed through for auditing.
func (c *Client) GetTask(ctx context.Context, name, user string) (*models.Task, error) {
	p := taskPath(name)
	if user != "" {
		p += "?user=" + url.QueryEscape(user)
	}
	var out models.Task
	if err := c.doJSON(ctx, http.MethodGet, p, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks returns all tasks ordered by name.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, "/tasks", nil, &out)
	return out, err
}

// AddComment appends a comment as user.
func (c *Client) AddComment(ctx context.Context, name, comment, user string) (string, error) {
	return c.message(ctx, http.MethodPost, taskPath(name)+"/comments", models.CommentRequest{Comment: comment, User: user})
}

// AddRecommendation sets the task's recommendation as user.
func (c *Client) AddRecommendation(ctx context.Context, name, recommendation, user string) (string, error) {
	return c.message(ctx, http.MethodPost, taskPath(name)+"/recommendation",
		models.RecommendationRequest{Recommendation: recommendation, User: user})
}

// ClearComments removes every comment on the task as user.
func (c *Client) ClearComments(ctx context.Context, name, user string) (string, error) {
	return c.message(ctx, http.MethodDelete, taskPath(name)+"/comments?user="+url.QueryEscape(user), nil)
}
