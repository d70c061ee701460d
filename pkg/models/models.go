// Package models provides shared types for the signoff HTTP API and external tools.
// These types mirror the API JSON and are stable for use by pkg/client and other consumers.
package models

// Task is a unit of work awaiting sign-off by up to three approvers.
// Comments are stored as "<text>:--:<user>".
type Task struct {
	TaskName        string   `json:"taskName"`
	Approver1       string   `json:"approver1"`
	Approver2       string   `json:"approver2"`
	Approver3       string   `json:"approver3"`
	TaskDescription string   `json:"taskDescription"`
	Comments        []string `json:"comments"`
	Recommendation  string   `json:"recommendation"`
	DecisionMaker   string   `json:"decisionMaker"`
}

// CreateTaskRequest is the body of POST /tasks.
type CreateTaskRequest struct {
	TaskName        string `json:"taskName"`
	Approver1       string `json:"approver1"`
	Approver2       string `json:"approver2"`
	Approver3       string `json:"approver3"`
	TaskDescription string `json:"taskDescription"`
}

// CommentRequest is the body of POST /tasks/{name}/comments.
type CommentRequest struct {
	Comment string `json:"comment"`
	User    string `json:"user"`
}

// RecommendationRequest is the body of POST /tasks/{name}/recommendation.
type RecommendationRequest struct {
	Recommendation string `json:"recommendation"`
	User           string `json:"user"`
}

// Message is the confirmation or error body returned by every non-read endpoint.
type Message struct {
	Message string `json:"message"`
}

// Event is a server-sent event published on /stream.
type Event struct {
	Type string `json:"type"`
	Task string `json:"task,omitempty"`
	Op   string `json:"op,omitempty"`
}

// Event types.
const (
	EventConnected  = "connected"
	EventTaskUpdate = "task_update"
)
