// Package store defines the task record model, the approver check, and the record store
// that applies it on top of a pluggable storage backend.
package store

import (
	"strings"

	"github.com/ankittk/signoff/pkg/models"
)

// CommentSeparator joins comment text and its author in a stored comment.
const CommentSeparator = ":--:"

// Task is a unit of work tracked for approval. Name is the storage key and never changes.
// The JSON form is the persisted and wire format.
type Task struct {
	Name           string   `json:"taskName"`
	Approver1      string   `json:"approver1"`
	Approver2      string   `json:"approver2"`
	Approver3      string   `json:"approver3"`
	Description    string   `json:"taskDescription"`
	Comments       []string `json:"comments"`
	Recommendation string   `json:"recommendation"`
	DecisionMaker  string   `json:"decisionMaker"`
}

// Approvers returns the three approver slots in order.
func (t Task) Approvers() [3]string {
	return [3]string{t.Approver1, t.Approver2, t.Approver3}
}

// Clone returns a copy that shares no slice storage with t.
func (t Task) Clone() Task {
	c := t
	c.Comments = make([]string, len(t.Comments))
	copy(c.Comments, t.Comments)
	return c
}

// Model returns the wire form of t. Comments is never nil.
func (t Task) Model() models.Task {
	comments := t.Comments
	if comments == nil {
		comments = []string{}
	}
	return models.Task{
		TaskName:        t.Name,
		Approver1:       t.Approver1,
		Approver2:       t.Approver2,
		Approver3:       t.Approver3,
		TaskDescription: t.Description,
		Comments:        comments,
		Recommendation:  t.Recommendation,
		DecisionMaker:   t.DecisionMaker,
	}
}

// normalize makes sure a task always carries a non-nil comments sequence.
func (t *Task) normalize() {
	if t.Comments == nil {
		t.Comments = []string{}
	}
}

// FormatComment encodes a comment and its author as "<text>:--:<user>".
func FormatComment(text, user string) string {
	return text + CommentSeparator + user
}

// ParseComment splits a stored comment into text and user. The user is taken from
// after the last separator, so text may itself contain the separator.
// ok is false when s has no separator.
func ParseComment(s string) (text, user string, ok bool) {
	i := strings.LastIndex(s, CommentSeparator)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(CommentSeparator):], true
}
