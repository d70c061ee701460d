package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a store failure.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindAlreadyExists
	KindUnauthorized
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindAlreadyExists:
		return "already_exists"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalid:
		return "invalid"
	default:
		return "internal"
	}
}

// Sentinels for errors.Is; a *Error matches the sentinel of its Kind.
var (
	ErrNotFound      = errors.New("task not found")
	ErrAlreadyExists = errors.New("task already exists")
	ErrUnauthorized  = errors.New("user is not an approver")
	ErrInvalid       = errors.New("invalid task")
	ErrInternal      = errors.New("internal storage error")

	// ErrMalformed is returned by backends for stored records that cannot be decoded.
	ErrMalformed = errors.New("malformed task record")
)

// Error is the error type returned by every TaskStore operation.
type Error struct {
	Kind Kind
	Task string
	User string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("Task %s not found.", e.Task)
	case KindAlreadyExists:
		return fmt.Sprintf("Task %s already exists.", e.Task)
	case KindUnauthorized:
		return fmt.Sprintf("User %s is not an approver for task %s.", e.User, e.Task)
	case KindInvalid:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "invalid task"
	default:
		if e.Err != nil {
			return fmt.Sprintf("Error accessing task %s: %v", e.Task, e.Err)
		}
		return fmt.Sprintf("Error accessing task %s.", e.Task)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrAlreadyExists:
		return e.Kind == KindAlreadyExists
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrInvalid:
		return e.Kind == KindInvalid
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

func notFound(name string) error { return &Error{Kind: KindNotFound, Task: name} }

func unauthorized(name, user string) error {
	return &Error{Kind: KindUnauthorized, Task: name, User: user}
}

func internal(name string, err error) error {
	return &Error{Kind: KindInternal, Task: name, Err: err}
}

// KindOf reports the Kind of err. Errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	}
	return KindInternal
}

// StatusCode maps an operation result to the transport status code.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalid:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Confirmation messages for successful operations.

func MessageAdded(name string) string { return fmt.Sprintf("Task %s added.", name) }

func MessageCommentAdded(name string) string {
	return fmt.Sprintf("Comment added to task %s.", name)
}

func MessageRecommendationAdded(name string) string {
	return fmt.Sprintf("Recommendation added to task %s.", name)
}

func MessageCommentsCleared(name string) string {
	return fmt.Sprintf("Comments cleared for task %s.", name)
}
