package store

import "context"

// Store is the task-approval contract used by request handlers.
// Implementation: *TaskStore over any Backend.
type Store interface {
	CreateTask(ctx context.Context, t Task) error
	GetTask(ctx context.Context, name, user string) (Task, error)
	ListTasks(ctx context.Context) ([]Task, error)
	AddComment(ctx context.Context, name, text, user string) error
	AddRecommendation(ctx context.Context, name, text, user string) error
	ClearComments(ctx context.Context, name, user string) error
	Close() error
}

// Backend persists whole task records keyed by name. It knows nothing about approvers.
// Implementations: *MemoryBackend, *jsonfile.Backend, *sqlite.Store, *postgres.Store.
//
//   - Insert fails with an error matching ErrAlreadyExists when the name is taken.
//   - Load fails with an error matching ErrNotFound when the name is absent, and with
//     ErrMalformed when the stored record cannot be decoded.
//   - Save overwrites an existing record in full.
//   - LoadAll returns every readable record, skipping malformed ones; failure to
//     enumerate or read storage is returned as an error.
type Backend interface {
	Insert(ctx context.Context, t Task) error
	Load(ctx context.Context, name string) (Task, error)
	Save(ctx context.Context, t Task) error
	LoadAll(ctx context.Context) ([]Task, error)
	Close() error
}

// Counter is implemented by backends that can count records without loading them.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}
