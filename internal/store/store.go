package store

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ankittk/signoff/internal/otel"
)

// TaskStore applies the approver check and per-task serialization on top of a Backend.
// It is safe for concurrent use.
type TaskStore struct {
	backend Backend
	locks   *keyLock
	log     *slog.Logger
}

var _ Store = (*TaskStore)(nil)

// Option configures a TaskStore.
type Option func(*TaskStore)

// WithLogger sets the logger used for skipped records and read auditing.
func WithLogger(l *slog.Logger) Option {
	return func(s *TaskStore) {
		if l != nil {
			s.log = l
		}
	}
}

// New returns a TaskStore over b.
func New(b Backend, opts ...Option) *TaskStore {
	s := &TaskStore{backend: b, locks: newKeyLock(), log: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Backend returns the underlying storage backend.
func (s *TaskStore) Backend() Backend { return s.backend }

// Close closes the backend.
func (s *TaskStore) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

// CreateTask persists a new task. Comments start empty and the recommendation unset.
// Fails with Invalid for an empty name and AlreadyExists if the name is taken.
func (s *TaskStore) CreateTask(ctx context.Context, t Task) (err error) {
	ctx, done := s.begin(ctx, "create", t.Name, "")
	defer func() { done(err) }()

	if strings.TrimSpace(t.Name) == "" {
		return &Error{Kind: KindInvalid, Err: errors.New("task name required")}
	}
	rec := Task{
		Name:        t.Name,
		Approver1:   t.Approver1,
		Approver2:   t.Approver2,
		Approver3:   t.Approver3,
		Description: t.Description,
		Comments:    []string{},
	}

	unlock := s.locks.Lock(t.Name)
	defer unlock()
	if err := s.backend.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return &Error{Kind: KindAlreadyExists, Task: t.Name}
		}
		return internal(t.Name, err)
	}
	return nil
}

// GetTask returns the task named name. user is recorded but not checked: reads are open.
func (s *TaskStore) GetTask(ctx context.Context, name, user string) (t Task, err error) {
	ctx, done := s.begin(ctx, "get", name, user)
	defer func() { done(err) }()

	s.log.DebugContext(ctx, "task read", "task", name, "user", user)
	return s.load(ctx, name)
}

// ListTasks returns every stored task ordered by name.
func (s *TaskStore) ListTasks(ctx context.Context) (out []Task, err error) {
	ctx, done := s.begin(ctx, "list", "", "")
	defer func() { done(err) }()

	tasks, err := s.backend.LoadAll(ctx)
	if err != nil {
		return nil, internal("*", err)
	}
	out = make([]Task, 0, len(tasks))
	for _, t := range tasks {
		t.normalize()
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Count returns the number of stored tasks, including records that fail to decode
// when the backend counts them directly.
func (s *TaskStore) Count(ctx context.Context) (int64, error) {
	if c, ok := s.backend.(Counter); ok {
		return c.Count(ctx)
	}
	tasks, err := s.backend.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(tasks)), nil
}

// AddComment appends "<text>:--:<user>" to the task's comments.
func (s *TaskStore) AddComment(ctx context.Context, name, text, user string) error {
	return s.mutate(ctx, "comment", name, user, func(t *Task) {
		t.Comments = append(t.Comments, FormatComment(text, user))
	})
}

// AddRecommendation replaces the task's recommendation and records user as decision maker.
func (s *TaskStore) AddRecommendation(ctx context.Context, name, text, user string) error {
	return s.mutate(ctx, "recommend", name, user, func(t *Task) {
		t.Recommendation = text
		t.DecisionMaker = user
	})
}

// ClearComments empties the task's comments.
func (s *TaskStore) ClearComments(ctx context.Context, name, user string) error {
	return s.mutate(ctx, "clear_comments", name, user, func(t *Task) {
		t.Comments = []string{}
	})
}

// mutate runs a read-modify-write of one task under its key lock.
// Existence is checked before authorization.
func (s *TaskStore) mutate(ctx context.Context, op, name, user string, apply func(*Task)) (err error) {
	ctx, done := s.begin(ctx, op, name, user)
	defer func() { done(err) }()

	unlock := s.locks.Lock(name)
	defer unlock()

	t, err := s.load(ctx, name)
	if err != nil {
		return err
	}
	if !IsApprover(t, user) {
		return unauthorized(name, user)
	}
	apply(&t)
	if err := s.backend.Save(ctx, t); err != nil {
		return internal(name, err)
	}
	return nil
}

func (s *TaskStore) load(ctx context.Context, name string) (Task, error) {
	t, err := s.backend.Load(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Task{}, notFound(name)
		}
		return Task{}, internal(name, err)
	}
	t.normalize()
	return t, nil
}

// begin opens a span for op and returns the func that closes it and records metrics.
func (s *TaskStore) begin(ctx context.Context, op, name, user string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.StartSpan(ctx, "store."+op,
		otel.AttrOperation.String(op),
		otel.AttrTask.String(name),
		otel.AttrUser.String(user),
	)
	return ctx, func(err error) {
		otel.EndSpan(span, err)
		otel.RecordTaskOp(ctx, op, outcome(err), time.Since(start))
		if KindOf(err) == KindInternal && err != nil {
			s.log.ErrorContext(ctx, "task store failure", "op", op, "task", name, "err", err)
		}
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
