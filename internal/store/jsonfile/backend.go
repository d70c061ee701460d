// Package jsonfile stores one JSON document per task under a base directory.
package jsonfile

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/ankittk/signoff/internal/store"
)

//go:embed task.schema.json
var taskSchemaJSON []byte

const (
	schemaURL = "task.schema.json"
	ext       = ".json"
)

// Backend implements store.Backend on top of an afs file system.
type Backend struct {
	basePath string
	fs       afs.Service
	schema   *jsonschema.Schema
	log      *slog.Logger
	mu       sync.RWMutex
}

var _ store.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used to report skipped records.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.log = l
		}
	}
}

// New creates the base directory if needed and returns a Backend rooted there.
func New(ctx context.Context, basePath string, opts ...Option) (*Backend, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	fs := afs.New()
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}

	b := &Backend{
		basePath: url.Normalize(basePath, file.Scheme),
		fs:       fs,
		schema:   schema,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(taskSchemaJSON)); err != nil {
		return nil, fmt.Errorf("load task schema: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile task schema: %w", err)
	}
	return s, nil
}

func (b *Backend) Insert(ctx context.Context, t store.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.taskPath(t.Name)
	exists, err := b.fs.Exists(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to check if task exists: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: %s", store.ErrAlreadyExists, t.Name)
	}
	return b.write(ctx, p, t)
}

func (b *Backend) Load(ctx context.Context, name string) (store.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p := b.taskPath(name)
	exists, err := b.fs.Exists(ctx, p)
	if err != nil {
		return store.Task{}, fmt.Errorf("failed to check if task exists: %w", err)
	}
	if !exists {
		return store.Task{}, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	data, err := b.fs.DownloadWithURL(ctx, p)
	if err != nil {
		return store.Task{}, fmt.Errorf("failed to read task file: %w", err)
	}
	t, err := b.decode(data)
	if err != nil {
		return store.Task{}, err
	}
	if t.Name != name {
		return store.Task{}, fmt.Errorf("%w: file for %q holds task %q", store.ErrMalformed, name, t.Name)
	}
	return t, nil
}

// Save overwrites an existing task file.
func (b *Backend) Save(ctx context.Context, t store.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.taskPath(t.Name)
	exists, err := b.fs.Exists(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to check if task exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", store.ErrNotFound, t.Name)
	}
	return b.write(ctx, p, t)
}

// LoadAll reads every task file. Files that do not decode or validate are skipped.
func (b *Backend) LoadAll(ctx context.Context) ([]store.Task, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	objects, err := b.fs.List(ctx, b.basePath, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list task files: %w", err)
	}
	var out []store.Task
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ext) {
			continue
		}
		data, err := b.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("failed to read task file %s: %w", object.URL(), err)
		}
		t, err := b.decode(data)
		if err == nil && fileKey(t.Name)+ext != object.Name() {
			err = fmt.Errorf("%w: file name does not match task %q", store.ErrMalformed, t.Name)
		}
		if err != nil {
			b.log.WarnContext(ctx, "skipping task file", "file", object.URL(), "err", err)
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Count returns the number of task files.
func (b *Backend) Count(ctx context.Context) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	objects, err := b.fs.List(ctx, b.basePath, option.NewRecursive(false))
	if err != nil {
		return 0, err
	}
	var n int64
	for _, object := range objects {
		if !object.IsDir() && strings.HasSuffix(object.Name(), ext) {
			n++
		}
	}
	return n, nil
}

func (b *Backend) Close() error { return nil }

func (b *Backend) write(ctx context.Context, p string, t store.Task) error {
	if t.Comments == nil {
		t.Comments = []string{}
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := b.fs.Upload(ctx, p, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save task to file %s: %w", p, err)
	}
	return nil
}

// decode validates data against the task schema before unmarshalling it.
func (b *Backend) decode(data []byte) (store.Task, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return store.Task{}, fmt.Errorf("%w: %v", store.ErrMalformed, err)
	}
	if err := b.schema.Validate(doc); err != nil {
		return store.Task{}, fmt.Errorf("%w: %s", store.ErrMalformed, schemaMessage(err))
	}
	var t store.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return store.Task{}, fmt.Errorf("%w: %v", store.ErrMalformed, err)
	}
	return t, nil
}

func schemaMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}

func (b *Backend) taskPath(name string) string {
	return url.Join(b.basePath, fileKey(name)+ext)
}
