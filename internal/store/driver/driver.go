// Package driver opens the configured storage backend and wraps it in a store.TaskStore.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ankittk/signoff/internal/store"
	"github.com/ankittk/signoff/internal/store/jsonfile"
	"github.com/ankittk/signoff/internal/store/postgres"
	"github.com/ankittk/signoff/internal/store/sqlite"
)

const (
	JSON     = "json"
	SQLite   = "sqlite"
	Postgres = "postgres"
	Memory   = "memory"
)

// Names lists the supported drivers.
var Names = []string{JSON, SQLite, Postgres, Memory}

// Options selects and locates a backend.
type Options struct {
	Driver  string // empty means JSON
	DataDir string // base directory for json and sqlite
	DSN     string // json dir, sqlite file or postgres URL; overrides DataDir
	Logger  *slog.Logger
}

// Open returns a TaskStore over the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (*store.TaskStore, error) {
	b, err := OpenBackend(ctx, opts)
	if err != nil {
		return nil, err
	}
	return store.New(b, store.WithLogger(opts.Logger)), nil
}

// OpenBackend opens the raw backend without the approver layer.
func OpenBackend(ctx context.Context, opts Options) (store.Backend, error) {
	name := strings.ToLower(strings.TrimSpace(opts.Driver))
	if name == "" {
		name = JSON
	}
	switch name {
	case Memory:
		return store.NewMemoryBackend(), nil
	case JSON:
		dir := opts.DSN
		if strings.Contains(dir, "://") && !strings.HasPrefix(dir, "file://") {
			dir = ""
		}
		if dir == "" {
			if opts.DataDir == "" {
				return nil, fmt.Errorf("json driver: data dir required")
			}
			dir = filepath.Join(opts.DataDir, "tasks")
		}
		return jsonfile.New(ctx, dir, jsonfile.WithLogger(opts.Logger))
	case SQLite:
		path := opts.DSN
		if strings.Contains(path, "://") {
			path = ""
		}
		if path == "" {
			if opts.DataDir == "" {
				return nil, fmt.Errorf("sqlite driver: data dir required")
			}
			path = filepath.Join(opts.DataDir, sqlite.DefaultFile)
		}
		st, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		return st, nil
	case Postgres:
		st, err := postgres.Open(ctx, opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q (want one of %s)", opts.Driver, strings.Join(Names, ", "))
	}
}
