package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ankittk/signoff/internal/store"
)

func TestOpen_defaultIsJSON(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(context.Background(), Options{DataDir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	if err := st.CreateTask(context.Background(), store.Task{Name: "task1", Approver1: "u"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tasks", "task1.json")); err != nil {
		t.Fatalf("expected task file: %v", err)
	}
}

func TestOpen_sqlite(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(context.Background(), Options{Driver: "SQLite", DataDir: dir})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	if _, err := os.Stat(filepath.Join(dir, "signoff.db")); err != nil {
		t.Fatalf("expected db file: %v", err)
	}
}

func TestOpen_memory(t *testing.T) {
	st, err := Open(context.Background(), Options{Driver: Memory})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := st.Backend().(*store.MemoryBackend); !ok {
		t.Fatalf("backend = %T", st.Backend())
	}
}

func TestOpen_errors(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, Options{Driver: "mongo"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(ctx, Options{Driver: JSON}); err == nil {
		t.Fatal("expected error for json without data dir")
	}
	if _, err := Open(ctx, Options{Driver: SQLite}); err == nil {
		t.Fatal("expected error for sqlite without data dir")
	}
	t.Setenv("DATABASE_URL", "")
	if _, err := Open(ctx, Options{Driver: Postgres}); err == nil {
		t.Fatal("expected error for postgres without DSN")
	}
}
