package daemon

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStartForeground_emptyHome(t *testing.T) {
	ctx := context.Background()
	err := StartForeground(ctx, StartOptions{Home: ""})
	if err == nil {
		t.Fatal("StartForeground empty home: expected error")
	}
}

func TestStatus_notRunning(t *testing.T) {
	home := t.TempDir()
	st, err := Status(context.Background(), home)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Running {
		t.Fatalf("Status on empty home: %+v", st)
	}
	stopped, err := Stop(context.Background(), home)
	if err != nil || stopped {
		t.Fatalf("Stop on empty home: stopped=%v err=%v", stopped, err)
	}
}

func TestStatus_stalePID(t *testing.T) {
	home := t.TempDir()
	if err := os.MkdirAll(protectedDir(home), 0o755); err != nil {
		t.Fatal(err)
	}
	// Not a valid pid.
	if err := os.WriteFile(pidPath(home), []byte("garbage\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	st, _ := Status(context.Background(), home)
	if st.Running {
		t.Fatalf("garbage pid reported running: %+v", st)
	}
}

func waitForAddr(t *testing.T, home string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if b, err := os.ReadFile(addrPath(home)); err == nil && len(strings.TrimSpace(string(b))) > 0 {
			return strings.TrimSpace(string(b))
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("server did not write addr file")
	return ""
}

func TestStartForeground_servesUntilCancelled(t *testing.T) {
	home := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- StartForeground(ctx, StartOptions{
			Home:      home,
			Addr:      "127.0.0.1:0",
			DBDriver:  "memory",
			TraceFile: filepath.Join(home, "trace.jsonl"),
		})
	}()

	addr := waitForAddr(t, home)
	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /health: status=%d", resp.StatusCode)
	}

	st, err := Status(ctx, home)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !st.Running || st.PID != os.Getpid() || st.Addr != addr {
		t.Fatalf("Status: %+v want pid %d addr %s", st, os.Getpid(), addr)
	}

	// A second server on the same home must not start.
	err = StartForeground(context.Background(), StartOptions{Home: home, Addr: "127.0.0.1:0", DBDriver: "memory"})
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("second StartForeground: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("StartForeground: %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("server did not stop")
	}
	if _, err := os.Stat(pidPath(home)); !os.IsNotExist(err) {
		t.Fatalf("pid file left behind: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "trace.jsonl")); err != nil {
		t.Fatalf("trace file: %v", err)
	}
}

func TestBackgroundArgs(t *testing.T) {
	args := backgroundArgs(StartOptions{
		Home:     "/h",
		Addr:     "127.0.0.1:6000",
		DBDriver: "sqlite",
		Dev:      true,
		APIKey:   "secret",
	})
	got := strings.Join(args, " ")
	want := "serve --home /h --addr 127.0.0.1:6000 --db-driver sqlite --dev"
	if got != want {
		t.Fatalf("backgroundArgs = %q want %q", got, want)
	}
}
