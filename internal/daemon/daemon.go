package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ankittk/signoff/internal/httpapi"
	"github.com/ankittk/signoff/internal/otel"
	"github.com/ankittk/signoff/internal/store"
)

const (
	DefaultAddr     = "127.0.0.1:5000"
	shutdownTimeout = 15 * time.Second
)

var errNotRunning = errors.New("signoff is not running")

// StartForeground serves the HTTP API until ctx is cancelled, then shuts down gracefully.
func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.DataDir == "" {
		opts.DataDir = filepath.Join(opts.Home, "data")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	// Ensure dirs exist.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return err
	}

	// Acquire singleton lock (released on exit).
	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	// Optional pprof.
	startPprof(opts.PprofAddr, log)

	if opts.TraceFile != "" {
		shutdown, err := startTracing(ctx, opts)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	srvOpts := httpapi.ServerOptions{
		Addr:     opts.Addr,
		Dev:      opts.Dev,
		APIKey:   opts.APIKey,
		DBDriver: opts.DBDriver,
		DBURL:    opts.DBURL,
		DataDir:  opts.DataDir,
		Logger:   log,
	}
	if opts.EnableOtel {
		metricsHandler, err := otel.InitMeterProvider(ctx, "signoff")
		if err != nil {
			log.Warn("otel init failed, using plain metrics", "err", err)
		} else {
			srvOpts.MetricsHandler = metricsHandler
			srvOpts.UseOtelHTTP = true
		}
	}
	if opts.TraceFile != "" {
		srvOpts.UseOtelHTTP = true
	}
	app, err := httpapi.NewApp(srvOpts)
	if err != nil {
		return err
	}
	if srvOpts.MetricsHandler != nil {
		_ = otel.InitMetricsWithTaskCount(ctx, taskCounter(app.Store))
	} else {
		_ = otel.InitMetrics(ctx)
	}

	// Listening before writing the addr file means port 0 resolves to the real port.
	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		_ = app.Store.Close()
		return fmt.Errorf("listen %s: %w", opts.Addr, err)
	}
	addr := ln.Addr().String()

	// Write PID + addr files.
	if err := os.WriteFile(pidPath(opts.Home), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = ln.Close()
		_ = app.Store.Close()
		return err
	}
	_ = os.WriteFile(addrPath(opts.Home), []byte(addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(opts.Home))
		_ = os.Remove(addrPath(opts.Home))
	}()

	log.Info("server starting", "addr", addr, "home", opts.Home, "db_driver", opts.DBDriver)
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := app.Server.Shutdown(shutdownCtx)
		log.Info("server stopped", "addr", addr)
		return err
	case err := <-errCh:
		_ = app.Store.Close()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func startTracing(ctx context.Context, opts StartOptions) (func(context.Context) error, error) {
	f, err := os.OpenFile(opts.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	shutdown, err := otel.InitTracerProvider(ctx, "signoff", opts.Version, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return func(ctx context.Context) error {
		err := shutdown(ctx)
		_ = f.Close()
		return err
	}, nil
}

func taskCounter(st store.Store) otel.TaskCountFunc {
	if c, ok := st.(store.Counter); ok {
		return c.Count
	}
	return func(ctx context.Context) (int64, error) {
		tasks, err := st.ListTasks(ctx)
		return int64(len(tasks)), err
	}
}

// StartBackground re-executes the current binary as "serve" detached from the terminal.
// Output goes to <home>/protected/daemon.log.
func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	// Ensure dirs exist before starting.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return 0, err
	}

	// Best-effort: refuse to start if already running.
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("signoff already running (pid %d)", st.PID)
	}

	stderr, err := os.OpenFile(logPath(opts.Home), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for child lifetime; closing here may break writes on some platforms.

	cmd := exec.Command(exe, backgroundArgs(opts)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	cmd.Env = os.Environ()
	if opts.APIKey != "" {
		cmd.Env = append(cmd.Env, "SIGNOFF_API_KEY="+opts.APIKey)
	}
	setDaemonSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Wait briefly for pid file to appear or process to die.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, opts.Home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Fallback to started pid even if status isn't ready yet.
	return cmd.Process.Pid, nil
}

// backgroundArgs rebuilds the serve command line for a detached child.
// The API key travels through the environment, not argv.
func backgroundArgs(opts StartOptions) []string {
	args := []string{"serve", "--home", opts.Home}
	if opts.Addr != "" {
		args = append(args, "--addr", opts.Addr)
	}
	if opts.DBDriver != "" {
		args = append(args, "--db-driver", opts.DBDriver)
	}
	if opts.DBURL != "" {
		args = append(args, "--db-url", opts.DBURL)
	}
	if opts.DataDir != "" {
		args = append(args, "--data-dir", opts.DataDir)
	}
	if opts.Dev {
		args = append(args, "--dev")
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}
	if opts.EnableOtel {
		args = append(args, "--otel")
	}
	if opts.TraceFile != "" {
		args = append(args, "--trace-file", opts.TraceFile)
	}
	return args
}

// Stop sends SIGTERM to the running server and waits up to 15s for it to exit.
func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		// On unix FindProcess always succeeds; keep this for completeness.
		return false, errNotRunning
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	deadline := time.Now().Add(shutdownTimeout)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}

	_ = proc.Kill()
	return true, nil
}

// Status reports whether a server owns home, from its pid and addr files.
func Status(ctx context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{Running: false}, nil
	}
	pidStr := strings.TrimSpace(string(pb))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return StatusInfo{Running: false}, nil
	}

	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{Running: false}, nil
	}

	addr := ""
	if ab, err := os.ReadFile(addrPath(home)); err == nil {
		addr = strings.TrimSpace(string(ab))
	}
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}
