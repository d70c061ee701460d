package daemon

import "log/slog"

// StartOptions configures the server process (home, listen addr, storage, telemetry).
type StartOptions struct {
	Home       string
	Addr       string // host:port; port 0 picks a free port
	Dev        bool
	PprofAddr  string
	APIKey     string
	DBDriver   string // json (default), sqlite, postgres, memory
	DBURL      string // sqlite file or postgres connection string (or DATABASE_URL env)
	DataDir    string // defaults to <home>/data
	EnableOtel bool   // Prometheus exporter on /metrics plus otelhttp instrumentation
	TraceFile  string // if set, store and HTTP spans are written here as JSON lines
	Version    string
	Logger     *slog.Logger
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
