package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ankittk/signoff/internal/store"
	"github.com/ankittk/signoff/internal/store/driver"
	"github.com/ankittk/signoff/internal/ui"
	"github.com/ankittk/signoff/pkg/models"
)

// defaultMaxRequestBodyBytes is the default limit for request body size (1 MiB).
const defaultMaxRequestBodyBytes = 1 << 20

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read more than maxBytes.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

// bodyLimitMiddleware limits request body size for POST, PUT, PATCH.
func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets permissive CORS headers for dev mode.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server (listen addr, API key, storage, metrics).
type ServerOptions struct {
	Addr           string
	Dev            bool
	APIKey         string       // if set, require X-API-Key header or query api_key
	DBDriver       string       // json (default), sqlite, postgres, memory
	DBURL          string       // sqlite file or postgres connection string (or DATABASE_URL)
	DataDir        string       // base directory for the json and sqlite drivers
	Store          store.Store  // if set, used instead of opening DBDriver; not closed on shutdown
	MetricsHandler http.Handler // if set, used for /metrics (e.g. OTel Prometheus handler)
	UseOtelHTTP    bool         // if true, wrap handler with otelhttp for request metrics and spans
	Logger         *slog.Logger // nil uses slog.Default()
}

// App holds the HTTP server, SSE hub and task store.
type App struct {
	Server *http.Server
	Hub    *SSEHub
	Store  store.Store
}

// NewApp opens the store (unless one is supplied) and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	st := opts.Store
	owned := false
	if st == nil {
		ts, err := driver.Open(context.Background(), driver.Options{
			Driver:  opts.DBDriver,
			DataDir: opts.DataDir,
			DSN:     opts.DBURL,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		st, owned = ts, true
	}

	hub := NewSSEHub()
	h := &handlers{store: st, hub: hub, log: log}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	if opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", opts.MetricsHandler)
	} else {
		mux.HandleFunc("GET /metrics", h.plainMetrics)
	}
	mux.HandleFunc("GET /stream", hub.Handler())

	mux.HandleFunc("POST /tasks", h.createTask)
	mux.HandleFunc("GET /tasks", h.listTasks)
	mux.HandleFunc("GET /tasks/{name}", h.getTask)
	mux.HandleFunc("POST /tasks/{name}/comments", h.addComment)
	mux.HandleFunc("DELETE /tasks/{name}/comments", h.clearComments)
	mux.HandleFunc("POST /tasks/{name}/recommendation", h.addRecommendation)

	mux.Handle("GET /", ui.Handler())

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(defaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(log, handler)
	handler = requestIDMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "signoff")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if owned {
		srv.RegisterOnShutdown(func() {
			_ = st.Close()
		})
	}
	return &App{Server: srv, Hub: hub, Store: st}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// writeMessage sends {"message": msg} with the given status code.
func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, models.Message{Message: msg})
}

// writeJSONError sends the error as {"message": ...} with the given status code.
func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeMessage(w, code, message)
}

// decodeBody decodes a JSON request body into v, reporting 400 or 413 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func taskName(r *http.Request) string {
	return r.PathValue("name")
}

func requireUser(w http.ResponseWriter, user string) bool {
	if strings.TrimSpace(user) == "" {
		writeJSONError(w, http.StatusBadRequest, "user required")
		return false
	}
	return true
}

func plainCount(ctx context.Context, st store.Store) (int64, error) {
	if c, ok := st.(store.Counter); ok {
		return c.Count(ctx)
	}
	tasks, err := st.ListTasks(ctx)
	return int64(len(tasks)), err
}

func (h *handlers) plainMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	n, err := plainCount(r.Context(), h.store)
	if err != nil {
		h.log.WarnContext(r.Context(), "metrics: count tasks", "err", err)
	}
	_, _ = fmt.Fprintf(w, "# TYPE signoff_tasks gauge\n")
	_, _ = fmt.Fprintf(w, "signoff_tasks %d\n", n)
}
