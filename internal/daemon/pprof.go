package daemon

import (
	"log/slog"
	"net/http"

	_ "net/http/pprof"
)

// startPprof serves net/http/pprof on addr (DefaultServeMux) until the process exits.
// The API server uses its own mux, so profiles are never exposed on the API address.
func startPprof(addr string, log *slog.Logger) {
	if addr == "" {
		return
	}
	log.Info("pprof enabled", "addr", addr)
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Warn("pprof server stopped", "addr", addr, "err", err)
		}
	}()
}
