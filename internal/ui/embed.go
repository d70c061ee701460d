package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed dist/*
var distFS embed.FS

// Handler serves the embedded task dashboard (dist/index.html at "/").
// Paths that are not embedded files get 404.
func Handler() http.Handler {
	sub, _ := fs.Sub(distFS, "dist")
	return http.FileServer(http.FS(sub))
}
