package http

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web
var webFS embed.FS

// indexHandler serves the dashboard page and its static assets.
func indexHandler() http.Handler {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err) // embedded path is fixed at compile time
	}
	return http.FileServer(http.FS(sub))
}
