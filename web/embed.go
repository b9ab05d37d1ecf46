// Package web serves the built farmer dashboard from dist/. Any path that is
// not a file falls through to index.html so client-side routes such as
// /weather or /market load the app.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// reservedPrefixes are owned by the server; unknown paths under them are
// real 404s rather than app routes.
var reservedPrefixes = []string{"/api/", "/ws/"}

type spaHandler struct {
	files      fs.FS
	fileServer http.Handler
}

// SPAHandler returns the dashboard handler.
func SPAHandler() http.Handler {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return &spaHandler{files: sub, fileServer: http.FileServer(http.FS(sub))}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error": "not found"}` + "\n"))
			return
		}
	}

	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name != "" && name != "index.html" && h.exists(name) {
		// Bundler output under assets/ is content-hashed.
		if strings.HasPrefix(name, "assets/") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		h.fileServer.ServeHTTP(w, r)
		return
	}

	w.Header().Set("Cache-Control", "no-cache")
	r2 := r.Clone(r.Context())
	r2.URL.Path = "/"
	h.fileServer.ServeHTTP(w, r2)
}

func (h *spaHandler) exists(name string) bool {
	info, err := fs.Stat(h.files, name)
	return err == nil && !info.IsDir()
}
