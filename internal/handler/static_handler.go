package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"livechat/internal/pkg/logx"
)

// HandleStatic serves files from dir and falls back to dir/index.html for any other path,
// so client-side routes load the single-page app.
func HandleStatic(dir string) http.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))

		if info, err := os.Stat(name); err == nil && !info.IsDir() {
			files.ServeHTTP(w, r)
			return
		}

		logx.Debug("Serving SPA index for client route", "path", r.URL.Path)
		http.ServeFile(w, r, index)
	}
}
