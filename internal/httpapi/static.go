package httpapi

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// spaHandler serves a built single-page site. Paths that do not name a
// file fall back to index.html so client-side routing works on reload.
type spaHandler struct {
	root  string
	files http.Handler
}

func newSPAHandler(root string) (*spaHandler, bool) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, false
	}
	return &spaHandler{root: root, files: http.FileServer(http.Dir(root))}, true
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	full := filepath.Join(h.root, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(full); err == nil {
		if !info.IsDir() || fileExists(filepath.Join(full, "index.html")) {
			h.files.ServeHTTP(w, r)
			return
		}
	}
	http.ServeFile(w, r, filepath.Join(h.root, "index.html"))
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
