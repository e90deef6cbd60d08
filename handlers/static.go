package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"
	"github.com/spf13/afero"
)

// StaticHandler serves the built landing page and its assets.
type StaticHandler struct {
	fs  afero.Fs
	log *slog.Logger
}

// NewStaticHandler serves files from root, usually an afero.BasePathFs over
// the frontend build directory.
func NewStaticHandler(root afero.Fs) *StaticHandler {
	return &StaticHandler{
		fs:  root,
		log: slog.Default().With("component", "static"),
	}
}

// Index serves index.html.
// GET /
func (h *StaticHandler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	h.serveFile(w, "index.html")
}

// Asset serves a file below assets/.
// GET /assets/{path}
func (h *StaticHandler) Asset(w http.ResponseWriter, r *http.Request) {
	name := CleanAssetPath(mux.Vars(r)["path"])
	if name == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	h.serveFile(w, path.Join("assets", name))
}

// CleanAssetPath removes traversal segments so the result always stays
// below the assets directory. It returns "" when nothing usable is left.
func CleanAssetPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	parts := strings.Split(p, "/")
	kept := parts[:0]
	for _, part := range parts {
		switch part {
		case "", ".", "..":
			continue
		}
		kept = append(kept, part)
	}
	return strings.Join(kept, "/")
}

func (h *StaticHandler) serveFile(w http.ResponseWriter, name string) {
	data, err := afero.ReadFile(h.fs, filepath.FromSlash(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.log.Error("failed to read static file", "file", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType(name, data))
	w.Write(data)
}

// contentType trusts the extension for web formats and sniffs everything else.
func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return mimetype.Detect(data).String()
}
