package web

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

const htmlContentType = "text/html; charset=utf-8"

// Asset maps a public path to a file in the static directory
type Asset struct {
	Path        string
	File        string
	ContentType string
}

// Assets is the fixed set of pages the site serves
var Assets = []Asset{
	{Path: "/", File: "index.html", ContentType: htmlContentType},
	{Path: "/message.html", File: "message.html", ContentType: htmlContentType},
	{Path: "/style.css", File: "style.css", ContentType: "text/css"},
	{Path: "/logo.png", File: "logo.png", ContentType: "image/png"},
}

const errorPage = "error.html"

// Static serves files from dir. Files are read on every request so edits
// show up without a restart.
type Static struct {
	dir    string
	logger *slog.Logger
}

// NewStatic creates a responder rooted at dir
func NewStatic(dir string, logger *slog.Logger) *Static {
	return &Static{dir: dir, logger: logger}
}

// Handler serves one asset with status 200
func (s *Static) Handler(asset Asset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.serveFile(w, r, asset.File, asset.ContentType, http.StatusOK)
	}
}

// NotFound answers GET requests with the error page and everything else
// with a bare 404
func (s *Static) NotFound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	s.serveFile(w, r, errorPage, htmlContentType, http.StatusNotFound)
}

// MethodNotAllowed keeps known paths from leaking 405s for GET and POST:
// both behave as if the path did not exist
func (s *Static) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost:
		s.NotFound(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Static) serveFile(w http.ResponseWriter, r *http.Request, name, contentType string, status int) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("Failed to read static file",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
		}
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}
