package handler

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
)

// Files serves the rendered notes and the static front end. Each directory
// is opened as an os.Root, so no request can reach outside it.
type Files struct {
	notes  *os.Root
	static *os.Root
	logger *slog.Logger
}

// NewFiles opens htmlDir and staticDir. An empty or missing static
// directory disables the front end routes; htmlDir must exist when set.
func NewFiles(htmlDir, staticDir string) (*Files, error) {
	f := &Files{logger: slog.Default().With("component", "file-handler")}
	if htmlDir != "" {
		root, err := os.OpenRoot(htmlDir)
		if err != nil {
			return nil, err
		}
		f.notes = root
	}
	if staticDir != "" {
		root, err := os.OpenRoot(staticDir)
		switch {
		case err == nil:
			f.static = root
		case errors.Is(err, fs.ErrNotExist):
			f.logger.Warn("static directory missing, front end disabled", "dir", staticDir)
		default:
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

// Note serves GET and POST /notes/{path...}.
func (f *Files) Note(w http.ResponseWriter, r *http.Request) {
	f.serve(w, r, f.notes, r.PathValue("path"))
}

// Static serves GET /static/{path...}.
func (f *Files) Static(w http.ResponseWriter, r *http.Request) {
	f.serve(w, r, f.static, r.PathValue("path"))
}

// Index serves the search page.
func (f *Files) Index(w http.ResponseWriter, r *http.Request) {
	f.serve(w, r, f.static, "index.html")
}

func (f *Files) Favicon(w http.ResponseWriter, r *http.Request) {
	f.serve(w, r, f.static, "favicon.ico")
}

func (f *Files) serve(w http.ResponseWriter, r *http.Request, root *os.Root, name string) {
	if root == nil || name == "" || !fs.ValidPath(name) {
		http.NotFound(w, r)
		return
	}
	fsys := root.FS()
	info, err := fs.Stat(fsys, name)
	if err != nil || info.IsDir() {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("file lookup failed", "name", name, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, fsys, name)
}

func (f *Files) Close() error {
	var errs []error
	if f.notes != nil {
		errs = append(errs, f.notes.Close())
	}
	if f.static != nil {
		errs = append(errs, f.static.Close())
	}
	return errors.Join(errs...)
}
