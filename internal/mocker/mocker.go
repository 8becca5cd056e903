// Package mocker answers API requests from fixture files, following the
// connect-api-mocker layout: a request for GET /api/users/1 is served from
// <dir>/users/1/GET.json, a "__" directory matches any single path segment.
// Requests are never forwarded to a backend, an unmatched path is a 404.
package mocker

import (
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
	"github.com/toastate/homeservice/internal/tlogger"
)

// Wildcard is the directory name matching any path segment
const Wildcard = "__"

const cacheSize = 256

type fixture struct {
	modTime time.Time
	size    int64
	body    []byte
}

type Mocker struct {
	prefix string
	fs     afero.Fs
	cache  *lru.Cache[string, fixture]
}

// New serves fixtures from dir on disk, nothing outside dir is reachable
func New(prefix, dir string) *Mocker {
	return NewWithFs(prefix, afero.NewBasePathFs(afero.NewOsFs(), dir))
}

// NewWithFs serves fixtures from the root of fsys
func NewWithFs(prefix string, fsys afero.Fs) *Mocker {
	cache, _ := lru.New[string, fixture](cacheSize)
	return &Mocker{
		prefix: "/" + strings.Trim(prefix, "/"),
		fs:     fsys,
		cache:  cache,
	}
}

func (m *Mocker) Prefix() string {
	return m.prefix
}

func (m *Mocker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	file, ok := m.Resolve(r.Method, r.URL.Path)
	if !ok {
		tlogger.Debug("mocker", "api", "msg", "No fixture", "method", r.Method, "path", r.URL.Path)
		http.NotFound(w, r)
		return
	}

	body, err := m.read(file)
	if err != nil {
		tlogger.Error("mocker", "api", "msg", "Can't read fixture", "file", file, "err", err)
		http.Error(w, "Internal error: can't read fixture", http.StatusInternalServerError)
		return
	}

	ctype := mime.TypeByExtension(path.Ext(file))
	if ctype == "" {
		ctype = http.DetectContentType(body)
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(http.StatusOK)
	w.Write(body)

	tlogger.Debug("mocker", "api", "msg", "Served fixture", "method", r.Method, "path", r.URL.Path, "file", file)
}

// Resolve maps a request to a fixture file, the returned name is relative to the fixture root
func (m *Mocker) Resolve(method, urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	if clean != m.prefix && !strings.HasPrefix(clean, strings.TrimSuffix(m.prefix, "/")+"/") {
		return "", false
	}
	rest := strings.Trim(strings.TrimPrefix(clean, m.prefix), "/")

	var segments []string
	if rest != "" {
		segments = strings.Split(rest, "/")
	}

	dir, ok := m.walk(segments[:max(len(segments)-1, 0)])
	if !ok {
		return "", false
	}

	// a last segment naming a file is served as is
	if len(segments) > 0 {
		last := segments[len(segments)-1]
		if f := path.Join(dir, last); m.isFile(f) {
			return f, true
		}
	}

	dir, ok = m.walk(segments)
	if !ok {
		return "", false
	}
	f := path.Join(dir, strings.ToUpper(method)+".json")
	if m.isFile(f) {
		return f, true
	}
	return "", false
}

// walk descends segments from the fixture root, a missing directory falls back to the wildcard
func (m *Mocker) walk(segments []string) (string, bool) {
	dir := "/"
	for _, s := range segments {
		if s == "" || s == "." || s == ".." {
			return "", false
		}
		if d := path.Join(dir, s); m.isDir(d) {
			dir = d
			continue
		}
		if d := path.Join(dir, Wildcard); m.isDir(d) {
			dir = d
			continue
		}
		return "", false
	}
	return dir, true
}

func (m *Mocker) read(file string) ([]byte, error) {
	info, err := m.fs.Stat(file)
	if err != nil {
		return nil, err
	}
	if f, ok := m.cache.Get(file); ok && f.modTime.Equal(info.ModTime()) && f.size == info.Size() {
		return f.body, nil
	}

	body, err := afero.ReadFile(m.fs, file)
	if err != nil {
		return nil, err
	}
	m.cache.Add(file, fixture{modTime: info.ModTime(), size: info.Size(), body: body})
	return body, nil
}

func (m *Mocker) isFile(p string) bool {
	info, err := m.fs.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func (m *Mocker) isDir(p string) bool {
	info, err := m.fs.Stat(p)
	return err == nil && info.IsDir()
}
