package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"github.com/toastate/homeservice/internal/builder"
	"github.com/toastate/homeservice/internal/mocker"
	"github.com/toastate/homeservice/internal/tlogger"
	"github.com/toastate/homeservice/internal/watcher"
	"github.com/toastate/homeservice/pkg/plan"

	_ "embed"
)

// LiveReloadPath is the websocket endpoint pages open when hot reload is on
const LiveReloadPath = "/__internal/livereload"

const (
	debounce        = 500 * time.Millisecond
	shutdownTimeout = 5 * time.Second
)

//go:embed livereload.html
var liveReloadScript []byte

var overlayTemplate = template.Must(template.New("overlay").Parse(
	`<pre id="homeservice-overlay" style="position:fixed;inset:0;margin:0;padding:2em;overflow:auto;z-index:2147483647;background:rgba(0,0,0,.85);color:#e8e8e8;font:14px/1.4 monospace;white-space:pre-wrap">Build failed:

{{.}}</pre>`))

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
		http.Error(w, reason.Error(), status)
	},
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Server struct {
	rootDir    string
	sourceDir  string
	contentDir string
	// files outside of sourceDir the build reads
	watchFiles []string
	dev        plan.DevServer

	reloadBroker *Broker
	buildtool    *builder.Builder
	mocker       *mocker.Mocker
	router       *mux.Router

	mu       sync.RWMutex
	buildErr error
}

// NewServer wires the dev server of p. Relative plan paths are resolved against rootDir.
func NewServer(rootDir string, p *plan.Plan) *Server {
	if rootDir == "" {
		rootDir = "."
	}
	if abs, err := filepath.Abs(rootDir); err == nil {
		rootDir = abs
	}
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(rootDir, p)
	}

	s := &Server{
		rootDir:      rootDir,
		sourceDir:    resolve(p.SourceDir),
		contentDir:   resolve(p.DevServer.ContentBase),
		dev:          p.DevServer,
		reloadBroker: newBroker(),
		buildtool:    builder.NewBuilder(rootDir, p),
		mocker:       mocker.New(p.DevServer.APIPrefix, resolve(p.DevServer.MocksDir)),
	}

	seen := map[string]struct{}{}
	for _, d := range p.Directives {
		if d.Favicon == "" {
			continue
		}
		if _, ok := seen[d.Favicon]; !ok {
			seen[d.Favicon] = struct{}{}
			s.watchFiles = append(s.watchFiles, resolve(d.Favicon))
		}
	}
	if p.EnvFile != "" {
		s.watchFiles = append(s.watchFiles, resolve(p.EnvFile))
	}

	r := mux.NewRouter()
	r.HandleFunc(LiveReloadPath, s.livereloadHandler)
	r.MatcherFunc(s.underAPIPrefix).Handler(s.mocker)
	r.PathPrefix(s.publicPath()).Handler(gzhttp.GzipHandler(http.HandlerFunc(s.fileServer(s.contentDir, s.dev.Redirect404))))
	s.router = r

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) TriggerReload() {
	s.broker().Publish(struct{}{})
}

func (s *Server) broker() *Broker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reloadBroker
}

// Start serves until ctx is cancelled. With withBuilder the project is built
// first and rebuilt whenever the source tree changes.
func (s *Server) Start(ctx context.Context, withBuilder bool) error {
	// a stopped broker can't be restarted, every run gets its own
	b := newBroker()
	s.mu.Lock()
	s.reloadBroker = b
	s.mu.Unlock()
	go b.Start()
	defer b.Stop()

	if withBuilder {
		if _, err := s.buildtool.Build(ctx); err != nil {
			return err
		}

		updates, err := watcher.StartWatcher(ctx, s.sourceDir, s.watchFiles...)
		if err != nil {
			tlogger.Error("msg", "Can't watch sources", "path", s.sourceDir, "err", err)
			return err
		}
		go s.rebuildLoop(ctx, updates)
	}

	srv := &http.Server{
		Addr:    s.dev.Addr(),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			tlogger.Warn("msg", "Server shutdown", "err", err)
		}
	}()

	// We use println here so the address can be copied or opened directly from the terminal
	fmt.Println("Listening on " + color.CyanString("http://"+s.dev.Addr()+s.publicPath()))
	tlogger.Info("msg", "Mocking API", "prefix", s.mocker.Prefix(), "fixtures", s.dev.MocksDir)

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// rebuildLoop waits for changes to settle before rebuilding
func (s *Server) rebuildLoop(ctx context.Context, updates <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
		}
	rootFor:
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-updates:
				if !ok {
					return
				}
				continue
			case <-time.After(debounce):
				break rootFor
			}
		}

		_, err := s.buildtool.Build(ctx)
		s.setBuildErr(err)
		if err != nil {
			tlogger.Error("msg", "Rebuild failed", "err", err)
			if !s.dev.Overlay {
				continue
			}
		}
		if s.dev.Hot {
			s.TriggerReload()
		}
	}
}

func (s *Server) setBuildErr(err error) {
	s.mu.Lock()
	s.buildErr = err
	s.mu.Unlock()
}

func (s *Server) lastBuildErr() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildErr
}

func (s *Server) publicPath() string {
	p := s.dev.PublicPath
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

func (s *Server) underAPIPrefix(r *http.Request, _ *mux.RouteMatch) bool {
	prefix := s.mocker.Prefix()
	return r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, strings.TrimSuffix(prefix, "/")+"/")
}

func (s *Server) fileServer(dir string, override404 string) func(http.ResponseWriter, *http.Request) {
	if override404 != "" && !strings.HasPrefix(override404, "/") {
		override404 = "/" + override404
	}
	public := strings.TrimSuffix(s.publicPath(), "/")

	return func(w http.ResponseWriter, r *http.Request) {
		upath := "/" + strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, public), "/")

		fullName, err := lookup(dir, upath)
		if err == nil && fullName == "" && override404 != "" && upath != override404 {
			fullName, err = lookup(dir, override404)
		}
		if err != nil {
			http.Error(w, "Internal error: can't open file: "+err.Error(), http.StatusInternalServerError)
			return
		}
		if fullName == "" {
			// a failed rebuild leaves an empty build dir behind, show why
			if s.dev.Overlay && s.lastBuildErr() != nil {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				io.WriteString(w, "<!DOCTYPE html><html><body></body></html>")
				s.writeExtras(w)
				return
			}
			http.NotFound(w, r)
			return
		}

		content, err := os.Open(fullName)
		if err != nil {
			http.Error(w, "Internal error: can't open file", http.StatusInternalServerError)
			return
		}
		defer content.Close()

		ctype := mime.TypeByExtension(filepath.Ext(fullName))
		if ctype == "" {
			// read a chunk to decide between utf-8 text and binary
			var buf [512]byte
			n, _ := io.ReadFull(content, buf[:])
			ctype = http.DetectContentType(buf[:n])
			_, err := content.Seek(0, io.SeekStart) // rewind to output whole file
			if err != nil {
				http.Error(w, "Internal error: can't seek file: "+err.Error(), http.StatusInternalServerError)
				return
			}
		}
		w.Header().Set("Content-Type", ctype)
		io.Copy(w, content)

		if strings.HasPrefix(ctype, "text/html") {
			s.writeExtras(w)
		}
	}
}

// writeExtras appends the build error overlay and the live reload script to an HTML response
func (s *Server) writeExtras(w io.Writer) {
	if s.dev.Overlay {
		if buildErr := s.lastBuildErr(); buildErr != nil {
			if err := overlayTemplate.Execute(w, buildErr.Error()); err != nil {
				tlogger.Error("msg", "could not write overlay", "err", err)
			}
		}
	}
	if s.dev.Hot {
		if _, err := w.Write(liveReloadScript); err != nil {
			tlogger.Error("msg", "could not live reload", "err", err)
		}
	}
}

// lookup resolves upath in dir trying the exact file, then upath.html, then
// upath/index.html. Not found is reported as an empty name.
func lookup(dir, upath string) (string, error) {
	const indexPage = "index.html"

	fullName := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+upath)))
	for _, candidate := range []string{fullName, fullName + ".html", filepath.Join(fullName, indexPage)} {
		info, err := os.Stat(candidate)
		if err != nil {
			if os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR) {
				continue
			}
			return "", err
		}
		if !info.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}

func (s *Server) livereloadHandler(w http.ResponseWriter, r *http.Request) {
	tlogger.Debug("msg", "WS Established")

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		tlogger.Warn("msg", "Reload socket upgrade", "err", err)
		return
	}
	defer c.Close()

	b := s.broker()
	waitCh := b.Subscribe()
	defer b.Unsubscribe(waitCh)

	// the page never writes, reading only notices the socket going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	}()

	select {
	case _, ok := <-waitCh:
		if !ok {
			return
		}
		err = c.WriteMessage(websocket.TextMessage, []byte("reload"))
		if err != nil {
			tlogger.Warn("msg", "Reload socket error", "err", err)
		}
	case <-closed:
	case <-r.Context().Done():
	}
}
