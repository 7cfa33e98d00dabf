// Package server is the development server: it keeps the last good build in
// memory, rebuilds when sources change and tells connected pages to reload.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/a-h/templ"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/conneroisu/sitecycle/internal/build"
	"github.com/conneroisu/sitecycle/internal/config"
	siteerrors "github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/manifest"
	"github.com/conneroisu/sitecycle/internal/metrics"
	"github.com/conneroisu/sitecycle/internal/version"
	"github.com/conneroisu/sitecycle/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

// Server serves the current build and the reload channel.
type Server struct {
	cfg      *config.Config
	bundler  *build.Bundler
	watcher  *watcher.FileWatcher
	hub      *Hub
	logger   logging.Logger
	recorder metrics.Recorder
	registry *prom.Registry
	now      func() time.Time

	snapshot atomic.Pointer[build.Result]
	buildMu  sync.Mutex

	serverMutex sync.Mutex
	httpServer  *http.Server
	hubCancel   context.CancelFunc
	hubDone     chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithWatcher rebuilds on every batch fw delivers. The server configures
// its filters and watch paths and stops it on shutdown.
func WithWatcher(fw *watcher.FileWatcher) Option {
	return func(s *Server) {
		s.watcher = fw
	}
}

// WithRegistry exposes build, reload and request metrics from reg on
// /metrics.
func WithRegistry(reg *prom.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a dev server around bundler.
func New(cfg *config.Config, bundler *build.Bundler, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		bundler:  bundler,
		logger:   logging.Nop(),
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("server")
	if s.registry != nil {
		s.recorder = metrics.NewPrometheusRecorder(s.registry)
	}
	s.hub = NewHub(cfg.Server.AllowedOrigins, s.logger, s.recorder)

	recorder := s.recorder
	bundler.Metrics().Observe(func(d time.Duration, err error) {
		recorder.ObserveBuildDuration(d)
		if err != nil {
			recorder.IncBuildOutcome(metrics.OutcomeFailed)
		} else {
			recorder.IncBuildOutcome(metrics.OutcomeSuccess)
		}
	})
	return s
}

// Snapshot returns the build currently served, or nil before the first
// successful build.
func (s *Server) Snapshot() *build.Result {
	return s.snapshot.Load()
}

// Hub returns the reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on the configured host and port and serves until ctx is
// done or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Server.Host, fmt.Sprint(s.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the initial build, then serves on ln. A failing initial build
// is returned and nothing is served.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := config.ValidateReloadPath(s.cfg.Server.ReloadPath); err != nil {
		ln.Close()
		return err
	}
	if err := s.Rebuild(ctx); err != nil {
		ln.Close()
		return fmt.Errorf("initial build: %w", err)
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.hub.Run(hubCtx)
	}()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.serverMutex.Lock()
	s.httpServer = srv
	s.hubCancel = cancel
	s.hubDone = done
	s.serverMutex.Unlock()

	if s.watcher != nil {
		if err := s.watch(ctx); err != nil {
			s.logger.Warn(ctx, err, "file watching disabled")
		}
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	})
	defer stop()

	s.logger.Info(ctx, "dev server listening", "addr", ln.Addr().String(), "origin", s.cfg.Server.Origin)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) watch(ctx context.Context) error {
	outDir, err := s.bundler.OutDir()
	if err != nil {
		return err
	}

	s.watcher.AddFilter(watcher.ExtensionFilter(s.cfg.Watch.Extensions...))
	s.watcher.AddDirFilter(watcher.NoGitFilter)
	s.watcher.AddDirFilter(watcher.NoNodeModulesFilter)
	s.watcher.AddDirFilter(watcher.NotUnderFilter(outDir))
	if len(s.cfg.Watch.Ignore) > 0 {
		s.watcher.AddDirFilter(watcher.GlobFilter(s.cfg.Watch.Ignore...))
		s.watcher.AddFilter(watcher.GlobFilter(s.cfg.Watch.Ignore...))
	}
	s.watcher.AddHandler(func(events []watcher.ChangeEvent) error {
		for _, e := range events {
			s.logger.Info(ctx, "file changed", "path", e.Path, "type", e.Type.String())
		}
		if err := s.Rebuild(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
			case siteerrors.IsRecoverable(err):
				// Source errors clear on the next save.
				s.logger.Warn(ctx, err, "rebuild failed, serving previous build", siteerrors.Fields(err)...)
			default:
				s.logger.Error(ctx, err, "rebuild failed, serving previous build", siteerrors.Fields(err)...)
			}
		}
		return nil
	})

	for _, p := range s.cfg.Watch.Paths {
		if err := s.watcher.AddRecursive(p); err != nil {
			s.logger.Warn(ctx, err, "failed to watch path", "path", p)
		}
	}
	return s.watcher.Start(ctx)
}

// Rebuild bundles the sources once. On success the new output replaces the
// served snapshot, is written to the output directory with its manifest,
// and every reload client is told to reload. On failure the previous
// snapshot keeps being served.
func (s *Server) Rebuild(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	result, err := s.bundler.Build(ctx)
	if err != nil {
		return err
	}

	s.snapshot.Store(result)
	if err := s.persist(result); err != nil {
		s.logger.Warn(ctx, err, "failed to write build output")
	}

	if s.hub.Broadcast(ReloadMessage) {
		s.logger.Debug(ctx, "reload broadcast", "clients", s.hub.Clients())
	}
	return nil
}

func (s *Server) persist(result *build.Result) error {
	outDir, err := s.bundler.OutDir()
	if err != nil {
		return err
	}
	if err := result.Write(outDir); err != nil {
		return err
	}
	m, err := manifest.Generate(result, outDir, s.now())
	if err != nil {
		return err
	}
	return manifest.Save(outDir, m, s.cfg.Site.BaseURL)
}

// Shutdown stops the watcher, the HTTP server and the reload hub. Only the
// first call has any effect; later calls return its result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down dev server")

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn(ctx, err, "failed to stop watcher")
			}
		}

		s.serverMutex.Lock()
		srv, cancel, done := s.httpServer, s.hubCancel, s.hubDone
		s.serverMutex.Unlock()

		if srv != nil {
			s.shutdownErr = srv.Shutdown(ctx)
		}
		if cancel != nil {
			cancel()
			<-done
			s.hub.Wait()
		}
	})
	return s.shutdownErr
}

// Handler returns the server's routes. The reload path must pass
// config.ValidateReloadPath; Serve checks it before building the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /{$}", http.HandlerFunc(s.handleListing))
	s.route(mux, "GET /favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	s.route(mux, "GET /health", http.HandlerFunc(s.handleHealth))
	if s.registry != nil {
		s.route(mux, "GET /metrics", metrics.HTTPHandler(s.registry))
	}
	// The websocket route needs the raw ResponseWriter for the upgrade.
	mux.Handle("GET "+s.cfg.Server.ReloadPath, s.hub)
	s.route(mux, "GET /", http.HandlerFunc(s.handleAsset))

	return s.cors(mux)
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(sw, r)
		s.recorder.IncRequest(pattern, sw.status)
	}))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.isAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isAllowedOrigin(origin string) bool {
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	var outputs []build.Output
	if snap := s.snapshot.Load(); snap != nil {
		outputs = snap.Outputs
	}
	templ.Handler(manifest.Listing(outputs, s.cfg.Server.Origin, s.cfg.Site.BaseURL)).ServeHTTP(w, r)
}

var contentTypes = map[string]string{
	".js":   "application/javascript",
	".css":  "text/css",
	".html": "text/html",
	".map":  "application/json",
}

// ContentType returns the content type the dev server sends for name.
func ContentType(name string) string {
	if ct, ok := contentTypes[path.Ext(name)]; ok {
		return ct
	}
	return "text/plain"
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot.Load()
	if snap == nil {
		http.NotFound(w, r)
		return
	}
	out, ok := snap.Lookup(strings.TrimPrefix(r.URL.Path, "/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", ContentType(out.Path))
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(out.Contents)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.bundler.Metrics().Snapshot()

	outputs := 0
	if snap := s.snapshot.Load(); snap != nil {
		outputs = len(snap.Outputs)
	}

	status := "healthy"
	if stats.LastError != "" {
		status = "degraded"
	}

	health := map[string]interface{}{
		"status":    status,
		"timestamp": s.now().UTC(),
		"version":   version.GetShortVersion(),
		"checks": map[string]interface{}{
			"build": map[string]interface{}{
				"outputs":       outputs,
				"total_builds":  stats.TotalBuilds,
				"failed_builds": stats.FailedBuilds,
				"last_duration": stats.LastDuration.String(),
				"last_error":    stats.LastError,
			},
			"reload": map[string]interface{}{
				"clients": s.hub.Clients(),
				"path":    s.cfg.Server.ReloadPath,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode health response")
	}
}
