// Package server exposes the panel over HTTP: login pages, the workspace
// snapshot and event API, the SSE stream and operational endpoints.
package server

import (
	"database/sql"
	"errors"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"openvpn-webui/internal/audit"
	"openvpn-webui/internal/auth"
	"openvpn-webui/internal/database"
	"openvpn-webui/internal/metrics"
	"openvpn-webui/internal/webview"
	"openvpn-webui/ui"
)

const (
	defaultTickInterval    = 2 * time.Second
	defaultCleanupInterval = time.Hour
)

// Options are the collaborators of a Server. Auth and Hub are required.
type Options struct {
	Auth    *auth.Manager
	Hub     *webview.Hub
	Audit   *audit.Store
	Metrics *metrics.Collector
	// DB is pruned of expired sessions and old audit rows in the background.
	DB *sql.DB

	// TickInterval drives log follow mode.
	TickInterval    time.Duration
	CleanupInterval time.Duration
}

// Server handles HTTP requests and background coordination.
type Server struct {
	auth      *auth.Manager
	hub       *webview.Hub
	audit     *audit.Store
	metrics   *metrics.Collector
	db        *sql.DB
	templates *template.Template

	tickInterval    time.Duration
	cleanupInterval time.Duration
}

// New creates an HTTP server.
func New(opts Options) (*Server, error) {
	if opts.Auth == nil || opts.Hub == nil {
		return nil, errors.New("server requires an auth manager and a workspace hub")
	}
	tmpl, err := template.ParseFS(ui.Assets, "web/templates/layout.html", "web/templates/login.html")
	if err != nil {
		return nil, err
	}
	s := &Server{
		auth:            opts.Auth,
		hub:             opts.Hub,
		audit:           opts.Audit,
		metrics:         opts.Metrics,
		db:              opts.DB,
		templates:       tmpl,
		tickInterval:    opts.TickInterval,
		cleanupInterval: opts.CleanupInterval,
	}
	if s.tickInterval <= 0 {
		s.tickInterval = defaultTickInterval
	}
	if s.cleanupInterval <= 0 {
		s.cleanupInterval = defaultCleanupInterval
	}
	return s, nil
}

// Router constructs the http.Handler with all routes.
func (s *Server) Router() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.auth.Middleware)

	r.Get("/login", s.handleLoginGet)
	r.Post("/login", s.handleLoginPost)
	r.Post("/logout", s.handleLogout)
	r.Get("/", s.handleIndex)

	staticFS, err := fs.Sub(ui.Assets, "web/static")
	if err != nil {
		return nil, err
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	r.Route("/api", func(api chi.Router) {
		api.Get("/view", s.handleView)
		api.Get("/stream", s.handleStream)
		api.Post("/tabs/{id}", s.handleSelectTab)
		api.Post("/events", s.handleEvent)
		api.Get("/audit", s.handleAudit)
		api.Get("/version", s.handleVersion)
		api.Post("/password", s.handleChangePassword)
	})

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r, nil
}

// StartBackground drives log follow ticks and the cleanup pass until stop is
// closed.
func (s *Server) StartBackground(stop <-chan struct{}) {
	go s.hub.Run(s.tickInterval, stop)

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-stop:
			return
		}
	}
}

// cleanup prunes expired sessions and old audit rows, then drops the
// workspaces of sessions that are no longer valid.
func (s *Server) cleanup() {
	if s.db != nil {
		if err := database.Cleanup(s.db); err != nil {
			log.Printf("database cleanup failed: %v", err)
		}
	}
	if n := s.hub.Prune(s.auth.SessionValid); n > 0 {
		log.Printf("dropped %d workspaces of expired sessions", n)
	}
}
