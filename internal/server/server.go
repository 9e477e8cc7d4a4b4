// Package server exposes the style extractor over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const defaultIndexHTML = `<!DOCTYPE html>
<html><body>
<h1>stylextract</h1>
<form action="/extract" method="get">
<h3>Most common styles of a page</h3>
URL: <input name="url" size="60"><br>
<button type="submit">Extract</button>
</form>
</body></html>`

const defaultMaxBodyBytes = 64 << 10

// Runner is the tool entry point: it never fails and reports errors inside
// the returned string.
type Runner interface {
	Run(ctx context.Context, raw string) string
}

// Config describes server wiring.
type Config struct {
	IndexHTML    string
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server routes the HTTP surface.
type Server struct {
	cfg    Config
	router chi.Router
	runner Runner
	logger *slog.Logger
}

// New wires a server around runner.
func New(runner Runner, cfg Config) *Server {
	if cfg.IndexHTML == "" {
		cfg.IndexHTML = defaultIndexHTML
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		runner: runner,
		logger: cfg.Logger,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.router.Use(withRequestID)
	s.router.Use(withLogging(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/ping", s.handlePing)
	s.router.Get("/extract", s.handleExtract)
	s.router.Post("/extract", s.handleExtract)
}
