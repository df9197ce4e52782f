// Package service exposes the preprocessing, scoring, compositing, and
// enhancement pipeline over HTTP.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sigil-guard/internal/generate"
	"sigil-guard/internal/style"
)

// Server wires the pipeline behind the HTTP surface.
type Server struct {
	cfg    *Config
	log    *slog.Logger
	styles *style.Registry
	gen    generate.Generator
}

// New assembles a server. A nil logger falls back to slog.Default; a nil
// registry uses the built-in presets.
func New(cfg *Config, log *slog.Logger, styles *style.Registry, gen generate.Generator) *Server {
	if log == nil {
		log = slog.Default()
	}
	if styles == nil {
		styles = style.Builtin()
	}
	return &Server{cfg: cfg, log: log, styles: styles, gen: gen}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/styles", s.handleStyles)
	r.Post("/preprocess", s.handlePreprocess)
	r.Post("/structure-match", s.handleStructureMatch)
	r.Post("/composite", s.handleComposite)
	r.Post("/enhance", s.handleEnhance)

	return r
}

// ListenAndServe runs the server until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("listening", "addr", s.cfg.Listen, "styles", s.styles.Names())

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// logRequests emits one structured line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
