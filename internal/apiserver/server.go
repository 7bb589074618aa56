// Package apiserver serves the operations REST contract over a repository.
// It backs development and integration tests of the front-ends.
package apiserver

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"operaciones/internal/api"
	"operaciones/internal/log"
	"operaciones/internal/metrics"
)

const shutdownTimeout = 15 * time.Second

// Pinger is implemented by repositories that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	repo     api.Repository
	logger   *log.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	router   chi.Router
}

// New builds the router. m may be nil.
func New(repo api.Repository, logger *log.Logger, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{
		repo:     repo,
		logger:   logger.WithComponent(log.ComponentAPIServer),
		metrics:  m,
		validate: v,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		log.Middleware(s.logger),
		log.RequestIDMiddleware(func(r *http.Request) string { return middleware.GetReqID(r.Context()) }),
		s.observe,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/Operaciones", s.listOperations)
		r.Post("/Operaciones", s.createOperation)
		r.Get("/Operaciones/{id}", s.getOperation)
		r.Put("/Operaciones/{id}", s.updateOperation)
		r.Delete("/Operaciones/{id}", s.deleteOperation)
		r.Get("/TipoCredito", s.listCreditTypes)
	})

	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "address", addr)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down API server gracefully")
		return srv.Shutdown(timeoutCtx)
	}
}

// observe logs and measures each request under its chi route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.ObserveHTTP(r.Method, route, status, elapsed)
		log.FromContext(r.Context()).Debug("Request served",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldDuration, elapsed.Milliseconds())
	})
}
