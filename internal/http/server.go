package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"operaciones/internal/api"
	"operaciones/internal/cache"
	"operaciones/internal/controller"
	"operaciones/internal/log"
	"operaciones/internal/metrics"
	"operaciones/internal/middleware/ratelimit"
	"operaciones/internal/middleware/security"
	"operaciones/internal/middleware/trace"
	appweb "operaciones/web"
)

// Options tune the server. Zero values fall back to defaults.
type Options struct {
	Logger             *log.Logger
	Metrics            *metrics.Metrics
	SearchDebounce     time.Duration
	SessionTTL         time.Duration
	SessionCapacity    int
	RateLimitPerMinute int
	TrustedProxies     []string
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.New(log.DefaultConfig())
	}
	if o.SearchDebounce == 0 {
		o.SearchDebounce = controller.DefaultDebounce
	}
	if o.SessionTTL == 0 {
		o.SessionTTL = 30 * time.Minute
	}
	if o.SessionCapacity == 0 {
		o.SessionCapacity = 1000
	}
	if o.RateLimitPerMinute == 0 {
		o.RateLimitPerMinute = ratelimit.DefaultConfig().RequestsPerMinute
	}
	return o
}

type Server struct {
	http.Server
	templates   *template.Template
	repo        api.Repository
	sessions    *sessionStore
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	cacheMgr    *cache.Manager
	logger      *log.Logger
	metrics     *metrics.Metrics
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, repo api.Repository, opts Options) *Server {
	opts = opts.withDefaults()
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		repo:     repo,
		logger:   logger,
		metrics:  opts.Metrics,
		started:  time.Now(),
		sessions: newSessionStore(repo, opts.SessionCapacity, opts.SessionTTL, opts.SearchDebounce, opts.Logger, opts.Metrics),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		detector: security.NewDetector(
			security.WithTrustedProxies(opts.TrustedProxies...),
			security.WithReporter(opts.Metrics.ObserveSuspicious),
		),
		cacheMgr: cache.NewManager(opts.Logger),
	}
	s.cacheMgr.Register(s.sessions.sessions)
	s.cacheMgr.StartCleanup(time.Minute)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldComponent, log.ComponentTemplate, log.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /ui/operations", s.handleOperations)
	mux.HandleFunc("GET /ui/operations/new", s.handleNewForm)
	mux.HandleFunc("GET /ui/operations/{id}/edit", s.handleEditForm)
	mux.HandleFunc("GET /ui/operations/end-date", s.handleEndDate)
	mux.HandleFunc("POST /ui/form/cancel", s.handleCancelForm)
	mux.HandleFunc("GET /ui/chart", s.handleChart)
	mux.HandleFunc("GET /api/chart", s.handleChartData)
	mux.HandleFunc("POST /operations", s.handleSaveOperation)
	mux.HandleFunc("DELETE /operations/{id}", s.handleDeleteOperation)

	tracer := trace.NewMiddleware(s.detector.ClientIP, opts.Logger, opts.Metrics)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.detector.ClientIP, s.handleRateLimited, http.MethodPost, http.MethodDelete)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           tracer.Middleware(s.detector.Middleware(headers.Middleware(limit(mux)))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).Warn("Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		Header("Retry-After", "60").
		TriggerErrorNotification("Too many requests, please try again in a minute").
		Write(w)
}
