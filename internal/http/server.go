package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"haushaltsbuch/internal/cache"
	"haushaltsbuch/internal/core"
	"haushaltsbuch/internal/log"
	"haushaltsbuch/internal/middleware/ratelimit"
	"haushaltsbuch/internal/middleware/security"
	"haushaltsbuch/internal/middleware/trace"
	"haushaltsbuch/internal/services"
	appweb "haushaltsbuch/web"
)

// Pinger is the readiness check of the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Ledger *services.LedgerService
	Users  *services.UserService
	Store  Pinger
	Logger *log.Logger
}

// Options tune sessions, throttling and caching.
type Options struct {
	SessionSecret      []byte
	SessionTTL         time.Duration
	SecureCookies      bool
	LoginRatePerMinute int
	PrincipalCacheSize int
	PrincipalCacheTTL  time.Duration
}

type appMetrics struct {
	uptime         time.Time
	entriesCreated atomic.Int64
	entriesUpdated atomic.Int64
	entriesDeleted atomic.Int64
	exports        atomic.Int64
	loginFailures  atomic.Int64
	registrations  atomic.Int64
}

type Server struct {
	http.Server
	logger    *log.Logger
	templates *templateSet

	ledger *services.LedgerService
	users  *services.UserService
	store  Pinger

	sessions   sessionConfig
	principals *cache.Loader[int64, core.User]
	principalC *cache.LRU[int64, core.User]

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if deps.Ledger == nil || deps.Users == nil || deps.Store == nil {
		return nil, errors.New("http server needs ledger, users and store")
	}
	if len(opts.SessionSecret) == 0 {
		return nil, errors.New("http server needs a session secret")
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.PrincipalCacheSize <= 0 {
		opts.PrincipalCacheSize = 256
	}
	if opts.PrincipalCacheTTL <= 0 {
		opts.PrincipalCacheTTL = time.Minute
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	templates, err := parseTemplates(appweb.TemplatesFS)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger:    logger.WithComponent(log.ComponentHTTP),
		templates: templates,
		ledger:    deps.Ledger,
		users:     deps.Users,
		store:     deps.Store,
		sessions: sessionConfig{
			secret: opts.SessionSecret,
			ttl:    opts.SessionTTL,
			secure: opts.SecureCookies,
		},
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.LoginRatePerMinute}),
		securityDetector: security.NewDetector(),
		traceMiddleware:  trace.NewMiddleware(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.principalC = cache.NewLRU[int64, core.User](opts.PrincipalCacheSize, opts.PrincipalCacheTTL)
	s.principals = cache.NewLoader(s.principalC, deps.Users.UserByID)

	s.routes(mux)

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.securityDetector.Middleware(logger)(handler)
	handler = log.AccessLog(s.securityDetector.ExtractClientIP)(handler)
	handler = log.Middleware(logger, trace.RequestID)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.renderRateLimited, http.MethodPost)
	mux.HandleFunc("GET /login", s.handleLoginForm)
	mux.Handle("POST /login", limit(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /register", s.handleRegisterForm)
	mux.Handle("POST /register", limit(http.HandlerFunc(s.handleRegister)))
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /{$}", s.requireUser(s.handleIndex))
	mux.Handle("POST /entries", s.requireUser(s.handleCreateEntry))
	mux.Handle("GET /entries/{id}/edit", s.requireUser(s.handleEditEntry))
	mux.Handle("POST /entries/{id}", s.requireUser(s.handleUpdateEntry))
	mux.Handle("POST /entries/{id}/delete", s.requireUser(s.handleDeleteEntry))
	mux.Handle("GET /entries/clear", s.requireUser(s.handleClearForm))
	mux.Handle("POST /entries/clear", s.requireUser(s.handleClear))
	mux.Handle("GET /export.csv", s.requireUser(s.handleExportCSV))
	mux.Handle("GET /export.xlsx", s.requireUser(s.handleExportXLSX))

	mux.Handle("GET /admin/users", s.requireAdmin(s.handleAdminUsers))
	mux.Handle("POST /admin/users/{id}/role", s.requireAdmin(s.handleSetRole))

	mux.HandleFunc("/", s.handleNotFound)
}

// Cleaners exposes the server caches to a cache.Janitor.
func (s *Server) Cleaners() []cache.Cleaner {
	return []cache.Cleaner{s.principalC}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
