// Package httpapi exposes the option board over HTTP for scripts and
// dashboards. It reads the same snapshots the terminal UI renders.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/zappabad/optionboard/internal/account"
	"github.com/zappabad/optionboard/internal/diag"
	"github.com/zappabad/optionboard/internal/ledger"
	"github.com/zappabad/optionboard/internal/options"
	"github.com/zappabad/optionboard/internal/options/service"
)

// Board is the option board the API drives.
type Board interface {
	LoadSymbol(ctx context.Context, symbol string) error
	SetHorizonWeeks(ctx context.Context, weeks int) error
	Reload(ctx context.Context) error
	RefreshAccount(ctx context.Context) error

	Snapshot() []service.Row
	Underlying() options.Underlying
	Account() account.Snapshot
	Outstanding() []ledger.Entry
	Status() service.Status
	MarketOpen() bool
}

// Diagnostics is the diagnostics feed.
type Diagnostics interface {
	Latest(n int) []diag.Diagnostic
	Total() int64
}

// Config holds server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
	// CommandTimeout bounds how long a POST waits for the board.
	CommandTimeout time.Duration
}

// Server is the HTTP server.
type Server struct {
	cfg    Config
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	board  Board
	diags  Diagnostics
}

// New creates a Server.
func New(cfg Config, board Board, diags Diagnostics, log zerolog.Logger) *Server {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		log:    log.With().Str("component", "http").Logger(),
		board:  board,
		diags:  diags,
	}
	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/underlying", s.handleUnderlying)
		r.Get("/chain", s.handleChain)
		r.Get("/ledger", s.handleLedger)
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Get("/account", s.handleAccount)

		r.Post("/symbol", s.handleLoadSymbol)
		r.Post("/horizon", s.handleHorizon)
		r.Post("/reload", s.handleReload)
		r.Post("/account/refresh", s.handleRefreshAccount)
	})
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
