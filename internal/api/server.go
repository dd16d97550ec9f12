// Package api serves the analysis engine over REST and a websocket live
// session.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ramonehamilton/NMJL-Companion/internal/api/websocket"
	"github.com/ramonehamilton/NMJL-Companion/internal/events"
	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/engine"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage"
)

// Server represents the REST API server.
type Server struct {
	cfg        Config
	router     *chi.Mux
	httpServer *http.Server
	listener   net.Listener
	logger     *log.Logger

	engine   *engine.Engine
	store    *storage.Service
	events   *events.Dispatcher
	wsHub    *websocket.Hub
	observer *websocket.Observer
	limiter  *ipRateLimiter
}

// Config holds configuration for the API server.
type Config struct {
	Port           int
	CORSOrigins    []string
	RateLimit      float64 // requests per second per client IP; 0 disables
	RateBurst      int
	RequestTimeout time.Duration
	ScanTimeout    time.Duration // live session scans; 0 is unbounded
	Debug          bool          // mounts /debug/statsviz
}

// DefaultConfig returns the default API server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
		RateLimit:      20,
		RateBurst:      40,
		RequestTimeout: 30 * time.Second,
		ScanTimeout:    5 * time.Second,
	}
}

// Deps are the server's collaborators. Only Engine is required.
type Deps struct {
	Engine *engine.Engine
	// Storage enables the run log endpoints.
	Storage *storage.Service
	// Events, when set, forwards engine events to websocket clients.
	Events *events.Dispatcher
}

// NewServer creates a new API server.
func NewServer(cfg *Config, deps Deps, logger *log.Logger) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("api: engine is required")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:    *cfg,
		router: chi.NewRouter(),
		logger: logging.Or(logger).With("component", "api"),
		engine: deps.Engine,
		store:  deps.Storage,
		events: deps.Events,
	}
	s.wsHub = websocket.NewHub(cfg.CORSOrigins, s.newSession, s.logger)
	go s.wsHub.Run()
	if s.events != nil {
		s.observer = websocket.NewObserver(s.wsHub)
		s.events.Register(s.observer)
	}
	if cfg.RateLimit > 0 {
		s.limiter = newIPRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// setupMiddleware configures the middleware stack shared by every route.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger, s.engine.Metrics()))
	s.router.Use(middleware.Recoverer)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.limiter != nil {
		s.router.Use(s.limiter.middleware)
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port and serves in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "err", err)
		}
	}()
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the websocket hub and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.observer != nil {
		s.events.Unregister(s.observer)
	}
	s.wsHub.Stop()
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Port returns the port the server is configured to listen on.
func (s *Server) Port() int {
	return s.cfg.Port
}

// WebSocketHub returns the live session hub.
func (s *Server) WebSocketHub() *websocket.Hub {
	return s.wsHub
}
