package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/codeshell/internal/api/http"
	"github.com/GriffinCanCode/codeshell/internal/api/middleware"
	"github.com/GriffinCanCode/codeshell/internal/api/ws"
	"github.com/GriffinCanCode/codeshell/internal/domain/service"
	"github.com/GriffinCanCode/codeshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/codeshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/codeshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/codeshell/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/codeshell/internal/providers/terminal"
)

const readHeaderTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	manager  *terminal.Manager
	registry *service.Registry
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance. Extra terminal options are applied
// after the server's own, so tests can substitute the spawner.
func NewServer(cfg *config.Config, logger *logging.Logger, opts ...terminal.Option) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing codeshell server",
		zap.String("addr", cfg.Address()),
		zap.String("shell", cfg.Shell.Path),
		zap.String("workdir", cfg.Shell.WorkDir),
	)

	// Metrics first; the session manager reports into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("codeshell", logger.Component("tracing"))

	termOpts := append([]terminal.Option{
		terminal.WithLogger(logger.Component("terminal")),
		terminal.WithObserver(metrics),
	}, opts...)
	manager := terminal.NewManager(cfg.Terminal(), termOpts...)
	metrics.WatchPending(manager.Pending)

	provider := terminal.NewProvider(manager, cfg.Shell.CommandTimeout, logger.Component("terminal"))
	registry := service.NewRegistry()
	if err := registry.Register(provider); err != nil {
		manager.Close()
		tracer.Close()
		return nil, fmt.Errorf("failed to register terminal provider: %w", err)
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(provider, registry, metrics, logger.Component("http"))
	wsHandler := ws.NewHandler(provider, metrics, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/stats", handlers.Stats)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Service registry
	router.GET("/services", handlers.ListServices)
	router.POST("/services/discover", handlers.DiscoverServices)
	router.POST("/services/execute", handlers.ExecuteService)

	// Shell sessions
	term := router.Group("/terminal")
	term.POST("/execute", handlers.ExecuteCommand)
	term.POST("/sessions", handlers.StartSession)
	term.GET("/sessions", handlers.ListSessions)
	term.GET("/sessions/:id", handlers.GetSession)
	term.DELETE("/sessions/:id", handlers.TerminateSession)
	term.GET("/stream", wsHandler.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              cfg.Address(),
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		manager:  manager,
		registry: registry,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the session registry
func (s *Server) Manager() *terminal.Manager {
	return s.manager
}

// Run starts the HTTP server and blocks until it stops. A stop requested
// through Shutdown is not an error.
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires, then kills every shell session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	err := s.http.Shutdown(ctx)
	if err != nil {
		s.logger.Error("HTTP shutdown incomplete", zap.Error(err))
	}

	s.manager.Close()
	s.logger.Info("Closed shell sessions")
	s.tracer.Close()

	// Sync logger before exit
	s.logger.Sync()

	return err
}
