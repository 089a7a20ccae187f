package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/browserbox/browserbox/internal/api/middleware"
	"github.com/browserbox/browserbox/internal/health"
	"github.com/browserbox/browserbox/internal/infrastructure/config"
	"github.com/browserbox/browserbox/internal/infrastructure/logging"
	"github.com/browserbox/browserbox/internal/infrastructure/monitoring"
	"github.com/browserbox/browserbox/internal/results"
	"github.com/browserbox/browserbox/internal/supervisor"
)

// Server is the introspection API: aggregate health, the supervisor's
// process table, metrics, the event stream and task result lookups.
type Server struct {
	router     *gin.Engine
	cfg        *config.Config
	sup        *supervisor.Supervisor
	aggregator *health.Aggregator
	store      *results.Store
	logger     *logging.Logger
	metrics    *monitoring.Metrics
}

// NewServer wires the router.
func NewServer(
	cfg *config.Config,
	sup *supervisor.Supervisor,
	aggregator *health.Aggregator,
	store *results.Store,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.API.Origins())))
	router.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Burst:             cfg.API.Burst,
	}))

	s := &Server{
		router:     router,
		cfg:        cfg,
		sup:        sup,
		aggregator: aggregator,
		store:      store,
		logger:     logger.Component("api"),
		metrics:    metrics,
	}

	router.GET("/", s.Root)
	router.GET("/health", s.Health)
	router.GET("/status", s.Status)
	router.GET("/stream", s.HandleStream)
	router.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}),
	))

	// Task artifacts: authenticated JSON lookup plus static file serving
	// for the URLs embedded in result payloads.
	tasks := router.Group("/tasks", middleware.APIKey(cfg.Auth.APIKey))
	tasks.GET("/:id/result", s.TaskResult)
	router.Static("/files", store.Root())

	return s
}

// Run starts the HTTP server on the configured internal port.
func (s *Server) Run() error {
	addr := fmt.Sprintf("127.0.0.1:%d", s.cfg.API.Port)
	s.logger.Info("starting introspection API", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router exposes the gin engine, used by tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
