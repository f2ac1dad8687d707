// Package server wires the storage root, plugin manager and admin API into
// one HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/plugstore/internal/api/http"
	"github.com/GriffinCanCode/plugstore/internal/api/middleware"
	"github.com/GriffinCanCode/plugstore/internal/domain/root"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/config"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/logging"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plugstore/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/plugstore/internal/plugin"
	"github.com/GriffinCanCode/plugstore/internal/ws"
)

// ServiceName names the service in traces and logs
const ServiceName = "plugstore"

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	root     *root.Root
	plugins  *plugin.Manager
	provider *sdktrace.TracerProvider
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Info("Initializing plugstore server",
		zap.String("port", cfg.Server.Port),
		zap.String("storage_root", cfg.Storage.Root),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())

	provider := tracing.NewProvider(ServiceName, logger.Component("trace"))
	tracer := tracing.New(ServiceName, tracing.WithProvider(provider))

	opts := root.OptionsFromConfig(cfg)
	opts.Logger = logger.Logger
	opts.Metrics = metrics
	opts.Tracer = tracer
	storage, err := root.New(opts)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to open storage root: %w", err)
	}

	pluginLogger := logger.Component("plugin")
	plugins := plugin.NewManager(storage, plugin.ManagerOptions{
		Logger: pluginLogger,
		Forward: func(h *plugin.Host, ev plugin.Event) {
			switch e := ev.(type) {
			case plugin.SessionMessage:
				pluginLogger.Debug("session message",
					zap.String("instance", h.InstanceID().String()),
					zap.String("payload", e.Payload),
				)
			case plugin.Other:
				pluginLogger.Debug("unhandled plugin event",
					zap.String("instance", h.InstanceID().String()),
					zap.String("kind", e.Kind),
				)
			}
		},
	})

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	// Register routes
	apihttp.Register(router, apihttp.NewHandlers(storage, plugins, logger.Component("api")))
	router.GET("/plugins/connect", ws.NewHandler(plugins, pluginLogger).HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		root:     storage,
		plugins:  plugins,
		provider: provider,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Handler returns the server's router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Plugins returns the plugin manager
func (s *Server) Plugins() *plugin.Manager {
	return s.plugins
}

// Addr returns the listen address from config
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
}

// Run serves HTTP until Close is called
func (s *Server) Run() error {
	s.http = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close gracefully shuts down the server: stop accepting requests, shut
// down plugins, close the storage root, flush traces.
func (s *Server) Close(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if err := s.plugins.ShutdownAll(ctx, s.config.Shutdown.Timeout); err != nil {
		s.logger.Warn("Plugins did not shut down cleanly", zap.Error(err))
		errs = append(errs, err)
	}

	if err := s.root.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("storage root close: %w", err))
	}

	if err := s.provider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
	}

	s.logger.Info("Server stopped")
	_ = s.logger.Sync()
	return errors.Join(errs...)
}
