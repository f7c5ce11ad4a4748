package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	api "github.com/termbridge/termbridge/internal/api/http"
	"github.com/termbridge/termbridge/internal/api/middleware"
	"github.com/termbridge/termbridge/internal/api/ws"
	"github.com/termbridge/termbridge/internal/events"
	"github.com/termbridge/termbridge/internal/infrastructure/config"
	"github.com/termbridge/termbridge/internal/infrastructure/logging"
	"github.com/termbridge/termbridge/internal/infrastructure/monitoring"
	"github.com/termbridge/termbridge/internal/terminal"
	"github.com/termbridge/termbridge/internal/transcript"
)

// Server assembles the session manager, its event sinks, and the HTTP
// and WebSocket surfaces over it.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	manager  *terminal.Manager
	hub      *ws.Hub
	webhook  *events.Webhook
	recorder *transcript.Recorder
	httpSrv  *http.Server
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config) (*Server, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	metrics := monitoring.NewMetrics()
	hub := ws.NewHub(logger, metrics)
	sinks := events.Fanout{hub}

	var recorder *transcript.Recorder
	if cfg.Transcript.Enabled {
		recorder, err = transcript.New(cfg.Transcript.Dir, logger)
		if err != nil {
			return nil, fmt.Errorf("init transcript recorder: %w", err)
		}
		sinks = append(sinks, recorder)
		logger.Info("transcript recording enabled", zap.String("dir", cfg.Transcript.Dir))
	}

	var webhook *events.Webhook
	if cfg.Events.WebhookURL != "" {
		webhook = events.NewWebhook(events.WebhookConfig{
			URL:     cfg.Events.WebhookURL,
			Timeout: cfg.Events.WebhookTimeout(),
			Metrics: metrics,
		}, logger)
		sinks = append(sinks, webhook)
		logger.Info("webhook sink enabled", zap.String("url", cfg.Events.WebhookURL))
	}

	spawner := terminal.NewPTYSpawner(terminal.ShellOptions{
		Path:      cfg.Shell.Path,
		Login:     cfg.Shell.Login,
		Term:      cfg.Shell.Term,
		ColorTerm: cfg.Shell.ColorTerm,
		Locale:    cfg.Shell.Locale,
	})
	manager := terminal.NewManager(spawner, sinks, logger).
		WithMetrics(metrics).
		WithScrollback(cfg.Session.ScrollbackBytes)

	router := buildRouter(cfg, logger, metrics, manager, hub)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		manager:  manager,
		hub:      hub,
		webhook:  webhook,
		recorder: recorder,
		httpSrv: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func buildRouter(cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics, manager *terminal.Manager, hub *ws.Hub) *gin.Engine {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := api.NewHandlers(manager, metrics)
	wsHandler := ws.NewHandler(hub, manager, logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/count", handlers.CountSessions)

	router.POST("/sessions", handlers.SpawnSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.POST("/sessions/:id/write", handlers.WriteSession)
	router.POST("/sessions/:id/resize", handlers.ResizeSession)
	router.GET("/sessions/:id/scrollback", handlers.GetScrollback)
	router.DELETE("/sessions/:id", handlers.CloseSession)

	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router
}

// Run serves HTTP until Shutdown is called or the listener fails.
func (s *Server) Run() error {
	s.logger.Info("server listening", zap.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Manager exposes the session manager, mainly for tests.
func (s *Server) Manager() *terminal.Manager {
	return s.manager
}

// Shutdown stops the listener, hangs up every session, and drains the
// sinks, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down", zap.Int("sessions", s.manager.Count()))

	var firstErr error
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		firstErr = err
	}

	s.hub.CloseAll()

	if err := s.manager.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.recorder != nil {
		s.recorder.Close()
	}
	if s.webhook != nil {
		s.webhook.Close()
	}

	s.logger.Sync()
	return firstErr
}
