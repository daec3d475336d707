package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketpulse/config"
	"marketpulse/internal/handler"
	"marketpulse/internal/middleware"
	"marketpulse/internal/redis"
	"marketpulse/internal/services"
	"marketpulse/internal/transport/httpdto"
	"marketpulse/internal/websocket"
	"marketpulse/pkg/database"
	"marketpulse/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Automation *handler.AutomationHandler
	Webhook    *handler.WebhookHandler
	Audit      *handler.AuditHandler
	Stream     *websocket.Handler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, runnerClient services.RunnerClient, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	// Health is two-tier: the database is load-bearing, the runner is not. A
	// dead runner degrades dispatch but reads and callbacks still work.
	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		runnerStatus := "healthy"
		if runnerClient != nil {
			if err := runnerClient.HealthCheck(c.Request.Context()); err != nil {
				runnerStatus = "unreachable"
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
			"status": "healthy",
			"runner": runnerStatus,
		}))
	})

	automation := s.engine.Group("/v1/automation", middleware.AuthMiddleware(authService))
	{
		automation.POST("/dispatch", handlers.Automation.Dispatch)
		automation.GET("/executions", handlers.Automation.List)
		automation.GET("/executions/:id", handlers.Automation.Get)
	}

	s.engine.GET("/v1/audit", middleware.AuthMiddleware(authService), handlers.Audit.List)

	webhooks := s.engine.Group("/webhooks/automation")
	if limiter != nil {
		webhooks.Use(middleware.WebhookRateLimitMiddleware(limiter))
	}
	webhooks.Use(middleware.WebhookSignatureMiddleware(s.config.WebhookSecret))
	webhooks.POST("/:requestId", handlers.Webhook.Callback)

	if handlers.Stream != nil {
		s.engine.GET("/ws/executions", handlers.Stream.Connect)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
