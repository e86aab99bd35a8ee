package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/strandlabs/strand/internal/core"
	"github.com/strandlabs/strand/internal/domain"
)

var registerOnce sync.Once

// Server is the HTTP surface over a Manager: validation, synchronous and
// queued execution, run inspection, and a websocket stream of run events.
type Server struct {
	manager *core.Manager
	config  domain.ServerConfig
	mode    domain.ExecutionMode
	logger  *slog.Logger
	hub     *Hub
	httpSrv *http.Server
}

func NewServer(manager *core.Manager, config domain.ServerConfig, mode domain.ExecutionMode, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	registerOnce.Do(registerValidations)

	s := &Server{
		manager: manager,
		config:  config,
		mode:    mode,
		logger:  logger.With("component", "api"),
		hub:     NewHub(logger),
	}
	s.hub.Attach(manager.Events())
	return s
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", s.health)

	v1 := router.Group("/v1")
	{
		v1.POST("/workflows/validate", s.validate)
		v1.POST("/workflows/plan", s.plan)
		v1.POST("/workflows/run", s.run)
		v1.POST("/workflows/submit", s.submit)

		v1.GET("/runs", s.listRuns)
		v1.GET("/runs/:id", s.getRun)
		v1.GET("/runs/:id/results", s.listResults)
		v1.GET("/runs/:id/definition", s.getDefinition)
		v1.POST("/runs/:id/cancel", s.cancelRun)

		v1.GET("/ws/runs/:id", s.streamRun)
	}

	return router
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("http server listening", "addr", s.config.Addr)
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		)
	}
}
