package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/menta2k/rock-classifier/internal/config"
	"github.com/menta2k/rock-classifier/internal/handler"
	"github.com/menta2k/rock-classifier/internal/metrics"
)

// headroom on top of the classify timeout for decoding and rendering
const writeSlack = 30 * time.Second

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
}

func New(cfg *config.Config, h *handler.Handler, log *zap.Logger) (*Server, error) {
	router, err := NewRouter(cfg, h, log)
	if err != nil {
		return nil, err
	}

	writeTimeout := cfg.Classifier.Timeout + writeSlack
	if cfg.Classifier.Timeout == 0 {
		// no backend deadline, so no write deadline either
		writeTimeout = 0
	}

	server := &Server{
		httpServer: &http.Server{
			Addr:           cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:        router,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   writeTimeout,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		cfg: cfg,
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.Duration("write_timeout", writeTimeout))

	return server, nil
}

// NewRouter builds the gin engine with every route and middleware.
func NewRouter(cfg *config.Config, h *handler.Handler, log *zap.Logger) (*gin.Engine, error) {
	tmpl, err := handler.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	metrics.Register()

	router := gin.New()
	router.Use(gin.Recovery(), handler.RequestID(), handler.AccessLog(log))
	router.MaxMultipartMemory = cfg.App.MaxUploadSize
	router.SetHTMLTemplate(tmpl)

	router.GET("/", h.GetUI)
	router.POST("/classify", h.ClassifyForm)
	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.POST("/classify", h.ClassifyAPI)
	}

	return router, nil
}

func (s *Server) Run() error {
	s.log.Info("Server is running",
		zap.String("host", s.cfg.Server.Host),
		zap.String("port", s.cfg.Server.Port),
		zap.String("address", s.httpServer.Addr))

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
