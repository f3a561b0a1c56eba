package server

import (
	"net/http"

	"github.com/finvault/trading-ledger/internal/ledger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
)

type Server struct {
	engine *gin.Engine
	ledger *ledger.Service
	logger *slog.Logger
}

func New(svc *ledger.Service, jwtSecret []byte, registry *prometheus.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		engine: gin.New(),
		ledger: svc,
		logger: logger,
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if registry != nil {
		s.engine.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	authed := s.engine.Group("/", AuthMiddleware(jwtSecret))
	authed.POST("/sync", s.Sync)
	authed.GET("/accounts/:id/balance", s.AccountBalance)
	authed.GET("/accounts/:id/entries", s.AccountEntries)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}
