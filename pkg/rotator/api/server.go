package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proxy-rotator/pkg/rotator/core"
	"proxy-rotator/pkg/rotator/core/errcode"
	"proxy-rotator/pkg/rotator/core/types"
	"proxy-rotator/pkg/rotator/logger"
)

// Server 只读介入面 + 少量管理操作，不承载实际代理流量
type Server struct {
	rotator    *core.Rotator
	router     *gin.Engine
	httpServer *http.Server
}

func NewServer(rot *core.Rotator, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		rotator: rot,
		router:  router,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	v1.GET("/endpoints", s.handleEndpoints)
	v1.POST("/endpoints", s.handleAddEndpoint)
	v1.DELETE("/endpoints/:addr", s.handleRemoveEndpoint)
	v1.GET("/breakers", s.handleBreakers)
	v1.GET("/stats", s.handleStats)
	v1.POST("/select", s.handleSelect)
	v1.PUT("/strategy", s.handleSetStrategy)
	v1.GET("/strategies", s.handleStrategies)
}

func (s *Server) handleEndpoints(c *gin.Context) {
	c.JSON(http.StatusOK, s.rotator.EndpointStats())
}

func (s *Server) handleAddEndpoint(c *gin.Context) {
	var ep types.Endpoint
	if err := c.ShouldBindJSON(&ep); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ep.Host == "" || ep.Port == 0 || !ep.Protocol.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": errcode.ErrBadEndpoint.Error()})
		return
	}
	s.rotator.AddEndpoint(&ep)
	c.JSON(http.StatusCreated, gin.H{"addr": ep.Addr()})
}

func (s *Server) handleRemoveEndpoint(c *gin.Context) {
	s.rotator.RemoveEndpoint(c.Param("addr"))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleBreakers(c *gin.Context) {
	snapshots := s.rotator.BreakerStates()
	result := make(map[string]gin.H, len(snapshots))
	for addr, snap := range snapshots {
		result[addr] = gin.H{
			"state":                snap.State.String(),
			"consecutive_failures": snap.ConsecutiveFailures,
			"changed_at":           snap.ChangedAt,
		}
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.rotator.PoolStats())
}

func (s *Server) handleSelect(c *gin.Context) {
	var sctx types.SelectionContext
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&sctx); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	ep, err := s.rotator.Select(&sctx)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errcode.ErrPoolExhausted) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"addr":     ep.Addr(),
		"protocol": ep.Protocol,
		"country":  ep.Country,
		"region":   ep.Region,
	})
}

func (s *Server) handleSetStrategy(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.rotator.SetStrategyByName(req.Name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"strategy": req.Name})
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"active":     s.rotator.Strategy().Name(),
		"registered": s.rotator.Registry().Names(),
	})
}

// Start 阻塞直到监听失败或 Shutdown
func (s *Server) Start() error {
	logger.Infof("api listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
