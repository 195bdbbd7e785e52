package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gridbot/engine"
	"gridbot/logger"
)

// PriceFeed is the market data view the control surface reads.
type PriceFeed interface {
	Connected() bool
	Snapshot() map[string]float64
}

// Server exposes the engine's control surface over HTTP: status, pause and
// resume per symbol, last prices, Prometheus metrics.
type Server struct {
	router     *gin.Engine
	engine     *engine.Engine
	feed       PriceFeed
	httpServer *http.Server
	port       int
}

func NewServer(eng *engine.Engine, feed PriceFeed, port int) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		engine: eng,
		feed:   feed,
		port:   port,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/prices", s.handlePrices)
		api.POST("/pause/:symbol", s.handlePause)
		api.POST("/resume/:symbol", s.handleResume)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	feedUp := false
	if s.feed != nil {
		feedUp = s.feed.Connected()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"feed_connected": feedUp,
		"time":           time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handlePrices(c *gin.Context) {
	prices := map[string]float64{}
	if s.feed != nil {
		prices = s.feed.Snapshot()
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"symbols": s.engine.Status(),
	})
}

func (s *Server) handlePause(c *gin.Context) {
	symbol := c.Param("symbol")
	if err := s.engine.Pause(symbol); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "paused": true})
}

func (s *Server) handleResume(c *gin.Context) {
	symbol := c.Param("symbol")
	if err := s.engine.Resume(symbol); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "paused": false})
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	logger.Infof("[API] listening at http://localhost%s", addr)
	logger.Infof("  GET  /healthz              - health check")
	logger.Infof("  GET  /metrics              - prometheus metrics")
	logger.Infof("  GET  /api/status           - per-symbol engine status")
	logger.Infof("  GET  /api/prices           - latest feed prices")
	logger.Infof("  POST /api/pause/:symbol    - pause reconciliation")
	logger.Infof("  POST /api/resume/:symbol   - resume reconciliation")

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
