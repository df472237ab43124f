// Package status serves the broadcaster counters over HTTP and provides a
// small client for reading them back.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"position-bridge/internal/interfaces"
	"position-bridge/internal/logger"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	stats  interfaces.StatsProvider
	engine *gin.Engine
	http   *http.Server
	ln     net.Listener
	done   chan struct{}
}

func NewServer(addr string, stats interfaces.StatsProvider) *Server {
	if !logger.IsDebugEnabled() {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		stats:  stats,
		engine: gin.New(),
		done:   make(chan struct{}),
	}
	s.engine.Use(gin.Recovery())
	s.setupRoutes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.getHealth)
	s.engine.GET("/status", s.getStatus)
}

// Handler exposes the router for in-process use.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	logger.Info(ctx, "Status server listening", "addr", ln.Addr().String())

	go func() {
		defer close(s.done)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Status server stopped", err)
		}
	}()
	return nil
}

// Addr is the bound address, valid after Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.http.Addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(ctx)
	<-s.done
	return err
}

func (s *Server) getHealth(c *gin.Context) {
	st := s.stats.Stats()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"state":  st.State,
	})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Stats())
}
