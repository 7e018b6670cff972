package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	DB "imgsearch/internal/db"
	"imgsearch/internal/metrics"
	"imgsearch/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	router *gin.Engine
	db     *DB.DB
}

// New creates a new server instance
func New(db *DB.DB) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), metrics.Middleware())
	s := &Server{
		db:     db,
		router: router,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleHealthCheck())
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/v1/catalog", s.handleGetCatalog())
	s.router.POST("/v1/catalog/save", s.handleSaveCatalog())
	s.router.POST("/v1/images", s.handleAddImage())
	s.router.POST("/v1/search", s.handleSearch())
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves HTTP on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("HTTP server stopped", "addr", addr)
	return nil
}
