package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"imgsearch/internal/catalog"
	pkgerrors "imgsearch/pkg/errors"
	"imgsearch/pkg/logger"
)

const requestIDKey = "request_id"

// requestID tags every request with a uuid, echoed in X-Request-ID.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrPreconditionViolation):
		return http.StatusConflict
	case errors.Is(err, pkgerrors.ErrResourceFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (s *Server) handleGetCatalog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, s.db.Stats())
	}
}

func (s *Server) handleSaveCatalog() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.db.Save(c.Request.Context()); err != nil {
			logger.Error("Save failed", "request_id", c.GetString(requestIDKey), "error", err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.db.Stats())
	}
}

func (s *Server) handleAddImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := s.db.AddImage(c.Request.Context(), req.Path, req.Name); err != nil {
			logger.Warn("Add image failed", "request_id", c.GetString(requestIDKey), "path", req.Path, "error", err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, s.db.Stats())
	}
}

func (s *Server) handleSearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must not be negative"})
			return
		}

		matches, err := s.db.Search(c.Request.Context(), req.Path)
		if err != nil {
			logger.Warn("Search failed", "request_id", c.GetString(requestIDKey), "path", req.Path, "error", err)
			c.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		if req.Limit > 0 {
			matches = catalog.Top(matches, req.Limit)
		}

		c.JSON(http.StatusOK, SearchResponse{
			RequestID: c.GetString(requestIDKey),
			Matches:   matches,
		})
	}
}
