package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	indexBackend string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(indexBackend string) *HealthHandler {
	return &HealthHandler{indexBackend: indexBackend}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"index":  h.indexBackend,
	})
}
