package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sentinel-worker-go/internal/config"
)

// HealthHandler serves / and /health.
type HealthHandler struct {
	cfg *config.Config
}

// NewHealthHandler builds a HealthHandler.
func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	WorkerID string `json:"worker_id"`
}

// WorkerInfoResponse is the body of GET /.
type WorkerInfoResponse struct {
	WorkerID         string `json:"worker_id"`
	Version          string `json:"version"`
	ReasoningEnabled bool   `json:"reasoning_enabled"`
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", WorkerID: h.cfg.WorkerID})
}

// WorkerInfo handles GET /.
func (h *HealthHandler) WorkerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, WorkerInfoResponse{
		WorkerID:         h.cfg.WorkerID,
		Version:          h.cfg.Version,
		ReasoningEnabled: h.cfg.ReasoningEnabled(),
	})
}
