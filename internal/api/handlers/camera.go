package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"sentinel-worker-go/internal/supervisor"
)

// CameraHandler serves the /cameras API.
type CameraHandler struct {
	supervisor *supervisor.Supervisor
}

// NewCameraHandler builds a CameraHandler.
func NewCameraHandler(sup *supervisor.Supervisor) *CameraHandler {
	return &CameraHandler{supervisor: sup}
}

// ListCameras handles GET /cameras.
func (h *CameraHandler) ListCameras(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cameras": h.supervisor.ListCameras()})
}

// GetCamera handles GET /cameras/:id.
func (h *CameraHandler) GetCamera(c *gin.Context) {
	resp, ok := h.supervisor.GetCamera(c.Param("id"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StartCamera handles POST /cameras/:id/start.
func (h *CameraHandler) StartCamera(c *gin.Context) {
	id := c.Param("id")
	if err := h.supervisor.StartCamera(c.Request.Context(), id, false); err != nil {
		writeCameraError(c, err)
		return
	}
	resp, _ := h.supervisor.GetCamera(id)
	c.JSON(http.StatusOK, resp)
}

// StopCamera handles POST /cameras/:id/stop.
func (h *CameraHandler) StopCamera(c *gin.Context) {
	id := c.Param("id")
	if err := h.supervisor.StopCamera(id); err != nil {
		writeCameraError(c, err)
		return
	}
	resp, _ := h.supervisor.GetCamera(id)
	c.JSON(http.StatusOK, resp)
}

func writeCameraError(c *gin.Context, err error) {
	if errors.Is(err, supervisor.ErrUnknownCamera) {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
