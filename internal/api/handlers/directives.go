package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sentinel-worker-go/internal/directive"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/supervisor"
)

// DirectiveHandler serves the /directives API.
type DirectiveHandler struct {
	registry   *directive.Registry
	supervisor *supervisor.Supervisor
	cameraIDs  func() []string
}

// NewDirectiveHandler builds a DirectiveHandler. cameraIDs returns the
// worker's known camera ids at call time, for applying a new directive's
// auto-start policy.
func NewDirectiveHandler(registry *directive.Registry, sup *supervisor.Supervisor, cameraIDs func() []string) *DirectiveHandler {
	return &DirectiveHandler{registry: registry, supervisor: sup, cameraIDs: cameraIDs}
}

// CreateDirective handles POST /directives. The text-to-structured parse is
// delegated to the external command parser; this worker only consumes its
// already-structured output shape.
func (h *DirectiveHandler) CreateDirective(c *gin.Context) {
	var req models.DirectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !req.Kind.IsValid() {
		req.Kind = models.DirectiveSurveillance
	}

	d := h.registry.Add(req, time.Now())
	h.supervisor.ProcessDirective(c.Request.Context(), d, h.cameraIDs())

	c.JSON(http.StatusOK, models.DirectiveResponse{
		DirectiveID:      d.ID,
		Kind:             d.Kind,
		Target:           d.Target,
		RequiresBaseline: d.RequiresBaseline,
		Action:           "accepted",
	})
}

// DeleteDirective handles DELETE /directives/{id}.
func (h *DirectiveHandler) DeleteDirective(c *gin.Context) {
	id := c.Param("id")

	d, ok := h.registry.Get(id)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	h.registry.Remove(id)
	h.supervisor.RemoveDirective(d)
	c.Status(http.StatusNoContent)
}

// ListDirectives handles GET /directives.
func (h *DirectiveHandler) ListDirectives(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"directives": h.registry.All()})
}
