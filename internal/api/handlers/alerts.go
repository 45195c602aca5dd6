package handlers

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sentinel-worker-go/internal/dispatch"
	"sentinel-worker-go/internal/models"
)

// AlertHandler serves the /alerts API.
type AlertHandler struct {
	dispatcher *dispatch.Dispatcher
}

// NewAlertHandler builds an AlertHandler.
func NewAlertHandler(d *dispatch.Dispatcher) *AlertHandler {
	return &AlertHandler{dispatcher: d}
}

// ListAlerts handles GET /alerts?since=<iso>&severity=<s>&limit=<n>.
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	alerts := h.dispatcher.Recent()

	if since := c.Query("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			alerts = filterSince(alerts, t)
		}
	}

	if severity := c.Query("severity"); severity != "" {
		alerts = filterSeverity(alerts, models.Severity(severity))
	}

	limit := 200
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n < limit {
			limit = n
		}
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Timestamp.After(alerts[j].Timestamp) })
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// Acknowledge handles POST /alerts/:id/acknowledge. Idempotent: a second
// call for the same id also returns 200.
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	id := c.Param("id")
	if !h.dispatcher.Acknowledge(id) {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "acknowledged": true})
}

func filterSince(alerts []models.Alert, since time.Time) []models.Alert {
	var out []models.Alert
	for _, a := range alerts {
		if a.Timestamp.After(since) {
			out = append(out, a)
		}
	}
	return out
}

func filterSeverity(alerts []models.Alert, severity models.Severity) []models.Alert {
	var out []models.Alert
	for _, a := range alerts {
		if a.Severity == severity {
			out = append(out, a)
		}
	}
	return out
}
