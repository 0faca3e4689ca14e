package delivery

import (
	"context"
	"net/http"

	"ghl-backend/internal/token/scheduler"
	"ghl-backend/pkg/retry"

	"github.com/gin-gonic/gin"
)

// RefreshRunner runs one token refresh pass.
type RefreshRunner interface {
	RunOnce(ctx context.Context) scheduler.Summary
}

// RetryQueue exposes the background location-token retries.
type RetryQueue interface {
	Snapshot() []retry.Task
	Get(id string) (retry.Task, bool)
	Cancel(id string) bool
}

// AdminHandler exposes operator endpoints for token upkeep.
type AdminHandler struct {
	refresher RefreshRunner
	retries   RetryQueue
}

func NewAdminHandler(refresher RefreshRunner, retries RetryQueue) *AdminHandler {
	return &AdminHandler{refresher: refresher, retries: retries}
}

// RefreshTokens runs a refresh pass now
// POST /api/admin/tokens/refresh
func (h *AdminHandler) RefreshTokens(c *gin.Context) {
	summary := h.refresher.RunOnce(c.Request.Context())
	if summary.LeaseHeldElsewhere {
		c.JSON(http.StatusConflict, gin.H{"error": "refresh already running on another instance", "summary": summary})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// ListRetries returns the retry tasks
// GET /api/admin/retries
func (h *AdminHandler) ListRetries(c *gin.Context) {
	tasks := h.retries.Snapshot()
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "total": len(tasks)})
}

// CancelRetry stops a pending retry task
// DELETE /api/admin/retries/:id
func (h *AdminHandler) CancelRetry(c *gin.Context) {
	id := c.Param("id")

	if _, ok := h.retries.Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Retry task not found"})
		return
	}
	if !h.retries.Cancel(id) {
		c.JSON(http.StatusConflict, gin.H{"error": "Retry task already finished"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Retry task cancelled"})
}
