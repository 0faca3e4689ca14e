package delivery

import (
	"io"
	"net/http"

	"ghl-backend/internal/webhook/domain"
	"ghl-backend/internal/webhook/usecase"
	"ghl-backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives platform webhooks over HTTP.
type WebhookHandler struct {
	dispatcher usecase.Dispatcher
}

func NewWebhookHandler(dispatcher usecase.Dispatcher) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher}
}

// Receive dispatches one webhook event
// POST /api/webhooks/ghl
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	event, err := domain.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	outcome, err := h.dispatcher.Dispatch(c.Request.Context(), event)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": "Error handling webhook", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "outcome": outcome})
}
