package api

import (
	"net/http"

	installationDelivery "ghl-backend/internal/installation/delivery"
	tokenDelivery "ghl-backend/internal/token/delivery"
	webhookDelivery "ghl-backend/internal/webhook/delivery"
	"ghl-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	installationHandler *installationDelivery.InstallationHandler
	webhookHandler      *webhookDelivery.WebhookHandler
	adminHandler        *tokenDelivery.AdminHandler
	config              *config.Config
	logger              zerolog.Logger
}

func NewHandler(
	installationHandler *installationDelivery.InstallationHandler,
	webhookHandler *webhookDelivery.WebhookHandler,
	adminHandler *tokenDelivery.AdminHandler,
	cfg *config.Config,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		installationHandler: installationHandler,
		webhookHandler:      webhookHandler,
		adminHandler:        adminHandler,
		config:              cfg,
		logger:              logger,
	}
}

// Router builds the gin engine with middleware and routes.
func (h *Handler) Router() *gin.Engine {
	if h.config.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.installationHandler, h.webhookHandler, h.adminHandler, h.config)
	return r
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		h.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Msg("request")
	}
}
