package api

import (
	"net/http"

	"ghl-backend/internal/auth/delivery"
	installationDelivery "ghl-backend/internal/installation/delivery"
	tokenDelivery "ghl-backend/internal/token/delivery"
	webhookDelivery "ghl-backend/internal/webhook/delivery"
	"ghl-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	installationHandler *installationDelivery.InstallationHandler,
	webhookHandler *webhookDelivery.WebhookHandler,
	adminHandler *tokenDelivery.AdminHandler,
	cfg *config.Config,
) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// OAuth install flow
		oauth := api.Group("/oauth")
		{
			oauth.GET("/install", installationHandler.Install)
			oauth.GET("/callback", installationHandler.Callback)
			oauth.POST("/install", installationHandler.Process)
		}

		// Platform webhooks
		api.POST("/webhooks/ghl", webhookHandler.Receive)

		// Operator routes (protected)
		admin := api.Group("/admin")
		admin.Use(delivery.AdminMiddleware(cfg.AdminJWTSecret))
		{
			admin.POST("/tokens/refresh", adminHandler.RefreshTokens)
			admin.GET("/retries", adminHandler.ListRetries)
			admin.DELETE("/retries/:id", adminHandler.CancelRetry)
		}
	}
}
