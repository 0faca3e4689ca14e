package delivery

import (
	"net/http"

	"ghl-backend/internal/installation/domain"
	"ghl-backend/internal/installation/usecase"
	"ghl-backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InstallURLBuilder builds the platform's choose-location authorize URL.
type InstallURLBuilder interface {
	InstallURL(state string) string
}

// InstallationHandler serves the OAuth install flow.
type InstallationHandler struct {
	installations usecase.InstallationUsecase
	urls          InstallURLBuilder
}

func NewInstallationHandler(installations usecase.InstallationUsecase, urls InstallURLBuilder) *InstallationHandler {
	return &InstallationHandler{installations: installations, urls: urls}
}

// Install redirects the installer to the platform consent screen
// GET /api/oauth/install
func (h *InstallationHandler) Install(c *gin.Context) {
	state := c.Query("state")
	if state == "" {
		state = uuid.New().String()
	}
	c.Redirect(http.StatusFound, h.urls.InstallURL(state))
}

// Callback exchanges the authorization code and installs every location
// GET /api/oauth/callback?code=
func (h *InstallationHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}

	result, err := h.installations.ProcessInstallation(c.Request.Context(), domain.InstallRequest{Code: code})
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"companyId": result.CompanyID})
}

// Process runs an install from a code or from stored install data
// POST /api/oauth/install
func (h *InstallationHandler) Process(c *gin.Context) {
	var req domain.InstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.installations.ProcessInstallation(c.Request.Context(), req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
