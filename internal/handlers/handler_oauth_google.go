package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// googleDriveHandler connects the Drive blob store to a Google account.
type googleDriveHandler struct {
	connector portssvc.GoogleDriveConnectorSvc
	trigger   SyncTrigger
}

func registerGoogleDriveRoutes(rg *gin.RouterGroup, connector portssvc.GoogleDriveConnectorSvc, trigger SyncTrigger) {
	if connector == nil {
		return
	}
	h := &googleDriveHandler{connector: connector, trigger: trigger}

	google := rg.Group("/google")
	{
		google.GET("/auth-url", h.authURL)
		google.POST("/exchange-code", h.exchangeCode)
	}
}

// authURL godoc
// @Summary Google Drive consent URL
// @Description Returns the consent URL and the single-use state it carries
// @Tags oauth
// @Produce  json
// @Success 200 {object} dto.GoogleAuthURLResponse
// @Failure 400 {object} ErrorResponse "Google client is not configured"
// @Security BearerAuth
// @Router /sync/google/auth-url [get]
func (h *googleDriveHandler) authURL(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	resp, err := h.connector.AuthURL(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to build Google consent URL")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// exchangeCode godoc
// @Summary Exchange authorization code
// @Description Exchanges the code, validates the ID token and stores the Drive token
// @Tags oauth
// @Accept  json
// @Produce  json
// @Param   request body dto.GoogleExchangeCodeRequest true "Authorization code and state"
// @Success 200 {object} dto.GoogleConnectionResponse
// @Failure 400 {object} ErrorResponse "Invalid request payload"
// @Failure 401 {object} ErrorResponse "Unknown state or rejected code"
// @Failure 500 {object} ErrorResponse "Failed to store token"
// @Security BearerAuth
// @Router /sync/google/exchange-code [post]
func (h *googleDriveHandler) exchangeCode(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.GoogleExchangeCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	resp, err := h.connector.ExchangeCode(c.Request.Context(), req.Code, req.State)
	if err != nil {
		respondError(c, logger, err, "Failed to connect Google Drive")
		return
	}
	logger.Info("Google Drive connected", slog.String("email", resp.Email))
	if h.trigger != nil {
		// A scheduler halted by a missing token resumes right away.
		h.trigger.TriggerNow()
	}
	c.JSON(http.StatusOK, resp)
}
