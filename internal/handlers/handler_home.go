package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// HealthResponse reports liveness and, when sync is configured, the engine state.
type HealthResponse struct {
	Status     string `json:"status"`
	SyncStatus string `json:"syncStatus,omitempty"`
}

// getHealth godoc
// @Summary Show the status of server.
// @Tags root
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func getHealth(syncService portssvc.SyncSvcFacade) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{Status: "ok"}
		if syncService != nil {
			status, err := syncService.Status(c.Request.Context())
			if err != nil {
				middleware.GetLoggerFromCtx(c.Request.Context()).Warn("Health check could not read sync status")
			} else {
				resp.SyncStatus = string(status.Status)
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
