package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

// SyncTrigger asks the background scheduler for an immediate run.
type SyncTrigger interface {
	TriggerNow()
}

type syncHandler struct {
	// syncService is nil when no remote provider is configured.
	syncService portssvc.SyncSvcFacade
}

// RegisterSyncRoutes registers the sync engine routes. The Google Drive
// connect routes live under the same group.
func RegisterSyncRoutes(rg *gin.RouterGroup, syncService portssvc.SyncSvcFacade, google portssvc.GoogleDriveConnectorSvc, trigger SyncTrigger) {
	h := &syncHandler{syncService: syncService}

	sync := rg.Group("/sync")
	{
		sync.POST("", h.requireSync, h.sync)
		sync.GET("/status", h.requireSync, h.status)
		sync.GET("/conflicts", h.requireSync, h.listConflicts)
		sync.POST("/conflicts/:id/resolve", h.requireSync, h.resolveConflict)
	}
	registerGoogleDriveRoutes(sync, google, trigger)
}

func (h *syncHandler) requireSync(c *gin.Context) {
	if h.syncService == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Sync is not configured"})
		return
	}
	c.Next()
}

// sync godoc
// @Summary Run a sync cycle
// @Description Unresolved conflicts are reported in the result status, not as an error
// @Tags sync
// @Accept  json
// @Produce  json
// @Param   request body dto.SyncRequest false "Strategy, defaults to merge"
// @Success 200 {object} dto.SyncResponse
// @Failure 400 {object} ErrorResponse "Unknown strategy"
// @Failure 409 {object} ErrorResponse "A sync is already running"
// @Failure 422 {object} ErrorResponse "Remote backup was written with a different secret"
// @Failure 503 {object} ErrorResponse "Remote store unavailable, retry later"
// @Security BearerAuth
// @Router /sync [post]
func (h *syncHandler) sync(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, logger, err)
			return
		}
	}

	opts := req.Options()
	result, err := h.syncService.Sync(c.Request.Context(), opts)
	if err != nil {
		respondError(c, logger.With(slog.String("strategy", string(opts.Strategy))), err, "Sync failed, will retry")
		return
	}
	c.JSON(http.StatusOK, dto.ToSyncResponse(result))
}

// status godoc
// @Summary Sync status
// @Tags sync
// @Produce  json
// @Success 200 {object} dto.SyncStatusResponse
// @Security BearerAuth
// @Router /sync/status [get]
func (h *syncHandler) status(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	status, err := h.syncService.Status(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to read sync status")
		return
	}
	c.JSON(http.StatusOK, status)
}

// listConflicts godoc
// @Summary List unresolved conflicts
// @Tags sync
// @Produce  json
// @Success 200 {array} dto.ConflictResponse
// @Security BearerAuth
// @Router /sync/conflicts [get]
func (h *syncHandler) listConflicts(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	conflicts, err := h.syncService.ListConflicts(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to list conflicts")
		return
	}
	c.JSON(http.StatusOK, dto.ToConflictResponses(conflicts))
}

// resolveConflict godoc
// @Summary Resolve one conflict
// @Description Applies the chosen side and removes exactly that conflict
// @Tags sync
// @Accept  json
// @Produce  json
// @Param   id path string true "Conflict ID"
// @Param   request body dto.ResolveConflictRequest true "Winning side"
// @Success 200 {object} dto.ResolveConflictResponse
// @Failure 400 {object} ErrorResponse "Unknown side"
// @Failure 404 {object} ErrorResponse "Conflict not found"
// @Failure 409 {object} ErrorResponse "A sync is already running"
// @Security BearerAuth
// @Router /sync/conflicts/{id}/resolve [post]
func (h *syncHandler) resolveConflict(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("conflict_id", c.Param("id")))
	var req dto.ResolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	resp, err := h.syncService.ResolveConflict(c.Request.Context(), c.Param("id"), req.Resolution)
	if err != nil {
		respondError(c, logger, err, "Failed to resolve conflict")
		return
	}
	c.JSON(http.StatusOK, resp)
}
