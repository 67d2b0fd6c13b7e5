package handlers

import (
	"log/slog"
	"net/http"
	"time"

	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/middleware"
	"github.com/gin-gonic/gin"
)

type budgetHandler struct {
	budgetService portssvc.BudgetSvcFacade
	now           func() time.Time
}

// RegisterBudgetRoutes registers routes related to budgets.
func RegisterBudgetRoutes(rg *gin.RouterGroup, budgetService portssvc.BudgetSvcFacade) {
	h := &budgetHandler{budgetService: budgetService, now: time.Now}

	budgets := rg.Group("/budgets")
	{
		budgets.POST("", h.createBudget)
		budgets.GET("", h.listBudgets)
		budgets.GET("/alerts", h.checkAlerts)
		budgets.POST("/refresh", h.refreshAll)
		budgets.GET("/:id", h.getBudget)
		budgets.PUT("/:id", h.updateBudget)
		budgets.DELETE("/:id", h.deleteBudget)
		budgets.POST("/:id/deactivate", h.deactivateBudget)
		budgets.POST("/:id/refresh", h.refreshOne)
		budgets.GET("/:id/performance", h.getPerformance)
	}
}

// createBudget godoc
// @Summary Create a budget
// @Description Rejects a window that overlaps another active budget of the category
// @Tags budgets
// @Accept  json
// @Produce  json
// @Param   budget body dto.CreateBudgetRequest true "Budget details"
// @Success 201 {object} dto.BudgetResponse
// @Failure 400 {object} ErrorResponse "Validation error or overlapping window"
// @Failure 422 {object} ErrorResponse "Unknown or non-expense category"
// @Security BearerAuth
// @Router /budgets [post]
func (h *budgetHandler) createBudget(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	budget, err := h.budgetService.CreateBudget(c.Request.Context(), req)
	if err != nil {
		respondError(c, logger.With(slog.String("category_id", req.CategoryID)), err, "Failed to create budget")
		return
	}
	c.JSON(http.StatusCreated, dto.ToBudgetResponse(budget))
}

// listBudgets godoc
// @Summary List budgets
// @Tags budgets
// @Produce  json
// @Success 200 {object} dto.ListBudgetsResponse
// @Security BearerAuth
// @Router /budgets [get]
func (h *budgetHandler) listBudgets(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	budgets, err := h.budgetService.ListBudgets(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to list budgets")
		return
	}
	c.JSON(http.StatusOK, dto.ToListBudgetResponse(budgets))
}

// getBudget godoc
// @Summary Get a budget by ID
// @Tags budgets
// @Produce  json
// @Param   id path string true "Budget ID"
// @Success 200 {object} dto.BudgetResponse
// @Failure 404 {object} ErrorResponse "Budget not found"
// @Security BearerAuth
// @Router /budgets/{id} [get]
func (h *budgetHandler) getBudget(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("budget_id", c.Param("id")))

	budget, err := h.budgetService.GetBudgetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve budget")
		return
	}
	c.JSON(http.StatusOK, dto.ToBudgetResponse(budget))
}

// updateBudget godoc
// @Summary Update a budget
// @Tags budgets
// @Accept  json
// @Produce  json
// @Param   id path string true "Budget ID"
// @Param   budget body dto.UpdateBudgetRequest true "Fields to update"
// @Success 200 {object} dto.BudgetResponse
// @Failure 400 {object} ErrorResponse "Validation error or overlapping window"
// @Failure 404 {object} ErrorResponse "Budget not found"
// @Security BearerAuth
// @Router /budgets/{id} [put]
func (h *budgetHandler) updateBudget(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("budget_id", c.Param("id")))
	var req dto.UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, err)
		return
	}

	budget, err := h.budgetService.UpdateBudget(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, logger, err, "Failed to update budget")
		return
	}
	c.JSON(http.StatusOK, dto.ToBudgetResponse(budget))
}

// deactivateBudget godoc
// @Summary Deactivate a budget
// @Tags budgets
// @Param   id path string true "Budget ID"
// @Success 204 "No Content"
// @Failure 404 {object} ErrorResponse "Budget not found"
// @Security BearerAuth
// @Router /budgets/{id}/deactivate [post]
func (h *budgetHandler) deactivateBudget(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("budget_id", c.Param("id")))

	if err := h.budgetService.DeactivateBudget(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, logger, err, "Failed to deactivate budget")
		return
	}
	c.Status(http.StatusNoContent)
}

// deleteBudget godoc
// @Summary Delete a budget
// @Tags budgets
// @Param   id path string true "Budget ID"
// @Success 204 "No Content"
// @Failure 404 {object} ErrorResponse "Budget not found"
// @Security BearerAuth
// @Router /budgets/{id} [delete]
func (h *budgetHandler) deleteBudget(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("budget_id", c.Param("id")))

	if err := h.budgetService.DeleteBudget(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, logger, err, "Failed to delete budget")
		return
	}
	c.Status(http.StatusNoContent)
}

// refreshAll godoc
// @Summary Recompute spent for every budget
// @Tags budgets
// @Produce  json
// @Success 200 {object} dto.RefreshSpendingResponse
// @Security BearerAuth
// @Router /budgets/refresh [post]
func (h *budgetHandler) refreshAll(c *gin.Context) {
	h.refresh(c, "")
}

// refreshOne godoc
// @Summary Recompute spent for one budget
// @Tags budgets
// @Produce  json
// @Param   id path string true "Budget ID"
// @Success 200 {object} dto.RefreshSpendingResponse
// @Failure 404 {object} ErrorResponse "Budget not found"
// @Security BearerAuth
// @Router /budgets/{id}/refresh [post]
func (h *budgetHandler) refreshOne(c *gin.Context) {
	h.refresh(c, c.Param("id"))
}

func (h *budgetHandler) refresh(c *gin.Context, budgetID string) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("budget_id", budgetID))

	updated, err := h.budgetService.RefreshSpending(c.Request.Context(), budgetID)
	if err != nil {
		respondError(c, logger, err, "Failed to refresh budget spending")
		return
	}
	c.JSON(http.StatusOK, dto.RefreshSpendingResponse{Updated: updated})
}

// checkAlerts godoc
// @Summary List budget alerts
// @Description At most one alert per active budget: the highest threshold crossed
// @Tags budgets
// @Produce  json
// @Param   refresh query bool false "Recompute spent before evaluating"
// @Success 200 {object} dto.BudgetAlertsResponse
// @Security BearerAuth
// @Router /budgets/alerts [get]
func (h *budgetHandler) checkAlerts(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var params dto.BudgetAlertsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		badRequest(c, logger, err)
		return
	}

	alerts, err := h.budgetService.CheckAlerts(c.Request.Context(), params.Refresh)
	if err != nil {
		respondError(c, logger, err, "Failed to check budget alerts")
		return
	}
	c.JSON(http.StatusOK, dto.BudgetAlertsResponse{Alerts: alerts})
}

// getPerformance godoc
// @Summary Project a budget's spend
// @Tags budgets
// @Produce  json
// @Param   id path string true "Budget ID"
// @Param   asOf query string false "Evaluation date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} domain.BudgetPerformance
// @Failure 400 {object} ErrorResponse "Invalid date"
// @Failure 404 {object} ErrorResponse "Budget not found"
// @Security BearerAuth
// @Router /budgets/{id}/performance [get]
func (h *budgetHandler) getPerformance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("budget_id", c.Param("id")))

	asOf := h.now().UTC()
	if raw := c.Query("asOf"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			badRequest(c, logger, err)
			return
		}
		asOf = parsed
	}

	performance, err := h.budgetService.GetPerformance(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		respondError(c, logger, err, "Failed to compute budget performance")
		return
	}
	c.JSON(http.StatusOK, performance)
}
