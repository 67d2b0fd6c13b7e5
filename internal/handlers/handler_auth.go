package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/dto"
	"github.com/SscSPs/money_sync_app/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
)

// authHandler handles owner login.
type authHandler struct {
	authService portssvc.AuthSvc
}

// registerAuthRoutes sets up the public authentication routes. Login is
// limited per client IP by loginLimiter.
func registerAuthRoutes(r *gin.Engine, authService portssvc.AuthSvc, loginLimiter *limiter.Limiter) {
	h := &authHandler{authService: authService}

	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/login", middleware.RateLimit(loginLimiter), h.login)
	}
}

// login godoc
// @Summary Owner login
// @Description Checks the owner password and returns a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param login body dto.LoginRequest true "Login Credentials"
// @Success 200 {object} dto.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /auth/login [post]
func (h *authHandler) login(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req.Password)
	if err != nil {
		respondError(c, logger, err, "Failed to log in")
		return
	}
	c.JSON(http.StatusOK, resp)
}
