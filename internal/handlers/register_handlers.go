package handlers

import (
	"github.com/SscSPs/money_sync_app/cmd/docs"
	portssvc "github.com/SscSPs/money_sync_app/internal/core/ports/services"
	"github.com/SscSPs/money_sync_app/internal/middleware"
	"github.com/SscSPs/money_sync_app/internal/platform/config"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// loginRate bounds password guessing per client IP.
const loginRate = "5-M"

// RouteOption customizes route registration.
type RouteOption func(*routeDeps)

type routeDeps struct {
	syncTrigger SyncTrigger
}

// WithSyncTrigger lets the Google Drive connect flow wake the sync scheduler.
func WithSyncTrigger(trigger SyncTrigger) RouteOption {
	return func(d *routeDeps) {
		d.syncTrigger = trigger
	}
}

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	opts ...RouteOption,
) error {
	var deps routeDeps
	for _, opt := range opts {
		opt(&deps)
	}

	r.GET("/health", getHealth(services.Sync))

	loginLimiter, err := middleware.NewRateLimiter(loginRate)
	if err != nil {
		return err
	}
	registerAuthRoutes(r, services.Auth, loginLimiter)

	setupAPIV1Routes(r, cfg, services, deps)

	setupSwaggerRoutes(r, cfg)
	return nil
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	service *portssvc.ServiceContainer,
	deps routeDeps,
) {
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret))

	RegisterAccountRoutes(v1, service.Account)
	RegisterCategoryRoutes(v1, service.Category)
	RegisterTransactionRoutes(v1, service.Transaction)
	RegisterBudgetRoutes(v1, service.Budget)
	RegisterSyncRoutes(v1, service.Sync, service.GoogleDrive, deps.syncTrigger)
}

// setupSwaggerRoutes configures the swagger documentation routes
func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
