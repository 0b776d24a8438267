package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"vision-assist/backend/internal/api"
	"vision-assist/backend/pkg/config"
	"vision-assist/backend/pkg/di"
	"vision-assist/backend/pkg/errors"
	"vision-assist/backend/pkg/logger"
	"vision-assist/backend/pkg/middleware"
)

// Version is reported by the health endpoint
var Version = "1.0.0"

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.Warn("Invalid trusted proxies, trusting none", "error", err.Error())
		_ = engine.SetTrustedProxies(nil)
	}

	// Logger first so every later middleware logs with the request id
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))
	engine.Use(middleware.Deadline(cfg.RequestDeadline()))

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	// Operational endpoints are outside the rate limit
	api.NewHealthHandler(c.Health, Version).RegisterRoutes(r.Engine)
	if c.MetricsHandler != nil {
		r.Engine.GET("/metrics", gin.WrapH(c.MetricsHandler))
	}

	if r.Config.OpenAPI.Validate {
		r.addOpenAPIValidation(r.Config.OpenAPI.SchemaPath)
	}

	routes := r.Engine.Group("")
	routes.Use(c.RateLimiter.Middleware())

	api.NewUserHandler(c.UserService).RegisterRoutes(routes, middleware.JWTAuth(c.JWTService))
	api.NewAssistantHandler(c.AssistantService, c.UserService, r.Config.Server.MaxUploadSize).
		RegisterRoutes(routes, middleware.OptionalAuth(c.JWTService))
	api.NewTTSHandler(c.AssistantService).RegisterRoutes(routes)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}

	return cors.New(cfg)
}
