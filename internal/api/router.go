package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/baseplate/tracker/internal/api/handlers"
	"github.com/baseplate/tracker/internal/api/middleware"
	"github.com/baseplate/tracker/internal/core/auth"
	"github.com/baseplate/tracker/internal/core/workspace"
	"github.com/baseplate/tracker/internal/telemetry"
)

type Router struct {
	engine           *gin.Engine
	logger           zerolog.Logger
	metrics          *telemetry.Metrics
	authMiddleware   *middleware.AuthMiddleware
	authHandler      *handlers.AuthHandler
	workspaceHandler *handlers.WorkspaceHandler
	resourceHandler  *handlers.ResourceHandler
}

func NewRouter(
	logger zerolog.Logger,
	metrics *telemetry.Metrics,
	authService *auth.Service,
	resolver *workspace.Resolver,
	authHandler *handlers.AuthHandler,
	workspaceHandler *handlers.WorkspaceHandler,
	resourceHandler *handlers.ResourceHandler,
) *Router {
	return &Router{
		logger:           telemetry.Component(logger, "http"),
		metrics:          metrics,
		authMiddleware:   middleware.NewAuthMiddleware(authService, resolver),
		authHandler:      authHandler,
		workspaceHandler: workspaceHandler,
		resourceHandler:  resourceHandler,
	}
}

func (r *Router) Setup(mode string) *gin.Engine {
	gin.SetMode(mode)
	r.engine = gin.New()
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestLogger(r.logger, r.metrics))
	r.engine.Use(middleware.AuditMiddleware())

	r.setupRoutes()
	return r.engine
}

func (r *Router) setupRoutes() {
	r.engine.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	api := r.engine.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Auth routes (public)
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", r.authHandler.Register)
		authRoutes.POST("/login", r.authHandler.Login)
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(r.authMiddleware.Authenticate())
	{
		protected.GET("/auth/me", r.authHandler.Me)

		workspaces := protected.Group("/workspaces")
		{
			workspaces.POST("", r.workspaceHandler.Create)
			workspaces.GET("", r.workspaceHandler.List)
		}

		ws := protected.Group("/workspaces/:workspace")
		ws.Use(r.authMiddleware.RequireWorkspace())
		{
			ws.GET("", r.workspaceHandler.Get)
			ws.PUT("", r.authMiddleware.RequirePermission(workspace.PermWorkspaceManage), r.workspaceHandler.Update)
			ws.DELETE("", r.authMiddleware.RequirePermission(workspace.PermWorkspaceManage), r.workspaceHandler.Delete)

			// API Keys
			ws.GET("/api-keys", r.authMiddleware.RequirePermission(workspace.PermWorkspaceManage), r.authHandler.ListAPIKeys)
			ws.POST("/api-keys", r.authMiddleware.RequirePermission(workspace.PermWorkspaceManage), r.authHandler.CreateAPIKey)
			ws.DELETE("/api-keys/:keyId", r.authMiddleware.RequirePermission(workspace.PermWorkspaceManage), r.authHandler.DeleteAPIKey)

			// Action surface
			ws.POST("/actions", r.resourceHandler.Action)

			// REST surface over the same handlers
			resources := ws.Group("/resources/:resource")
			{
				resources.GET("", r.resourceHandler.List)
				resources.POST("", r.resourceHandler.Create)
				resources.GET("/:id", r.resourceHandler.Get)
				resources.PATCH("/:id", r.resourceHandler.Update)
				resources.PUT("/:id", r.resourceHandler.Update)
				resources.DELETE("/:id", r.resourceHandler.Delete)
			}
		}
	}
}
