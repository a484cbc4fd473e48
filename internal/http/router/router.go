package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/proposal-backend/internal/config"
	"github.com/ignatzorin/proposal-backend/internal/http/handlers"
	"github.com/ignatzorin/proposal-backend/internal/http/middleware"
	"github.com/ignatzorin/proposal-backend/internal/interface/http/handler"
	"github.com/ignatzorin/proposal-backend/internal/models"
)

// Handlers собирает HTTP обработчики приложения. Google может быть nil, если вход через Google не настроен.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Google     *handlers.GoogleHandler
	Proposal   *handler.ProposalHandler
	Attachment *handlers.AttachmentHandler
	WS         *handlers.WSHandler
	Health     *handlers.HealthHandler
}

// Deps - инфраструктура, которую использует middleware.
type Deps struct {
	Tokens         middleware.AccessTokenParser
	Metrics        *middleware.Metrics
	RateLimitStore limiter.Store
	Log            logrus.FieldLogger
}

func SetupRouter(cfg *config.Config, h Handlers, deps Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.ErrorHandler(deps.Log))
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", deps.Metrics.Handler())
	}
	r.NoRoute(middleware.NoRoute)

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(deps.RateLimitStore, cfg.RateLimitLimit, cfg.RateLimitPeriod, deps.Log))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", h.Auth.Logout)
		if h.Google != nil {
			authGroup.GET("/google", h.Google.Start)
			authGroup.GET("/google/callback", h.Google.Callback)
		}
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(deps.Tokens))
	{
		protected.GET("/auth/me", h.Auth.Me)
		protected.GET("/auth/sessions", h.Auth.ListSessions)
		protected.DELETE("/auth/sessions/:id", middleware.UUIDValidator("id"), h.Auth.DeleteSession)

		proposals := protected.Group("/proposals")
		proposals.POST("", middleware.RequireRoles(models.RoleClient, models.RoleServiceProvider), h.Proposal.CreateProposal)
		proposals.GET("", h.Proposal.ListProposals)
		proposals.GET("/:id", middleware.UUIDValidator("id"), h.Proposal.GetProposal)
		proposals.PATCH("/:id", middleware.UUIDValidator("id"), h.Proposal.UpdateProposal)
		proposals.DELETE("/:id", middleware.UUIDValidator("id"), h.Proposal.DeleteProposal)

		proposals.POST("/:id/attachments", middleware.UUIDValidator("id"), h.Attachment.Upload)
		proposals.GET("/:id/attachments", middleware.UUIDValidator("id"), h.Attachment.List)
		proposals.GET("/:id/attachments/:attachmentId/file",
			middleware.UUIDValidator("id"), middleware.UUIDValidator("attachmentId"), h.Attachment.Download)
		proposals.DELETE("/:id/attachments/:attachmentId",
			middleware.UUIDValidator("id"), middleware.UUIDValidator("attachmentId"), h.Attachment.Delete)
	}

	return r
}
