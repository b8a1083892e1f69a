package handler

import (
	"vesper/internal/config"
	"vesper/internal/domain"
	"vesper/internal/middleware"
	"vesper/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	handlers *Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/files/*name", handlers.Files.Download)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", rateLimitMiddleware.Limit("register"), handlers.Auth.Register)
			auth.POST("/login", rateLimitMiddleware.Limit("login"), handlers.Auth.Login)
			auth.POST("/telegram", rateLimitMiddleware.Limit("telegram"), handlers.Auth.Telegram)
			auth.GET("/me", authMiddleware.RequireAuth(), handlers.Auth.Me)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			users := protected.Group("/users")
			{
				users.GET("", authMiddleware.RequireRole(domain.RoleAdmin), handlers.User.List)
				users.GET("/search", handlers.User.Search)
				users.GET("/:id", handlers.User.GetByID)
				users.PUT("/:id/avatar", handlers.User.UpdateAvatar)
			}

			messages := protected.Group("/messages")
			{
				messages.GET("/chats/list", handlers.Message.ListChats)
				messages.POST("", handlers.Message.Send)
				messages.POST("/upload", handlers.Message.Upload)
				messages.GET("/:chatId", handlers.Message.History)
				messages.POST("/:chatId/read", handlers.Message.MarkRead)
			}

			admin := protected.Group("/admin")
			admin.Use(authMiddleware.RequireRole(domain.RoleAdmin))
			{
				admin.GET("/stats", handlers.Admin.Stats)
				admin.GET("/activity", handlers.Admin.Activity)
				admin.GET("/stream", handlers.Admin.Stream)
			}
		}
	}

	router.GET("/ws", authMiddleware.RequireAuth(), handlers.WebSocket.Serve)

	return router
}
