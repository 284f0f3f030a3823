package server

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/aurelia-labs/companion-backend/internal/handlers"
	"github.com/aurelia-labs/companion-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler         *handlers.AuthHandler
	ChatHandler         *handlers.ChatHandler
	ConversationHandler *handlers.ConversationHandler
	MemoryHandler       *handlers.MemoryHandler
	AutomationHandler   *handlers.AutomationHandler
	EmotionHandler      *handlers.EmotionHandler
	ProactiveHandler    *handlers.ProactiveHandler
	UserHandler         *handlers.UserHandler
	HealthcheckHandler  *handlers.HealthcheckHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if otelOn() {
		router.Use(otelgin.Middleware("companion-backend"))
	}

	corsConfig := cors.DefaultConfig()
	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); origins != "" {
		corsConfig.AllowOrigins = strings.Split(origins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)

	authed := router.Group("/")
	authed.Use(cfg.AuthMiddleware.RequireAuth())
	{
		authed.POST("/logout", cfg.AuthHandler.Logout)
		authed.POST("/chat", cfg.ChatHandler.Chat)

		api := authed.Group("/api")
		{
			api.GET("/conversations", cfg.ConversationHandler.List)
			api.POST("/conversations", cfg.ConversationHandler.Create)
			api.GET("/conversations/export", cfg.ConversationHandler.Export)
			api.GET("/conversations/:id/messages", cfg.ConversationHandler.Messages)

			api.GET("/memories", cfg.MemoryHandler.List)
			api.POST("/memories", cfg.MemoryHandler.Create)

			api.GET("/automations", cfg.AutomationHandler.List)
			api.POST("/automations", cfg.AutomationHandler.Create)

			api.GET("/emotions/trend", cfg.EmotionHandler.Trend)
			api.GET("/proactive/suggestions", cfg.ProactiveHandler.Suggestions)

			api.GET("/user/profile", cfg.UserHandler.GetProfile)
			api.POST("/user/profile", cfg.UserHandler.UpdateProfile)
			api.GET("/stats/dashboard", cfg.UserHandler.DashboardStats)
		}
	}

	return router
}

func otelOn() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("OTEL_ENABLED")))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
