package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	geminiclient "github.com/aurelia-labs/companion-backend/internal/clients/gemini"
	redisclient "github.com/aurelia-labs/companion-backend/internal/clients/redis"
	searchclient "github.com/aurelia-labs/companion-backend/internal/clients/search"
	"github.com/aurelia-labs/companion-backend/internal/db"
	"github.com/aurelia-labs/companion-backend/internal/handlers"
	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/middleware"
	"github.com/aurelia-labs/companion-backend/internal/observability"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/server"
	"github.com/aurelia-labs/companion-backend/internal/services"
	"github.com/aurelia-labs/companion-backend/internal/utils"
)

func main() {
	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "companion-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Failed to initialize database", "error", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Fatal("Failed to migrate database", "error", err)
	}
	gormDB := pg.DB()

	userRepo := repos.NewUserRepo(gormDB, log)
	userTokenRepo := repos.NewUserTokenRepo(gormDB, log)
	userProfileRepo := repos.NewUserProfileRepo(gormDB, log)
	conversationRepo := repos.NewConversationRepo(gormDB, log)
	messageRepo := repos.NewMessageRepo(gormDB, log)
	memoryRepo := repos.NewMemoryRepo(gormDB, log)
	emotionLogRepo := repos.NewEmotionLogRepo(gormDB, log)
	automationRepo := repos.NewAutomationRepo(gormDB, log)

	// Optional externals: the server runs degraded without them.
	llm, err := geminiclient.NewClient(log)
	if err != nil {
		log.Warn("Gemini client unavailable, chat turns will fail", "error", err)
		llm = nil
	}
	search, err := searchclient.NewClient(log)
	if err != nil {
		log.Warn("Search client unavailable, realtime lookups disabled", "error", err)
		search = nil
	}
	trendCache, err := redisclient.NewTrendCache(log)
	if err != nil {
		log.Warn("Redis unavailable, emotion trend cache disabled", "error", err)
		trendCache = nil
	}

	jwtSecret := utils.GetEnv("JWT_SECRET_KEY", "", log)
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET_KEY is required")
	}
	accessTTL := time.Duration(utils.GetEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 60, log)) * time.Minute
	refreshTTL := time.Duration(utils.GetEnvAsInt("REFRESH_TOKEN_TTL_HOURS", 720, log)) * time.Hour

	sentimentService := services.NewSentimentService()
	emotionService := services.NewEmotionService(gormDB, log, sentimentService, emotionLogRepo)
	memoryService := services.NewMemoryService(gormDB, log, memoryRepo)
	automationService := services.NewAutomationService(gormDB, log, automationRepo)
	proactiveService := services.NewProactiveService(gormDB, log, messageRepo)
	authService := services.NewAuthService(gormDB, log, userRepo, userTokenRepo, jwtSecret, accessTTL, refreshTTL)
	userService := services.NewUserService(gormDB, log, userRepo, userProfileRepo, conversationRepo, messageRepo, memoryRepo, automationRepo, emotionService)
	turnService := services.NewTurnService(gormDB, log, conversationRepo, messageRepo, emotionService, automationService, memoryService, proactiveService, llm, search)

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:         handlers.NewAuthHandler(authService),
		ChatHandler:         handlers.NewChatHandler(log, turnService, conversationRepo),
		ConversationHandler: handlers.NewConversationHandler(conversationRepo, messageRepo, userService),
		MemoryHandler:       handlers.NewMemoryHandler(memoryService),
		AutomationHandler:   handlers.NewAutomationHandler(automationService),
		EmotionHandler:      handlers.NewEmotionHandler(log, emotionService, trendCache),
		ProactiveHandler:    handlers.NewProactiveHandler(proactiveService, emotionService),
		UserHandler:         handlers.NewUserHandler(userService),
		HealthcheckHandler:  handlers.NewHealthcheckHandler(),
		AuthMiddleware:      middleware.NewAuthMiddleware(log, authService),
	})

	addr := ":" + utils.GetEnv("PORT", "8080", log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if otelShutdown != nil {
			_ = otelShutdown(shutdownCtx)
		}
		_ = trendCache.Close()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("Server exited with error", "error", err)
	}
}
