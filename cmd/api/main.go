package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"console-gw/internal/assistant"
	"console-gw/internal/config"
	"console-gw/internal/db"
	apihttp "console-gw/internal/http"
	"console-gw/internal/repository"
	"console-gw/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	workspaceRepo := repository.NewPgWorkspaceRepository(pool)
	solutionRepo := repository.NewPgSolutionRepository(pool)
	datasourceRepo := repository.NewPgDatasourceRepository(pool)
	sessionRepo := repository.NewPgChatSessionRepository(pool)
	messageRepo := repository.NewPgChatMessageRepository(pool)
	contextRepo := repository.NewPgContextSnippetRepository(pool)

	var (
		limiter     service.SendRateLimiter
		tokenStore  service.RefreshTokenStore
		credStore   service.CredentialStore
		redisClient *redis.Client
	)
	rateWindow := time.Duration(cfg.ChatRateWindowSec) * time.Second
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiter = service.NewRedisSendRateLimiter(redisClient, rateWindow, cfg.ChatRateMax)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
			credStore = service.NewRedisCredentialStore(redisClient)
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewSendRateLimiter(rateWindow, cfg.ChatRateMax)
	}
	if credStore == nil {
		credStore = service.NewMemoryCredentialStore()
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	userSvc := service.NewUserService(logger, userRepo)

	dial := func(ctx context.Context) (assistant.Streamer, error) {
		return assistant.Dial(ctx, cfg.AssistantWSURL, logger)
	}
	var embedder service.Embedder
	if cfg.EmbeddingURL != "" {
		embedder = service.NewHTTPEmbedder(cfg.EmbeddingURL, logger)
	} else {
		logger.Warn("embedding backend not configured, context enrichment disabled")
	}
	assistantSvc := service.NewAssistantService(logger, sessionRepo, messageRepo, contextRepo, embedder, limiter, dial)

	if cfg.PlatformTokenURL != "" {
		refresher := service.NewHTTPRefresher(cfg.PlatformTokenURL, cfg.PlatformClientID, logger)
		lifecycle := service.NewTokenLifecycle(logger, credStore, refresher, func() {
			logger.Warn("platform session ended, re-authentication required")
		})
		if err := lifecycle.Start(ctx); err != nil && !errors.Is(err, service.ErrNoCredentials) {
			logger.Warn("token lifecycle start failed", zap.Error(err))
		}
		defer lifecycle.Stop()
	}

	authHandler := apihttp.NewAuthHandler(logger, userSvc, jwtSvc)
	chatHandler := apihttp.NewChatHandler(logger, assistantSvc)
	workspaceHandler := apihttp.NewWorkspaceHandler(logger, workspaceRepo, solutionRepo, datasourceRepo, assistantSvc)
	streamHandler := apihttp.NewStreamHandler(logger, assistantSvc)
	router := apihttp.NewRouter(logger, jwtSvc, service.DefaultRoleCatalog, authHandler, chatHandler, workspaceHandler, streamHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
