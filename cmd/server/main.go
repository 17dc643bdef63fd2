package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"go.pilab.hu/tokend/api/echoapi"
	"go.pilab.hu/tokend/config"
	kvredis "go.pilab.hu/tokend/kv/redis"
	"go.pilab.hu/tokend/log"
	"go.pilab.hu/tokend/oauth"
	"go.pilab.hu/tokend/registry/mongodb"
	"go.pilab.hu/tokend/store"
	"go.pilab.hu/tokend/token"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	logger := log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	logger.Info(ctx, "starting tokend", map[string]interface{}{
		"http_port":  cfg.HTTPPort,
		"redis_addr": cfg.RedisAddr,
		"mongo_uri":  cfg.MongoURI,
		"log_level":  logLevel.String(),
	})

	// Redis backs the credential store.
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal(ctx, "failed to connect to redis", err)
	}

	// MongoDB backs the application registry.
	db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal(ctx, "failed to connect to mongodb", err)
	}

	creds := store.NewCredentialStore(kvredis.NewStore(redisClient), logger)
	svc := oauth.NewTokenService(mongodb.NewRegistry(db), creds, token.NewSecureGenerator(), logger)

	e := echo.New()
	e.HideBanner = true
	echoapi.NewAPI(svc, logger, cfg.AccessTokenTTL()).RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "http server failed", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http server shutdown failed", err)
	}
	if err := redisClient.Close(); err != nil {
		logger.Error(shutdownCtx, "redis close failed", err)
	}
	if err := db.Client().Disconnect(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "mongodb disconnect failed", err)
	}
}
