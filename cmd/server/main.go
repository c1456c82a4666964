package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anoa.com/challengebot/internal/bootstrap"
	"anoa.com/challengebot/internal/bot"
	"anoa.com/challengebot/internal/config"
	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/internal/server"
	"anoa.com/challengebot/internal/worker"
	"anoa.com/challengebot/pkg/cache"
	"anoa.com/challengebot/pkg/database"
	"anoa.com/challengebot/pkg/logger"
	"anoa.com/challengebot/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal("failed to load config", zap.Error(err))
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		logger.Get().Fatal("failed to init logger", zap.Error(err))
	}
	defer logger.Sync()
	log := logger.WithComponent("main")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validator.RegisterCustom(); err != nil {
		log.Fatal("failed to register validators", zap.Error(err))
	}

	db, err := database.Connect(database.Options{
		DSN:           cfg.DatabaseURL,
		Host:          cfg.DBHost,
		User:          cfg.DBUser,
		Password:      cfg.DBPass,
		Name:          cfg.DBName,
		Port:          cfg.DBPort,
		LogLevel:      cfg.LogLevel,
		SlowThreshold: cfg.DBSlowQuery,
	})
	if err != nil {
		log.Fatal("database unavailable", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	if err := bootstrap.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	if err := bootstrap.SeedGuildSettings(db, cfg.DiscordGuildID); err != nil {
		log.Fatal("failed to seed guild settings", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisCache, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		// leaderboards fall back to the database
		log.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisCache = nil
	}
	defer func() { _ = redisCache.Close() }()

	var meili meilisearch.ServiceManager
	if cfg.MeiliSearchHost != "" {
		meili = meilisearch.New(cfg.MeiliSearchHost, meilisearch.WithAPIKey(cfg.MeiliMasterKey))
	}

	var (
		p       platform.Platform = platform.Nop{}
		discord *platform.Discord
	)
	if cfg.DiscordToken != "" {
		discord, err = platform.NewDiscord(cfg.DiscordToken, cfg.PlatformTimeout, cfg.AdminRoleID)
		if err != nil {
			log.Fatal("failed to create discord session", zap.Error(err))
		}
		p = discord
	} else {
		log.Warn("DISCORD_TOKEN not set, running without the bot")
	}

	srv := server.NewServer(cfg, db, redisCache, meili, p)

	if discord != nil {
		bot.New(discord.Session(), cfg.DiscordAppID, cfg.DiscordGuildID, p, srv.Services).Attach()
		if err := discord.Open(); err != nil {
			log.Fatal("failed to open discord gateway", zap.Error(err))
		}
		defer func() { _ = discord.Close() }()
	}

	if _, err := srv.Scheduler.Initialize(ctx); err != nil {
		log.Error("failed to load recurring templates", zap.Error(err))
	}
	srv.Scheduler.Start()
	defer func() {
		select {
		case <-srv.Scheduler.Stop().Done():
		case <-time.After(30 * time.Second):
			log.Warn("scheduler jobs still running at shutdown")
		}
	}()

	reconcile, err := worker.Start(srv.Reconciler, cfg.ReconcileInterval)
	if err != nil {
		log.Fatal("failed to start reconcile worker", zap.Error(err))
	}
	defer reconcile.Stop()

	log.Info("http server listening", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
	if err := srv.ListenAndServe(ctx, ":"+cfg.Port); err != nil {
		log.Error("http server stopped", zap.Error(err))
	}
	log.Info("shutting down")
}
