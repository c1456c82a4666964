package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"anoa.com/challengebot/internal/bot"
	"anoa.com/challengebot/internal/config"
	"anoa.com/challengebot/internal/middleware"
	"anoa.com/challengebot/internal/platform"
	"anoa.com/challengebot/internal/scheduler"
	"anoa.com/challengebot/internal/worker"
	"anoa.com/challengebot/pkg/apperror"
	"anoa.com/challengebot/pkg/cache"

	badgeHttp "anoa.com/challengebot/internal/modules/badge/delivery/http"
	badgeRepo "anoa.com/challengebot/internal/modules/badge/repository"
	badgeService "anoa.com/challengebot/internal/modules/badge/service"

	challengeHttp "anoa.com/challengebot/internal/modules/challenge/delivery/http"
	challengeRepo "anoa.com/challengebot/internal/modules/challenge/repository"
	challengeService "anoa.com/challengebot/internal/modules/challenge/service"

	pointsHttp "anoa.com/challengebot/internal/modules/points/delivery/http"
	pointsRepo "anoa.com/challengebot/internal/modules/points/repository"
	pointsService "anoa.com/challengebot/internal/modules/points/service"

	searchHttp "anoa.com/challengebot/internal/modules/search/delivery/http"
	searchService "anoa.com/challengebot/internal/modules/search/service"

	settingsHttp "anoa.com/challengebot/internal/modules/settings/delivery/http"
	settingsRepo "anoa.com/challengebot/internal/modules/settings/repository"
	settingsService "anoa.com/challengebot/internal/modules/settings/service"

	submissionHttp "anoa.com/challengebot/internal/modules/submission/delivery/http"
	submissionRepo "anoa.com/challengebot/internal/modules/submission/repository"
	submissionService "anoa.com/challengebot/internal/modules/submission/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meilisearch/meilisearch-go"
	"gorm.io/gorm"
)

type Server struct {
	engine *gin.Engine

	// Bot services and background jobs are started by the caller.
	Services   bot.Services
	Scheduler  *scheduler.Scheduler
	Reconciler *worker.Reconciler
}

func NewServer(cfg *config.Config, db *gorm.DB, cacheClient *cache.Cache, meili meilisearch.ServiceManager, p platform.Platform) *Server {
	settingsRepository := settingsRepo.NewSettingsRepository(db)
	settingsSvc := settingsService.NewSettingsService(settingsRepository)
	settingsHandler := settingsHttp.NewSettingsHandler(settingsSvc)

	badgeRepository := badgeRepo.NewBadgeRepository(db)
	badgeSvc := badgeService.NewBadgeService(badgeRepository, p)
	badgeHandler := badgeHttp.NewBadgeHandler(badgeSvc)

	pointsRepository := pointsRepo.NewPointsRepository(db)
	pointsSvc := pointsService.NewPointsService(pointsRepository, settingsSvc, badgeSvc, cacheClient, cfg.LeaderboardCacheTTL)
	pointsHandler := pointsHttp.NewPointsHandler(pointsSvc)
	feedHandler := pointsHttp.NewFeedHandler(cacheClient, cfg.AllowedOrigins)

	searchSvc := searchService.NewSearchService(meili)
	searchHandler := searchHttp.NewSearchHandler(searchSvc)

	challengeRepository := challengeRepo.NewChallengeRepository(db)
	announcer := challengeService.NewAnnouncer(challengeRepository, p)
	sched := scheduler.New(announcer, challengeRepository)
	challengeSvc := challengeService.NewChallengeService(challengeRepository, pointsSvc, p, announcer, sched, searchSvc)
	challengeHandler := challengeHttp.NewChallengeHandler(challengeSvc)

	submissionRepository := submissionRepo.NewSubmissionRepository(db)
	submissionSvc := submissionService.NewSubmissionService(submissionRepository, challengeRepository, settingsSvc, pointsSvc, p, searchSvc)
	submissionHandler := submissionHttp.NewSubmissionHandler(submissionSvc)

	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger("/api/status"))

	auth := middleware.NewAuthMiddleware(p, cfg.JWTSecret)

	// admin checks resolve the guild from the record a route addresses
	byGuild := auth.RequireAdmin(middleware.GuildParam)
	byChallenge := auth.RequireAdmin(func(c *gin.Context) (string, error) {
		id, err := paramID(c)
		if err != nil {
			return "", err
		}
		ch, err := challengeRepository.FindByID(c.Request.Context(), id)
		if err != nil {
			return "", err
		}
		return ch.GuildID, nil
	})
	bySubmission := auth.RequireAdmin(func(c *gin.Context) (string, error) {
		id, err := paramID(c)
		if err != nil {
			return "", err
		}
		sub, err := submissionRepository.FindByID(c.Request.Context(), id)
		if err != nil {
			return "", err
		}
		return sub.GuildID, nil
	})

	api := router.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "search": searchSvc.Enabled(), "cache": cacheClient.Enabled()})
	})

	protected := api.Group("")
	protected.Use(auth.RequireAuth())
	{
		guild := protected.Group("/guilds/:guild_id")
		{
			guild.GET("/settings", settingsHandler.GetSettings)
			guild.PATCH("/settings", byGuild, settingsHandler.UpdateSettings)

			guild.GET("/leaderboard", pointsHandler.GetLeaderboard)
			guild.GET("/users/:user_id/profile", pointsHandler.GetProfile)
			guild.GET("/users/:user_id/history", pointsHandler.GetHistory)
			guild.POST("/users/:user_id/recalculate", byGuild, pointsHandler.Recalculate)
			guild.POST("/points", byGuild, pointsHandler.AdjustPoints)
			guild.GET("/feed/ws", feedHandler.HandleWebSocket)

			guild.GET("/badges", badgeHandler.ListBadges)
			guild.POST("/badges", byGuild, badgeHandler.CreateBadge)
			guild.DELETE("/badges/:id", byGuild, badgeHandler.DeleteBadge)

			guild.GET("/challenges", challengeHandler.ListChallenges)
			guild.POST("/challenges", byGuild, challengeHandler.CreateChallenge)

			guild.GET("/submissions/search", searchHandler.SearchSubmissions)
		}

		protected.GET("/challenges/:id", challengeHandler.GetChallenge)
		protected.GET("/challenges/:id/submissions", submissionHandler.ListByChallenge)
		protected.POST("/challenges/:id/close", byChallenge, challengeHandler.CloseChallenge)
		protected.POST("/challenges/:id/winner", byChallenge, challengeHandler.PickWinner)
		protected.DELETE("/challenges/:id", byChallenge, challengeHandler.DeleteChallenge)
		protected.DELETE("/templates/:id", byChallenge, challengeHandler.CancelTemplate)

		protected.GET("/submissions/:id", submissionHandler.GetSubmission)
		protected.POST("/submissions/:id/vote", submissionHandler.Vote)
		protected.PATCH("/submissions/:id", submissionHandler.EditSubmission)
		protected.DELETE("/submissions/:id", bySubmission, submissionHandler.DeleteSubmission)
	}

	return &Server{
		engine: router,
		Services: bot.Services{
			Points:      pointsSvc,
			Challenges:  challengeSvc,
			Submissions: submissionSvc,
			Settings:    settingsSvc,
			Badges:      badgeSvc,
		},
		Scheduler:  sched,
		Reconciler: worker.NewReconciler(pointsRepository),
	}
}

func paramID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", c.Param("id"), apperror.ErrInvalidInput)
	}
	return uint(id), nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until ctx is cancelled, then drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupCORS(router *gin.Engine, origins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
