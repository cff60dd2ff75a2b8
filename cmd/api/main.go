package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/dotask-io/dotask-api/api/swagger"
	"github.com/dotask-io/dotask-api/internal/handler"
	"github.com/dotask-io/dotask-api/internal/middleware"
	"github.com/dotask-io/dotask-api/internal/repository"
	"github.com/dotask-io/dotask-api/internal/service"
	"github.com/dotask-io/dotask-api/pkg/cache"
	"github.com/dotask-io/dotask-api/pkg/config"
	"github.com/dotask-io/dotask-api/pkg/database"
	"github.com/dotask-io/dotask-api/pkg/keys"
	"github.com/dotask-io/dotask-api/pkg/logger"
	"github.com/dotask-io/dotask-api/pkg/mailer"
	corsmiddleware "github.com/dotask-io/dotask-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dotask-io/dotask-api/pkg/middleware/requestid"
)

// @title DoTask API
// @version 1.0.0
// @description Multi-tenant task and project management API
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	keyPair, err := keys.Load(cfg.Token.PrivateKeyPath, cfg.Token.PublicKeyPath)
	if err != nil {
		logr.Sugar().Fatalw("failed to load signing keys", "error", err)
	}

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	revokedRepo := repository.NewRevokedTokenRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	projectRepo := repository.NewProjectRepository(db)

	metricsSvc := service.NewMetricsService()

	revokedSvc := service.NewRevokedTokenService(revokedRepo, logr)
	revokedSvc.StartSweeper(ctx, cfg.Token.RevokedSweepInterval)

	codec := service.NewJWTService(keyPair, cfg.Token, logr, revokedSvc.ValidateClaims)
	tokenSvc := service.NewTokenService(userRepo, codec, revokedSvc, metricsSvc, validate, logr)

	smtp := mailer.NewSMTPMailer(cfg.Mail)
	emailSvc := service.NewEmailService(smtp, cfg.Mail.WorkerCount, cfg.Mail.MaxRetries, logr)
	emailSvc.Start(ctx)
	defer emailSvc.Stop()

	userSvc := service.NewUserService(userRepo, emailSvc, cfg.Token, validate, logr)

	var listCache service.ListCache
	if cacheRepo != nil {
		listCache = cacheRepo
	}
	taskSvc := service.NewTaskService(taskRepo, projectRepo, listCache, validate, logr)
	projectSvc := service.NewProjectService(projectRepo, listCache, cfg.Cache.TTL, metricsSvc, validate, logr)
	exportSvc := service.NewExportService(taskRepo, logr)

	tokenHandler := handler.NewTokenHandler(tokenSvc)
	userHandler := handler.NewUserHandler(userSvc)
	taskHandler := handler.NewTaskHandler(taskSvc, exportSvc)
	projectHandler := handler.NewProjectHandler(projectSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Authenticate(codec))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/token", tokenHandler.Request)
		api.POST("/token/refresh", tokenHandler.Refresh)
		api.POST("/token/revoke", tokenHandler.Revoke)

		api.POST("/users", userHandler.Register)
		api.POST("/users/send-action-email", userHandler.SendActionEmail)
		api.POST("/users/email/verify", userHandler.VerifyEmail)
		api.POST("/users/password/reset", userHandler.ResetPassword)

		private := api.Group("", middleware.RequireUser())
		{
			private.GET("/users/me", userHandler.Me)
			private.PUT("/users/me", userHandler.UpdateMe)
			private.DELETE("/users/me", userHandler.DeleteMe)

			private.GET("/tasks", taskHandler.List)
			private.POST("/tasks", taskHandler.Create)
			if cfg.Exports.Enabled {
				private.GET("/tasks/export", taskHandler.Export)
			}
			private.GET("/tasks/:id", taskHandler.Get)
			private.PUT("/tasks/:id", taskHandler.Update)
			private.DELETE("/tasks/:id", taskHandler.Delete)

			private.GET("/projects", projectHandler.List)
			private.POST("/projects", projectHandler.Create)
			private.GET("/projects/:id", projectHandler.Get)
			private.PUT("/projects/:id", projectHandler.Update)
			private.DELETE("/projects/:id", projectHandler.Delete)
			private.GET("/projects/:id/tasks", taskHandler.ListByProject)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
