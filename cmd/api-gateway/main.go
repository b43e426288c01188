package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/train-schedule-api/internal/handler"
	"github.com/noah-isme/train-schedule-api/internal/middleware"
	"github.com/noah-isme/train-schedule-api/internal/repository"
	"github.com/noah-isme/train-schedule-api/internal/service"
	"github.com/noah-isme/train-schedule-api/pkg/cache"
	"github.com/noah-isme/train-schedule-api/pkg/config"
	"github.com/noah-isme/train-schedule-api/pkg/database"
	"github.com/noah-isme/train-schedule-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/train-schedule-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/train-schedule-api/pkg/middleware/requestid"
)

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
	defer db.Close() //nolint:errcheck

	trainRepo := repository.NewTrainRepository(db)
	userRepo := repository.NewUserRepository(db)

	var cacheRepo *repository.CacheRepository
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, listing cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	})
	userSvc := service.NewUserService(userRepo, nil, logr)

	var trainSvc *service.TrainService
	if cacheRepo != nil {
		trainSvc = service.NewTrainService(trainRepo, cacheRepo, metricsSvc, nil, logr, cfg.Cache.ListTTL)
	} else {
		trainSvc = service.NewTrainService(trainRepo, nil, metricsSvc, nil, logr, cfg.Cache.ListTTL)
	}
	exportSvc := service.NewExportService(trainRepo, logr, cfg.Export.MaxRows)

	trainHandler := handler.NewTrainHandler(trainSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db.DB)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.GET("/auth/me", middleware.JWT(authSvc), authHandler.Me)

	trains := api.Group("/trains")
	trains.GET("", middleware.OptionalJWT(authSvc), trainHandler.List)
	if cfg.Export.Enabled {
		trains.GET("/export", middleware.JWT(authSvc), middleware.RequireAdmin(), exportHandler.Timetable)
	}
	trains.GET("/:id", middleware.OptionalJWT(authSvc), trainHandler.Get)
	trains.POST("", middleware.JWT(authSvc), middleware.RequireAdmin(), trainHandler.Create)
	trains.PATCH("/:id", middleware.JWT(authSvc), middleware.RequireAdmin(), trainHandler.Update)
	trains.DELETE("/:id", middleware.JWT(authSvc), middleware.RequireAdmin(), trainHandler.Delete)

	users := api.Group("/users", middleware.JWT(authSvc), middleware.RequireAdmin())
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.POST("", userHandler.Create)
	users.DELETE("/:id", userHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
