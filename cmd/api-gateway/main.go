package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/uni-timetable-api/api/swagger"
	"github.com/noah-isme/uni-timetable-api/internal/handler"
	"github.com/noah-isme/uni-timetable-api/internal/middleware"
	"github.com/noah-isme/uni-timetable-api/internal/repository"
	"github.com/noah-isme/uni-timetable-api/internal/search"
	"github.com/noah-isme/uni-timetable-api/internal/service"
	"github.com/noah-isme/uni-timetable-api/pkg/cache"
	"github.com/noah-isme/uni-timetable-api/pkg/config"
	"github.com/noah-isme/uni-timetable-api/pkg/database"
	"github.com/noah-isme/uni-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-timetable-api/pkg/middleware/requestid"
)

// @title University Timetable API
// @version 1.0.0
// @description Course catalogue ingestion and timetable building
// @BasePath /
// @schemes http

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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	courseRepo := repository.NewCourseRepository(db)
	sectionRepo := repository.NewSectionRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Courses.CacheTTL, logr, cfg.Courses.CacheEnabled && redisClient != nil)

	var syncer *search.Syncer
	if cfg.Search.Enabled {
		client := search.NewClient(cfg.Search.BaseURL, cfg.Search.Timeout, logr)
		syncer = search.NewSyncer(client, search.SyncerConfig{
			Workers: cfg.Search.Workers,
			Retries: cfg.Search.Retries,
			Logger:  logr,
		})
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	syncer.Start(runCtx)
	defer syncer.Stop()

	validate := validator.New()

	authSvc := service.NewAuthService(cfg.JWT.Secret, logr)
	courseSvc := service.NewCourseService(courseRepo, sectionRepo, cacheSvc, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, sectionRepo, courseRepo, db, syncer, validate, logr)
	exportSvc := service.NewExportService()

	courseHandler := handler.NewCourseHandler(courseSvc, exportSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/snapshot", metricsHandler.Snapshot)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	courses := api.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/export", courseHandler.Export)
		courses.GET("/:id", courseHandler.Get)
	}

	timetables := api.Group("/timetables")
	{
		timetables.GET("", timetableHandler.List)
		timetables.GET("/:id", middleware.OptionalJWT(authSvc), timetableHandler.Get)
		timetables.GET("/:id/export", middleware.OptionalJWT(authSvc), timetableHandler.Export)

		authed := timetables.Group("", middleware.JWT(authSvc))
		{
			authed.POST("", timetableHandler.Create)
			authed.PUT("/:id", timetableHandler.Update)
			authed.DELETE("/:id", timetableHandler.Delete)
			authed.POST("/:id/sections", timetableHandler.AddSection)
			authed.DELETE("/:id/sections/:sectionId", timetableHandler.RemoveSection)
		}
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
