package main

import (
	"context"
	"errors"
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

	_ "github.com/childlang-lab/cdi-api/api/swagger"
	"github.com/childlang-lab/cdi-api/internal/handler"
	"github.com/childlang-lab/cdi-api/internal/middleware"
	"github.com/childlang-lab/cdi-api/internal/models"
	"github.com/childlang-lab/cdi-api/internal/repository"
	"github.com/childlang-lab/cdi-api/internal/service"
	"github.com/childlang-lab/cdi-api/pkg/cache"
	"github.com/childlang-lab/cdi-api/pkg/config"
	"github.com/childlang-lab/cdi-api/pkg/database"
	"github.com/childlang-lab/cdi-api/pkg/jobs"
	"github.com/childlang-lab/cdi-api/pkg/logger"
	corsmiddleware "github.com/childlang-lab/cdi-api/pkg/middleware/cors"
	reqidmiddleware "github.com/childlang-lab/cdi-api/pkg/middleware/requestid"
	"github.com/childlang-lab/cdi-api/pkg/storage"
)

// @title CDI Lab API
// @version 1.0.0
// @description Research data management for CDI checklist snapshots
// @BasePath /api/v1
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
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	formatFiles, err := storage.NewLocalStorage(cfg.Formats.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare formats directory", "error", err)
	}
	exportFiles, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare exports directory", "error", err)
	}

	metricsSvc := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, 10*time.Minute, logr, true)

	validate := validator.New()
	formatRepo := repository.NewFormatRepository(db, formatFiles)
	formatSvc := service.NewFormatService(formatRepo, cacheSvc, validate, cfg.Formats.DefaultFormat, logr)

	snapshotRepo := repository.NewSnapshotRepository(db, logr)
	confirmations := repository.NewConfirmationStore(redisClient)
	ingestSvc := service.NewIngestService(formatSvc, snapshotRepo, logr)
	querySvc := service.NewQueryService(snapshotRepo, confirmations, logr)
	recalcSvc := service.NewRecalcService(snapshotRepo, formatSvc, logr)
	reportSvc := service.NewReportService(snapshotRepo, formatSvc, logr)

	exportRepo := repository.NewExportJobRepository(db)
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(exportRepo, nil, querySvc, reportSvc, exportFiles, signer, metricsSvc, service.ExportConfig{
		APIPrefix:       cfg.APIPrefix,
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	}, logr)
	exportQueue := jobs.NewQueue("exports", exportSvc.ProcessJob, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportSvc.SetQueue(exportQueue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportQueue.Start(ctx)
	defer exportQueue.Stop()
	exportSvc.RecoverPendingJobs(ctx)
	exportSvc.StartCleanup(ctx)

	ingestHandler := handler.NewIngestHandler(ingestSvc, metricsSvc)
	snapshotHandler := handler.NewSnapshotHandler(querySvc, recalcSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	formatHandler := handler.NewFormatHandler(formatSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Ingest.MaxUploadBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Download links authenticate via their signed token.
	api.GET("/exports/download/:token", exportHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(cfg.JWT.Secret))
	{
		protected.POST("/snapshots/upload", ingestHandler.Upload)
		protected.POST("/snapshots/upload/validate", ingestHandler.Validate)
		protected.POST("/snapshots/search", snapshotHandler.Search)
		protected.POST("/snapshots/delete/confirm", snapshotHandler.ConfirmDelete)
		protected.POST("/snapshots/delete", snapshotHandler.Delete)
		protected.POST("/snapshots/restore", snapshotHandler.Restore)
		protected.PUT("/children/:childId", snapshotHandler.UpdateChild)

		protected.POST("/exports", exportHandler.Create)
		protected.GET("/exports/:id", exportHandler.Status)

		protected.GET("/formats/cdi", formatHandler.ListCDI)
		protected.GET("/formats/cdi/:name", formatHandler.GetCDI)
		protected.GET("/formats/presentation", formatHandler.ListPresentation)
		protected.GET("/formats/presentation/:name", formatHandler.GetPresentation)
		protected.GET("/formats/percentile", formatHandler.ListPercentile)
		protected.GET("/formats/percentile/:name", formatHandler.GetPercentile)

		// Format mutations reshape every lab member's uploads, so they
		// stay admin-only.
		admin := protected.Group("")
		admin.Use(middleware.RequireRoles(models.RoleAdmin))
		{
			admin.PUT("/formats/cdi/:name", formatHandler.SaveCDI)
			admin.DELETE("/formats/cdi/:name", formatHandler.DeleteCDI)
			admin.PUT("/formats/presentation/:name", formatHandler.SavePresentation)
			admin.DELETE("/formats/presentation/:name", formatHandler.DeletePresentation)
			admin.PUT("/formats/percentile/:name", formatHandler.SavePercentile)
			admin.DELETE("/formats/percentile/:name", formatHandler.DeletePercentile)
		}

		protected.GET("/status", metricsHandler.Status)
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

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
