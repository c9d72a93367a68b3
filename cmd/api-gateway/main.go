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

	_ "github.com/noah-isme/vls-api/api/swagger"
	"github.com/noah-isme/vls-api/internal/handler"
	"github.com/noah-isme/vls-api/internal/middleware"
	"github.com/noah-isme/vls-api/internal/repository"
	"github.com/noah-isme/vls-api/internal/service"
	"github.com/noah-isme/vls-api/pkg/cache"
	"github.com/noah-isme/vls-api/pkg/config"
	"github.com/noah-isme/vls-api/pkg/database"
	"github.com/noah-isme/vls-api/pkg/export"
	"github.com/noah-isme/vls-api/pkg/jobs"
	"github.com/noah-isme/vls-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/vls-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/vls-api/pkg/middleware/requestid"
	"github.com/noah-isme/vls-api/pkg/storage"
)

// @title VLS API
// @version 1.0.0
// @description Video lesson distribution backend with quota-gated downloads
// @BasePath /api
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	mediaStore, err := storage.NewMediaStore(cfg.Media.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init media store", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Media.SignedURLSecret, cfg.Media.SignedURLTTL)

	schoolRepo := repository.NewSchoolRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	videoRepo := repository.NewVideoRepository(db)
	requestRepo := repository.NewDownloadRequestRepository(db)
	usageRepo := repository.NewUsageReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(schoolRepo, adminRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	quotaSvc := service.NewQuotaService(schoolRepo, metricsSvc, logr)
	reportSvc := service.NewReportService(usageRepo, export.NewCSVExporter(), export.NewPDFExporter(), metricsSvc, validate, logr)
	requestSvc := service.NewRequestService(requestRepo, videoRepo, adminRepo, reportSvc, metricsSvc, logr)
	downloadSvc := service.NewDownloadService(videoRepo, requestRepo, quotaSvc, reportSvc, mediaStore, signer, metricsSvc, logr)

	// The view queue and video service reference each other; the closure
	// resolves the service at dispatch time.
	var videoSvc *service.VideoService
	viewQueue := jobs.NewQueue("view-counter", func(ctx context.Context, job jobs.Job) error {
		return videoSvc.HandleViewIncrement(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.ViewCounter.Workers,
		BufferSize: cfg.ViewCounter.BufferSize,
		Logger:     logr,
	})
	videoSvc = service.NewVideoService(videoRepo, subjectRepo, usageRepo, adminRepo, mediaStore, viewQueue, metricsSvc, validate, logr)

	schoolSvc := service.NewSchoolService(schoolRepo, adminRepo, validate, logr, cfg.Quota.DefaultAllowance)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(schoolRepo, videoRepo, subjectRepo, requestRepo, usageRepo, cacheSvc, cfg.Dashboard.CacheTTL, logr)

	viewQueue.Start(ctx)
	defer viewQueue.Stop()

	videoHandler := handler.NewVideoHandler(videoSvc, downloadSvc, logr)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	handlers := handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Video:     videoHandler,
		Download:  handler.NewDownloadHandler(requestSvc, downloadSvc, videoHandler, logr),
		Report:    handler.NewReportHandler(reportSvc),
		School:    handler.NewSchoolHandler(schoolSvc, quotaSvc),
		Subject:   handler.NewSubjectHandler(subjectSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
		Metrics:   metricsHandler,
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, authSvc, adminRepo)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
