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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/Firas-eng-hub/Enit-Connect-sub000/api/swagger"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/handler"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/middleware"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/repository"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/scanner"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/service"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/cache"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/config"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/database"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/events"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/logger"
	corsmiddleware "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/middleware/requestid"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/storage"
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

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, listing cache disabled", "error", err)
		redisClient = nil
	}

	blobs, err := storage.New(cfg.Blob)
	if err != nil {
		logr.Sugar().Fatalw("failed to init blob store", "error", err)
	}

	var av scanner.Scanner
	if cfg.Scanner.Enabled() {
		clam := scanner.NewClamAV(cfg.Scanner.Endpoint)
		if err := clam.Ping(); err != nil {
			logr.Sugar().Warnw("clamav not reachable at startup, uploads will still quarantine", "error", err)
		}
		av = clam
	}

	publisher, err := events.NewPublisher(cfg.Events, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to event broker", "error", err)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	// Repositories.
	documentRepo := repository.NewDocumentRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	shareRepo := repository.NewShareRepository(db)
	grantRepo := repository.NewGrantRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsService := service.NewMetricsService()
	auditService := service.NewAuditService(auditRepo, logr)
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	scanService := service.NewScanService(documentRepo, blobs, av, publisher, metricsService, cfg.Scanner, logr)
	documentService := service.NewDocumentService(documentRepo, versionRepo, shareRepo, grantRepo,
		blobs, scanService, auditService, cacheService, publisher, cfg.Uploads, logr)
	versionService := service.NewVersionService(versionRepo, blobs, scanService, auditService,
		cacheService, publisher, cfg.Uploads, logr)
	shareService := service.NewShareService(shareRepo, grantRepo, documentRepo, auditService,
		publisher, cfg.Shares, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scanService.Start(ctx)
	defer scanService.Stop()

	// Handlers.
	documentHandler := handler.NewDocumentHandler(documentService, auditService)
	versionHandler := handler.NewVersionHandler(versionService)
	shareHandler := handler.NewShareHandler(shareService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))
	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Identity(cfg.JWT.Secret))
	{
		docs := api.Group("/documents")
		{
			docs.POST("", documentHandler.Upload)
			docs.GET("", documentHandler.List)
			docs.GET("/search", documentHandler.Search)
			docs.POST("/folders", documentHandler.CreateFolder)
			docs.POST("/move", documentHandler.Move)
			docs.POST("/bulk-delete", documentHandler.BulkDelete)
			docs.POST("/bulk-download", documentHandler.BulkDownload)

			docs.GET("/:id", documentHandler.Get)
			docs.PATCH("/:id", documentHandler.Update)
			docs.DELETE("/:id", documentHandler.Delete)
			docs.GET("/:id/download", documentHandler.Download)

			docs.PUT("/:id/content", versionHandler.Replace)
			docs.GET("/:id/versions", versionHandler.List)
			docs.POST("/:id/versions/:versionId/restore", versionHandler.Restore)

			docs.POST("/:id/shares", shareHandler.Create)
			docs.GET("/:id/shares", shareHandler.List)
			docs.POST("/:id/grants", shareHandler.Grant)
			docs.GET("/:id/grants", shareHandler.ListGrants)
			docs.DELETE("/:id/grants/:userId", shareHandler.RevokeGrant)

			admin := docs.Group("")
			admin.Use(middleware.RequireRoles(models.ActorAdmin))
			{
				admin.POST("/:id/release", documentHandler.ReleaseQuarantine)
				admin.GET("/:id/audit", documentHandler.AuditTrail)
			}
		}

		shares := api.Group("/shares")
		{
			shares.POST("/resolve", shareHandler.Resolve)
			shares.DELETE("/:shareId", shareHandler.Revoke)
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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
