package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"testops/internal/config"
	"testops/internal/handler"
	"testops/internal/logging"
	"testops/internal/metrics"
	"testops/internal/report"
	"testops/internal/repository"
	"testops/internal/service"
	"testops/internal/storage"
	"testops/internal/websocket"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config.toml"
	}

	if err := config.LoadDotEnv(); err != nil {
		logging.New(config.LogConfig{}, os.Stderr).Error("failed to load .env", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadConfigOrDefault(configPath)
	if err != nil {
		logging.New(config.LogConfig{}, os.Stderr).Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := repository.Open(cfg.Database, log)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	if err := repository.Migrate(db); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	store := repository.NewStore(db)

	// Initialize object storage
	stores, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Error("failed to initialize object storage", "type", cfg.Storage.Type, "error", err)
		os.Exit(1)
	}

	collector := metrics.New()
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	// Initialize services
	caseService := service.NewTestCaseService(store, stores.Attachments, cfg.Listing, log, collector)
	attachmentService := service.NewAttachmentService(store, stores.Attachments, log)
	suiteService := service.NewTestSuiteService(store, log)
	tagService := service.NewTagService(store.Tags, log)
	runService := service.NewTestRunService(store.Runs, stores.Results, cfg, hub, log, collector)
	reportService := service.NewReportService(store.Runs, stores.Results, stores.Reports,
		report.NewAllureCLI(cfg.Report.AllureBinary), cfg.Report, log, collector)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(log), collector.Middleware())

	// Enable CORS
	r.Use(corsMiddleware())

	// Register routes
	handler.NewTestCaseHandler(caseService, attachmentService, log).RegisterRoutes(r)
	handler.NewSuiteHandler(suiteService, log).RegisterRoutes(r)
	handler.NewTagHandler(tagService, log).RegisterRoutes(r)
	handler.NewRunHandler(runService, reportService, cfg.Upload, log).RegisterRoutes(r)
	handler.NewWebSocketHandler(hub, log).RegisterRoutes(r)

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "testops",
		})
	})
	r.GET("/metrics", gin.WrapH(collector.Handler()))

	// Start server
	srv := &http.Server{Addr: cfg.Server.GetAddr(), Handler: r}
	go func() {
		log.Info("starting testops service", "addr", srv.Addr, "database", cfg.Database.Type, "storage", cfg.Storage.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("testops service stopped")
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Location")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
