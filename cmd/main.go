package main

import (
	"net/http"

	"experts-service/internal/audit"
	"experts-service/internal/handler"
	"experts-service/internal/middleware"
	"experts-service/internal/retention"
	"experts-service/internal/store"
	"experts-service/pkg/config"
	"experts-service/pkg/database"
	"experts-service/pkg/logger"
	"experts-service/pkg/ratelimit"
	"experts-service/pkg/tokenutil"
	"experts-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting experts service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	db, err := database.New(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Initialize token utility
	tokenutil.Initialize(tokenutil.Config{
		SigningKey:        cfg.Token.SigningKey,
		MasterTTLHours:    cfg.Token.MasterTTLHours,
		WorkspaceTTLHours: cfg.Token.WorkspaceTTLHours,
		ExpertTTLHours:    cfg.Token.ExpertTTLHours,
	})

	// Wire the components
	st := store.New(db)
	limiter := ratelimit.New(db, ratelimit.Policy{
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		Window:      cfg.RateLimit.Window,
		Block:       cfg.RateLimit.Block,
	})
	auditLog := audit.NewLogger(db, log)
	defer auditLog.Close()
	sweeper := retention.NewSweeper(st, log, cfg.Retention.Years)

	// Schedule the retention sweep
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Retention.CronSchedule, func() {
		sweeper.Run()
		prometheus.RecordRetentionSweep()
	}); err != nil {
		log.Fatal("Failed to schedule retention sweep", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	masterHandler := handler.NewMasterHandler(st, limiter, auditLog, sweeper, cfg)
	workspaceHandler := handler.NewWorkspaceHandler(st, limiter, auditLog)
	expertHandler := handler.NewExpertHandler(st, limiter, auditLog)
	requestHandler := handler.NewRequestHandler(st, auditLog)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{cfg.Server.CORSOrigin},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{
			echo.HeaderContentType,
			middleware.HeaderMasterToken,
			middleware.HeaderWorkspaceToken,
			middleware.HeaderExpertToken,
		},
	}))
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Public workspace application
	e.POST("/api/workspace-requests", requestHandler.Create)

	// Master surface
	master := e.Group("/api/master")
	master.POST("/auth", masterHandler.Auth)

	masterAuthed := master.Group("", middleware.RequireMaster())
	masterAuthed.GET("/verify", masterHandler.Verify)
	masterAuthed.GET("/workspaces", masterHandler.ListWorkspaces)
	masterAuthed.POST("/workspaces", masterHandler.CreateWorkspace)
	masterAuthed.PUT("/workspaces/:id", masterHandler.UpdateWorkspace)
	masterAuthed.DELETE("/workspaces/:id", masterHandler.DeleteWorkspace)
	masterAuthed.GET("/workspace-requests", masterHandler.ListRequests)
	masterAuthed.POST("/workspace-requests/:id/approve", masterHandler.ApproveRequest)
	masterAuthed.POST("/workspace-requests/:id/reject", masterHandler.RejectRequest)
	masterAuthed.DELETE("/workspace-requests/:id", masterHandler.DeleteRequest)
	masterAuthed.POST("/maintenance/retention-run", masterHandler.RunRetention)

	// Workspace surface - everything below resolves :slug first
	ws := e.Group("/api/:slug", middleware.ResolveWorkspace(st))
	ws.GET("", workspaceHandler.Info)
	ws.POST("/auth", workspaceHandler.Auth)
	ws.GET("/public-settings", workspaceHandler.PublicSettings)

	wsAuthed := ws.Group("", middleware.RequireWorkspace())
	wsAuthed.GET("/verify", workspaceHandler.Verify)
	wsAuthed.GET("/settings", workspaceHandler.Settings)
	wsAuthed.PUT("/settings", workspaceHandler.UpdateSettings)
	wsAuthed.GET("/experts", expertHandler.List)
	wsAuthed.POST("/experts", expertHandler.Upsert)
	wsAuthed.DELETE("/experts/:id", expertHandler.Delete)
	wsAuthed.POST("/experts/:id/slots", expertHandler.AddSlot)
	wsAuthed.DELETE("/experts/:id/slots/:slotId", expertHandler.DeleteSlot)
	wsAuthed.POST("/experts/:id/start-polling", expertHandler.StartPolling)
	wsAuthed.POST("/experts/:id/confirm", expertHandler.Confirm)
	wsAuthed.POST("/experts/:id/reset-confirmation", expertHandler.ResetConfirmation)

	// Public expert routes - form pages for voters and experts
	ws.GET("/experts/:id", expertHandler.Get)
	ws.POST("/experts/:id/auth", expertHandler.Auth)
	ws.POST("/experts/:id/verify-password", expertHandler.VerifyPassword)
	ws.POST("/experts/:id/vote", expertHandler.Vote)

	// Expert-token routes - the expert acts on their own schedule
	expertAuthed := ws.Group("", middleware.RequireExpert())
	expertAuthed.POST("/experts/:id/select-slot", expertHandler.SelectSlot)
	expertAuthed.POST("/experts/:id/no-available-schedule", expertHandler.NoAvailableSchedule)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
