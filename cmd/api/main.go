package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "estimator/api/swagger" // swagger docs
	"estimator/internal/config"
	"estimator/internal/database"
	"estimator/internal/handler"
	"estimator/internal/logger"
	"estimator/internal/middleware"
	"estimator/internal/report"
	"estimator/internal/repository"
	"estimator/internal/service"
	"estimator/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Works Estimation API
// @version         1.0
// @description     Estimates, rate analysis and multi-level approval for public works.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	cfg := config.LoadEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Logger init failed: %v", err)
	}
	defer appLogger.Sync() //nolint:errcheck

	db, err := database.NewConnection(cfg.Postgres, appLogger)
	if err != nil {
		appLogger.Fatal("database connection failed", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		appLogger.Fatal("database handle unavailable", zap.Error(err))
	}
	appLogger.Info("connected to PostgreSQL", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.DBName))

	wsHub := websocket.NewHub(appLogger, cfg.Server.CORSOrigins)
	go wsHub.Run()

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	workRepo := repository.NewWorkRepository(db)
	itemRepo := repository.NewItemRepository(db)
	rateRepo := repository.NewRateRepository(db)
	measurementRepo := repository.NewMeasurementRepository(db)
	analysisRepo := repository.NewRateAnalysisRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	reports := report.NewStore(sqlx.NewDb(sqlDB, "postgres"))

	recomputer := service.NewRecomputer(itemRepo, rateRepo, measurementRepo, workRepo, txManager, appLogger)
	estimateService := service.NewEstimateService(workRepo, itemRepo, rateRepo, workflowRepo, auditRepo, txManager, recomputer, appLogger)
	measurementService := service.NewMeasurementService(measurementRepo, itemRepo, rateRepo, workflowRepo, auditRepo, txManager, recomputer, appLogger)
	analysisService := service.NewRateAnalysisService(analysisRepo, rateRepo, itemRepo, workflowRepo, auditRepo, txManager, recomputer, appLogger)
	approvalService := service.NewApprovalService(workRepo, workflowRepo, auditRepo, txManager, wsHub, appLogger)
	auditService := service.NewAuditService(auditRepo)

	auth := middleware.NewAuthenticator([]byte(cfg.JWT.Secret), middleware.NewCapabilityChecker(cfg.Approval.OverrideRoles))

	if !cfg.Logger.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(appLogger), gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, auth.Secret())
	})

	api := router.Group("/api", auth.RequireAuth())
	handler.NewWorkHandler(estimateService, reports).RegisterRoutes(api)
	handler.NewItemHandler(estimateService, measurementService).RegisterRoutes(api)
	handler.NewRateAnalysisHandler(analysisService).RegisterRoutes(api)
	handler.NewApprovalHandler(approvalService).RegisterRoutes(api)
	handler.NewAuditHandler(auditService).RegisterRoutes(api)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("forced shutdown", zap.Error(err))
	}
	wsHub.Stop()
	if err := sqlDB.Close(); err != nil {
		appLogger.Warn("closing database", zap.Error(err))
	}
	appLogger.Info("server stopped")
}
