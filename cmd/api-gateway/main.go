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
	"go.uber.org/zap"

	_ "github.com/noah-isme/worksmarter/api/swagger"
	"github.com/noah-isme/worksmarter/internal/handler"
	"github.com/noah-isme/worksmarter/internal/middleware"
	"github.com/noah-isme/worksmarter/internal/repository"
	"github.com/noah-isme/worksmarter/internal/service"
	"github.com/noah-isme/worksmarter/migrations"
	"github.com/noah-isme/worksmarter/pkg/ai"
	"github.com/noah-isme/worksmarter/pkg/cache"
	"github.com/noah-isme/worksmarter/pkg/config"
	"github.com/noah-isme/worksmarter/pkg/database"
	"github.com/noah-isme/worksmarter/pkg/jobs"
	"github.com/noah-isme/worksmarter/pkg/logger"
	corsmiddleware "github.com/noah-isme/worksmarter/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/worksmarter/pkg/middleware/requestid"
)

// @title WorkSmarter API
// @version 1.0.0
// @description Virtual classroom seating, table chat and AI discussion prompts
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(migrateCtx, db, migrations.FS, logr); err != nil {
		cancelMigrate()
		logr.Fatal("failed to apply migrations", zap.Error(err))
	}
	cancelMigrate()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = cache.Probe{Client: redisClient}
	}

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metricsSvc,
		cfg.Tables.CacheTTL,
		logr,
		redisClient != nil,
	)

	var provider ai.Provider = ai.NewStatic()
	if cfg.AI.APIKey != "" {
		provider = ai.NewOpenAI(ai.OpenAIConfig{
			BaseURL: cfg.AI.BaseURL,
			APIKey:  cfg.AI.APIKey,
			Model:   cfg.AI.Model,
			Timeout: cfg.AI.Timeout,
			Logger:  logr,
		})
	} else {
		logr.Warn("AI_API_KEY not set, serving canned prompts")
	}
	pool := jobs.NewPool("prompt-generation", jobs.PoolConfig{Workers: cfg.AI.GenerateConcurrent, Logger: logr})

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	tableRepo := repository.NewTableRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	promptRepo := repository.NewPromptRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	classroomSvc := service.NewClassroomService(classroomRepo, enrollmentRepo, validate, logr)
	tableSvc := service.NewTableService(tableRepo, enrollmentRepo, classroomRepo, enrollmentRepo, cacheSvc, metricsSvc, validate, logr, service.TableConfig{
		Capacity:     cfg.Tables.Capacity,
		CacheTTL:     cfg.Tables.CacheTTL,
		MessageLimit: cfg.Tables.MessagePageSize,
	})
	messageSvc := service.NewMessageService(messageRepo, tableRepo, classroomRepo, enrollmentRepo, cacheSvc, metricsSvc, validate, logr, cfg.Tables.MessagePageSize)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, classroomRepo, enrollmentRepo, provider, metricsSvc, validate, logr)
	promptSvc := service.NewPromptService(promptRepo, assignmentRepo, tableRepo, classroomRepo, enrollmentRepo, provider, pool, metricsSvc, validate, logr, service.PromptConfig{
		DefaultQuestions: cfg.AI.DefaultQuestions,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metricsSvc))

	health := handler.NewHealthHandler(metricsSvc, checks)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", health.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Classrooms:  handler.NewClassroomHandler(classroomSvc),
		Tables:      handler.NewTableHandler(tableSvc),
		Messages:    handler.NewMessageHandler(messageSvc),
		Assignments: handler.NewAssignmentHandler(assignmentSvc),
		Prompts:     handler.NewPromptHandler(promptSvc),
	}.Register(r.Group(cfg.APIPrefix), middleware.JWT(authSvc))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	case sig := <-shutdown:
		logr.Info("shutdown started", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logr.Error("graceful shutdown failed", zap.Error(err))
			_ = server.Close()
		}
	}
}
