package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/tutor-match-api/api/swagger"
	"github.com/noah-isme/tutor-match-api/internal/handler"
	internalmiddleware "github.com/noah-isme/tutor-match-api/internal/middleware"
	"github.com/noah-isme/tutor-match-api/internal/repository"
	"github.com/noah-isme/tutor-match-api/internal/service"
	"github.com/noah-isme/tutor-match-api/pkg/cache"
	"github.com/noah-isme/tutor-match-api/pkg/config"
	"github.com/noah-isme/tutor-match-api/pkg/database"
	"github.com/noah-isme/tutor-match-api/pkg/lock"
	"github.com/noah-isme/tutor-match-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/tutor-match-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/tutor-match-api/pkg/middleware/requestid"
)

// @title Tutor Match API
// @version 1.0.0
// @description Tutor matching suggestions, manual assignments and scheduling conflict resolution.
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
	binding.EnableDecoderDisallowUnknownFields = true

	ctx := context.Background()
	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to migrate schema", zap.Error(err))
		}
	}

	locker, err := newLocker(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to init record locks", zap.Error(err))
	}

	suggestionRepo := repository.NewSuggestionRepository(db)
	conflictRepo := repository.NewConflictRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	txManager := repository.NewTxManager(db)

	gate := service.NewAuthorizationService()
	metrics := service.NewMetricsService()
	validate := validator.New()
	opts := []service.Option{
		service.WithAuthorizer(gate),
		service.WithLocker(locker, cfg.Lock.TTL),
		service.WithMetrics(metrics),
	}

	scorer := service.NewMatchScorer(cfg.Matching)
	detector := service.NewConflictDetector(cfg.Conflict)
	suggestionSvc := service.NewSuggestionService(suggestionRepo, auditRepo, directoryRepo, txManager, scorer, validate, logr, opts...)
	conflictSvc := service.NewConflictService(conflictRepo, auditRepo, directoryRepo, txManager, detector, validate, logr, opts...)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, auditRepo, suggestionRepo, conflictRepo, txManager, validate, logr, opts...)
	querySvc := service.NewQueryService(suggestionRepo, conflictRepo, assignmentRepo, auditRepo, logr, opts...)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	routes := handler.Routes{
		Suggestions: handler.NewSuggestionHandler(suggestionSvc, querySvc),
		Assignments: handler.NewAssignmentHandler(assignmentSvc, querySvc),
		Conflicts:   handler.NewConflictHandler(conflictSvc, querySvc),
		Audit:       handler.NewAuditHandler(querySvc),
	}
	metricsHandler := handler.NewMetricsHandler(metrics, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokens))
	routes.Register(api, internalmiddleware.RBAC(gate, service.ActionReadAuditLog))

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting",
		zap.String("addr", addr),
		zap.String("env", cfg.Env),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("lock_backend", cfg.Lock.Backend),
	)
	if err := r.Run(addr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, error) {
	if cfg.Lock.Backend != config.LockBackendRedis {
		return lock.NewLocalLocker(), nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	return lock.NewRedisLocker(client, cfg.Lock.Prefix), nil
}
