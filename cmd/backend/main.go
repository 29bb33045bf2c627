package main

import (
	"NYCU-SDC/survey-wizard-backend/internal"
	"NYCU-SDC/survey-wizard-backend/internal/apiclient"
	"NYCU-SDC/survey-wizard-backend/internal/config"
	"NYCU-SDC/survey-wizard-backend/internal/cors"
	"NYCU-SDC/survey-wizard-backend/internal/jwt"
	"NYCU-SDC/survey-wizard-backend/internal/kv"
	"NYCU-SDC/survey-wizard-backend/internal/survey/catalog"
	"NYCU-SDC/survey-wizard-backend/internal/survey/eligibility"
	"NYCU-SDC/survey-wizard-backend/internal/survey/history"
	"NYCU-SDC/survey-wizard-backend/internal/survey/localstate"
	"NYCU-SDC/survey-wizard-backend/internal/survey/progress"
	"NYCU-SDC/survey-wizard-backend/internal/survey/shared"
	"NYCU-SDC/survey-wizard-backend/internal/survey/submit"
	"NYCU-SDC/survey-wizard-backend/internal/survey/wizard"
	"NYCU-SDC/survey-wizard-backend/internal/trace"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	databaseutil "github.com/NYCU-SDC/summer/pkg/database"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.6.1"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/natefinch/lumberjack.v2"
)

var AppName = "no-app-name"

var Version = "no-version"

var BuildTime = "no-build-time"

var CommitHash = "no-commit-hash"

var Environment = "no-env"

func main() {
	AppName = os.Getenv("APP_NAME")
	if AppName == "" {
		AppName = "survey-wizard-backend"
	}

	if BuildTime == "no-build-time" {
		now := time.Now()
		BuildTime = "not provided (now: " + now.Format(time.RFC3339) + ")"
	}

	Environment = os.Getenv("ENV")
	if Environment == "" {
		Environment = "no-env"
	}

	appMetadata := []zap.Field{
		zap.String("app_name", AppName),
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit_hash", CommitHash),
		zap.String("environment", Environment),
	}

	cfg, cfgLog := config.Load()
	err := cfg.Validate()
	if err != nil {
		switch {
		case errors.Is(err, config.ErrDatabaseURLRequired):
			title := "Database URL is required"
			message := "The postgres kv backend is selected. Set the DATABASE_URL environment variable or the database_url key in the config file."
			log.Fatal(EarlyApplicationFailed(title, message))
		case errors.Is(err, config.ErrRedisURLRequired):
			title := "Redis URL is required"
			message := "The redis kv backend is selected. Set the REDIS_URL environment variable or the redis_url key in the config file."
			log.Fatal(EarlyApplicationFailed(title, message))
		case errors.Is(err, config.ErrCatalogURLRequired), errors.Is(err, config.ErrSubmissionURLRequired):
			title := "Survey API URL is required"
			message := "Set CATALOG_API_URL and SUBMISSION_API_URL to the base URLs of the question catalog and submission APIs."
			log.Fatal(EarlyApplicationFailed(title, message))
		default:
			log.Fatalf("Failed to validate config: %v, exiting...", err)
		}
	}

	logger, err := initLogger(&cfg, appMetadata)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v, exiting...", err)
	}

	cfgLog.FlushToZap(logger)

	if cfg.Dev {
		logger.Warn("Running in development mode, make sure to disable it in production")
	}

	if cfg.Secret == config.DefaultSecret && !cfg.Debug {
		logger.Warn("Default secret detected in production environment, replace it with a secure random string")
		cfg.Secret = uuid.New().String()
	}

	logger.Info("Starting application...")

	shutdown, err := initOpenTelemetry(AppName, Version, BuildTime, CommitHash, Environment, cfg.OtelCollectorUrl)
	if err != nil {
		logger.Fatal("Failed to initialize OpenTelemetry", zap.Error(err))
	}

	backend, closeBackend, err := initKVBackend(&cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize kv backend", zap.Error(err), zap.String("backend", cfg.KVBackend))
	}
	defer closeBackend()

	loc := cfg.Location()
	shared.SetReferenceLocation(loc)

	validator := internal.NewValidator()
	problemWriter := internal.NewProblemWriter()

	// ============================================
	// Service
	// ============================================

	sessionStore := kv.NewSessionScoped(backend)

	catalogAPI := apiclient.New(cfg.CatalogAPIURL, apiclient.WithTimeout(cfg.HTTPTimeout))
	submissionAPI := apiclient.New(cfg.SubmissionAPIURL, apiclient.WithTimeout(cfg.HTTPTimeout))

	jwtService := jwt.NewService(logger, cfg.Secret, cfg.SessionExpiration)
	catalogClient := catalog.NewClient(logger, catalogAPI)
	historyClient := history.NewClient(logger, submissionAPI)
	localStore := localstate.NewStore(sessionStore)
	progressStore := progress.NewStore(logger, sessionStore, catalogClient)
	eligibilityService := eligibility.NewService(logger, historyClient, loc)
	wizardService := wizard.NewService(logger, catalogClient, progressStore, eligibilityService)
	submitService := submit.NewService(logger, progressStore, localStore, catalogClient, historyClient, eligibilityService, loc)

	// ============================================
	// Handler
	// ============================================

	catalogHandler := catalog.NewHandler(logger, problemWriter, catalogClient)
	selectionHandler := localstate.NewHandler(logger, validator, problemWriter, localStore)
	eligibilityHandler := eligibility.NewHandler(logger, problemWriter, eligibilityService)
	progressHandler := progress.NewHandler(logger, validator, problemWriter, progressStore, localStore, catalogClient, eligibilityService)
	wizardHandler := wizard.NewHandler(logger, problemWriter, wizardService)
	submitHandler := submit.NewHandler(logger, problemWriter, submitService)

	// ============================================
	// Middleware
	// ============================================

	traceMiddleware := trace.NewMiddleware(logger, cfg.Debug)
	corsMiddleware := cors.NewMiddleware(logger, cfg.AllowOrigins)
	sessionMiddleware := jwt.NewMiddleware(logger, problemWriter, jwtService, cfg.SecureCookie)

	// Basic Middleware (Tracing and Recovery)
	basicMiddleware := middleware.NewSet(traceMiddleware.RecoverMiddleware)
	basicMiddleware = basicMiddleware.Append(traceMiddleware.TraceMiddleware)

	// Session Middleware
	sessionBasicMiddleware := basicMiddleware.Append(sessionMiddleware.SessionMiddleware)

	// HTTP Server
	mux := http.NewServeMux()

	// Health check route
	mux.Handle("GET /api/healthz", basicMiddleware.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("OK"))
		if err != nil {
			logger.Error("Failed to write response", zap.Error(err))
		}
	}))

	// ============================================
	// Catalog and eligibility routes
	// ============================================

	mux.Handle("GET /api/sections", basicMiddleware.HandlerFunc(catalogHandler.ListSectionsHandler))
	mux.Handle("GET /api/sections/{sectionId}/questions", basicMiddleware.HandlerFunc(catalogHandler.ListQuestionsHandler))
	mux.Handle("GET /api/eligibility/{employeeId}", basicMiddleware.HandlerFunc(eligibilityHandler.GetHandler))

	// ============================================
	// Session-scoped routes
	// ============================================

	// Entry page selection
	// ----------------------
	mux.Handle("GET /api/selection", sessionBasicMiddleware.HandlerFunc(selectionHandler.GetSelectionHandler))
	mux.Handle("PUT /api/selection", sessionBasicMiddleware.HandlerFunc(selectionHandler.PutSelectionHandler))
	mux.Handle("DELETE /api/selection", sessionBasicMiddleware.HandlerFunc(selectionHandler.DeleteSelectionHandler))

	// -- Legacy per-section caches
	mux.Handle("GET /api/legacy/sections/{sectionId}", sessionBasicMiddleware.HandlerFunc(selectionHandler.GetLegacySectionHandler))
	mux.Handle("PUT /api/legacy/sections/{sectionId}", sessionBasicMiddleware.HandlerFunc(selectionHandler.PutLegacySectionHandler))

	// Survey progress
	// ----------------------
	mux.Handle("GET /api/progress", sessionBasicMiddleware.HandlerFunc(progressHandler.GetHandler))
	mux.Handle("POST /api/progress", sessionBasicMiddleware.HandlerFunc(progressHandler.StartHandler))
	mux.Handle("DELETE /api/progress", sessionBasicMiddleware.HandlerFunc(progressHandler.ClearHandler))
	mux.Handle("PUT /api/progress/answers/{questionId}", sessionBasicMiddleware.HandlerFunc(progressHandler.RecordAnswerHandler))
	mux.Handle("POST /api/progress/sections/{sectionId}/complete", sessionBasicMiddleware.HandlerFunc(progressHandler.CompleteSectionHandler))
	mux.Handle("PUT /api/progress/current-section", sessionBasicMiddleware.HandlerFunc(progressHandler.SetCurrentSectionHandler))

	// Wizard navigation
	// ----------------------
	mux.Handle("GET /api/wizard/sections/{sectionId}", sessionBasicMiddleware.HandlerFunc(wizardHandler.ViewHandler))
	mux.Handle("POST /api/wizard/sections/{sectionId}/next", sessionBasicMiddleware.HandlerFunc(wizardHandler.NextHandler))
	mux.Handle("POST /api/wizard/sections/{sectionId}/previous", sessionBasicMiddleware.HandlerFunc(wizardHandler.PreviousHandler))

	// Submission
	// ----------------------
	mux.Handle("POST /api/submissions", sessionBasicMiddleware.HandlerFunc(submitHandler.SubmitHandler))
	mux.Handle("GET /api/submissions/last", sessionBasicMiddleware.HandlerFunc(submitHandler.LastHandler))

	// End of API routes
	// ============================================
	// handle interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Memory and postgres keep entries until pruned; redis expires them itself
	if pruner, ok := backend.(kv.Pruner); ok && cfg.KVPruneInterval > 0 {
		janitor := kv.NewJanitor(logger, pruner, cfg.SessionExpiration, cfg.KVPruneInterval)
		go janitor.Run(ctx)
	}

	// CORS and Entry Point
	entrypoint := corsMiddleware.HandlerFunc(mux.ServeHTTP)

	srv := &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           entrypoint,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting listening request", zap.String("host", cfg.Host), zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Fail to start server with error", zap.Error(err))
		}
	}()

	// wait for context close
	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	otelCtx, otelCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer otelCancel()
	if err := shutdown(otelCtx); err != nil {
		logger.Error("Forced to shutdown OpenTelemetry", zap.Error(err))
	}

	logger.Info("Successfully shutdown")
}

func initLogger(cfg *config.Config, appMetadata []zap.Field) (*zap.Logger, error) {
	var err error
	var logger *zap.Logger
	if cfg.Debug {
		logger, err = logutil.ZapDevelopmentConfig().Build()
		if err != nil {
			return nil, err
		}
		logger.Info("Running in debug mode", appMetadata...)
	} else {
		logger, err = logutil.ZapProductionConfig().Build()
		if err != nil {
			return nil, err
		}

		logger = logger.With(appMetadata...)
	}

	if cfg.LogFile != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     7, // days
			Compress:   true,
		})

		level := zapcore.InfoLevel
		if cfg.Debug {
			level = zapcore.DebugLevel
		}
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), fileWriter, level)

		logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	defer func() {
		err := logger.Sync()
		if err != nil {
			zap.S().Errorw("Failed to sync logger", zap.Error(err))
		}
	}()

	return logger, nil
}

// initKVBackend opens the store every session's local state lives in. The
// returned func releases its connections.
func initKVBackend(cfg *config.Config, logger *zap.Logger) (kv.Store, func(), error) {
	backend, _ := kv.ParseBackend(cfg.KVBackend)

	switch backend {
	case kv.BackendRedis:
		client, err := kv.NewRedisClient(context.Background(), cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using redis kv backend")
		return kv.NewRedis(logger, client, cfg.KVTTL), func() {
			if err := client.Close(); err != nil {
				logger.Error("Failed to close redis client", zap.Error(err))
			}
		}, nil

	case kv.BackendPostgres:
		logger.Info("Starting database migration...")
		err := databaseutil.MigrationUp(cfg.MigrationSource, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to run database migration: %w", err)
		}

		dbPool, err := initDatabasePool(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		logger.Info("Using postgres kv backend")
		return kv.NewPostgres(logger, dbPool), dbPool.Close, nil
	}

	logger.Warn("Using in-memory kv backend, survey progress is lost on restart")
	return kv.NewMemory(), func() {}, nil
}

func initDatabasePool(databaseURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, err
	}
	return dbPool, nil
}

func initOpenTelemetry(appName, version, buildTime, commitHash, environment, otelCollectorUrl string) (func(context.Context) error, error) {
	ctx := context.Background()

	serviceName := semconv.ServiceNameKey.String(appName)
	serviceVersion := semconv.ServiceVersionKey.String(version)
	serviceNamespace := semconv.ServiceNamespaceKey.String("survey")
	serviceBuildTime := attribute.String("service.build_time", buildTime)
	serviceCommitHash := attribute.String("service.commit_hash", commitHash)
	serviceEnvironment := semconv.DeploymentEnvironmentKey.String(environment)

	res, err := resource.New(ctx,
		resource.WithAttributes(
			serviceName,
			serviceVersion,
			serviceNamespace,
			serviceBuildTime,
			serviceCommitHash,
			serviceEnvironment,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	if otelCollectorUrl != "" {
		conn, err := initGrpcConn(otelCollectorUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}

		traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
		options = append(options, sdktrace.WithSpanProcessor(bsp))
	}

	tracerProvider := sdktrace.NewTracerProvider(options...)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tracerProvider.Shutdown, nil
}

func initGrpcConn(target string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	return conn, nil
}

func EarlyApplicationFailed(title, action string) string {
	result := `
-----------------------------------------
Application Failed to Start
-----------------------------------------

# What's wrong?
%s

# How to fix it?
%s

`

	result = fmt.Sprintf(result, title, action)
	return result
}
