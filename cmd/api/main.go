// Package main is the entry point for the wall API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/thewall/internal/admin"
	"github.com/onnwee/thewall/internal/api"
	"github.com/onnwee/thewall/internal/asset"
	"github.com/onnwee/thewall/internal/config"
	"github.com/onnwee/thewall/internal/health"
	"github.com/onnwee/thewall/internal/identity"
	"github.com/onnwee/thewall/internal/like"
	"github.com/onnwee/thewall/internal/middleware"
	"github.com/onnwee/thewall/internal/placement"
	"github.com/onnwee/thewall/internal/quota"
	"github.com/onnwee/thewall/internal/realtime"
	"github.com/onnwee/thewall/internal/tracing"
	"github.com/onnwee/thewall/internal/wall"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Wall API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	// Tracing (optional).
	traceProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "thewall-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Storage. Without DATABASE_URL the wall lives in memory only.
	var (
		db         *sql.DB
		pictures   wall.PictureRepository
		quotaStore quota.Store
		likeRepo   like.Repository
		dbChecker  api.HealthChecker
	)
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := db.PingContext(pingCtx); err != nil {
			cancel()
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		cancel()

		pictures = wall.NewPostgresPictureRepository(db)
		quotaStore = quota.NewPostgresStore(db)
		likeRepo = like.NewPostgresRepository(db)
		dbChecker = health.NewDBChecker(db)
		logger.Info("using postgres storage")
	} else {
		pictures = wall.NewInMemoryPictureRepository()
		quotaStore = quota.NewInMemoryStore()
		likeRepo = like.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set; the wall will not survive restarts")
	}

	// Metrics.
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register http metrics", "error", err)
		os.Exit(1)
	}
	wallMetrics := realtime.NewMetrics()
	if err := wallMetrics.Register(registry); err != nil {
		logger.Error("failed to register wall metrics", "error", err)
		os.Exit(1)
	}

	// Redis (optional). Enables atomic quota accounting and shared rate
	// limit state across replicas.
	var rateLimitStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	var redisChecker api.HealthChecker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()

		quotaStore = quota.NewRedisStore(redisClient)
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("using redis for quota and rate limit state")
	}

	// Asset hosting.
	var host asset.Host
	switch cfg.AssetHost {
	case config.AssetHostR2:
		host, err = asset.NewR2Host(asset.R2Config{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			PublicBaseURL:   cfg.R2PublicBaseURL,
			MaxSizeMB:       cfg.R2MaxUploadSizeMB,
		})
	default:
		host, err = asset.NewCloudinaryHost(asset.CloudinaryConfig{
			CloudName:    cfg.CloudinaryCloudName,
			UploadPreset: cfg.CloudinaryUploadPreset,
		})
	}
	if err != nil {
		logger.Error("failed to configure asset host", "host", cfg.AssetHost, "error", err)
		os.Exit(1)
	}

	// Core services.
	store := realtime.NewStore(pictures, logger, wallMetrics)
	// A configured override credential disables quota enforcement for the
	// whole deployment; the credential value itself is only checked when
	// redeeming a session bypass token.
	limiter := quota.NewLimiter(quotaStore, cfg.DailyQuota, logger,
		quota.WithStaticBypass(cfg.BypassCredential != ""))
	manager := placement.NewManager(limiter, host, store, logger)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go manager.Run(sweepCtx)
	likes := like.NewService(likeRepo, logger)
	tokens := admin.NewBypassTokens(cfg.BypassSecret)
	adminSvc := admin.NewService(admin.Config{
		BypassCredential: cfg.BypassCredential,
		AdminCredential:  cfg.AdminCredential,
	}, tokens, store, logger)

	resolver := identity.FallbackResolver{
		Lookup: identity.NewLookupClient(cfg.IPLookupURL),
	}

	mux := api.NewRouter(api.RouterConfig{
		Wall:      api.NewWallHandlers(store, likes),
		WS:        api.NewWSHandlers(store, cfg.AllowedOrigins),
		Placement: api.NewPlacementHandlers(manager),
		Quota:     api.NewQuotaHandlers(limiter),
		Like:      api.NewLikeHandlers(likes, store),
		Admin:     api.NewAdminHandlers(adminSvc),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:    dbChecker,
			RedisChecker: redisChecker,
		}),
		RateLimitStore:  rateLimitStore,
		MetricsRegistry: registry,
	})

	// Middleware chain, outermost first: RequestID -> Tracing ->
	// Logging -> CORS -> HTTPMetrics -> Identity.
	var handler http.Handler = mux
	handler = api.Identity(resolver, adminSvc)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", api.BypassTokenHeader, api.AdminCredentialHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing("thewall-api")(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := traceProvider.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down tracing", "error", err)
	}

	logger.Info("server stopped")
}
