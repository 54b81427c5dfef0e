// Package main runs the platform API gateway.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/brickvault/platform/internal/app"
	"github.com/brickvault/platform/internal/app/httpapi"
	"github.com/brickvault/platform/internal/app/metrics"
	"github.com/brickvault/platform/internal/app/services/auth"
	"github.com/brickvault/platform/internal/app/services/documents"
	"github.com/brickvault/platform/internal/app/storage/postgres"
	"github.com/brickvault/platform/internal/config"
	"github.com/brickvault/platform/internal/kycprovider"
	"github.com/brickvault/platform/internal/middleware"
	"github.com/brickvault/platform/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.NewDefault("gateway").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Component: "gateway",
	})

	var stores app.Stores
	if cfg.Database.URL != "" {
		db, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			log.WithError(err).Error("connect to database")
			os.Exit(1)
		}
		defer db.Close()

		if err := postgres.Migrate(db); err != nil {
			log.WithError(err).Error("run migrations")
			os.Exit(1)
		}

		pg := postgres.New(db)
		stores = app.Stores{
			Users:         pg,
			Investors:     pg,
			Clients:       pg,
			Properties:    pg,
			Tokens:        pg,
			Investments:   pg,
			KYC:           pg,
			Documents:     pg,
			Notifications: pg,
			Audit:         pg,
			Flags:         pg,
			Visits:        pg,
		}
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	application, err := app.New(stores, app.Config{
		Auth: auth.Config{
			JWTSecret:  cfg.Auth.JWTSecret,
			AccessTTL:  cfg.Auth.AccessTTL.Std(),
			RefreshTTL: cfg.Auth.RefreshTTL.Std(),
		},
		ChainRPCURL: cfg.Chain.RPCURL,
		ChainID:     cfg.Chain.ChainID,
		KYC: kycprovider.Config{
			BaseURL:       cfg.KYC.BaseURL,
			APIKey:        cfg.KYC.APIKey,
			WebhookSecret: cfg.KYC.WebhookSecret,
		},
		Minio: documents.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
		},
		RedisAddr:         cfg.Redis.Addr,
		RedisPassword:     cfg.Redis.Password,
		AuditLogPath:      cfg.Audit.LogPath,
		FlagCacheTTL:      cfg.Flags.CacheTTL.Std(),
		TokenSyncInterval: cfg.Chain.SyncInterval.Std(),
	}, log)
	if err != nil {
		log.WithError(err).Error("build application")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	router := httpapi.NewHandler(application, log)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	authmw := middleware.NewAuthMiddleware(application.Auth, log, httpapi.PublicPaths)
	limiter := middleware.NewRateLimiter(cfg.Server.RatePerSecond, cfg.Server.RateBurst, log)
	limiter.StartCleanup(10 * time.Minute)
	cors := middleware.NewCORSMiddleware(cfg.Server.CORSOrigins)
	tracing := middleware.NewTracingMiddleware(log)

	// Outermost first: tracing, CORS, metrics, then auth and rate limiting.
	var handler http.Handler = router
	handler = limiter.Handler(handler)
	handler = authmw.Handler(handler)
	handler = metrics.InstrumentHandler(handler)
	handler = cors.Handler(handler)
	handler = tracing.Handler(handler)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("gateway listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Error("server error")
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application stop")
	}

	log.Info("gateway stopped")
}
