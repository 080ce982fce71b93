package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kycdesk/kycdesk/internal/app/migrate"
	httpx "github.com/kycdesk/kycdesk/internal/http"
	"github.com/kycdesk/kycdesk/internal/repository"
	"github.com/kycdesk/kycdesk/internal/repository/memory"
	"github.com/kycdesk/kycdesk/internal/repository/mongo"
	"github.com/kycdesk/kycdesk/internal/repository/postgres"
	"github.com/kycdesk/kycdesk/internal/service/auth"
	"github.com/kycdesk/kycdesk/internal/service/dashboard"
	"github.com/kycdesk/kycdesk/internal/service/kyc"
	"github.com/kycdesk/kycdesk/internal/storage"
	"github.com/kycdesk/kycdesk/internal/ws"
	"github.com/kycdesk/kycdesk/pkg/config"
	"github.com/kycdesk/kycdesk/pkg/logger"
)

func main() {
	cfg := config.LoadAPIConfig()
	log := logger.New("api", logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("store close failed", "error", err)
		}
	}()

	documents, err := openDocuments(ctx, cfg)
	if err != nil {
		log.Error("failed to configure document store", "backend", cfg.DocumentStore, "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub()
	defer hub.Stop()

	authSvc := auth.New(store, log, cfg)
	if _, err := authSvc.SeedAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Error("failed to seed admin", "error", err)
		os.Exit(1)
	}
	kycSvc := kyc.New(store, documents, httpx.NewEventPublisher(hub, log), kyc.Policy{AllowRedecide: cfg.AllowRedecide}, log)
	dashboardSvc := dashboard.New(store)

	limiter := httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(httpx.RedisLimiterConfig{
			Addr:      addr,
			Password:  cfg.RateLimitRedisPass,
			DB:        cfg.RateLimitRedisDB,
			KeyPrefix: cfg.RateLimitRedisKey,
		}, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, httpx.Services{
		Auth:      authSvc,
		KYC:       kycSvc,
		Dashboard: dashboardSvc,
	}, documents, hub, limiter, httpx.Options{
		RateLimitMax:       cfg.RateLimitMax,
		RateLimitWindow:    cfg.RateLimitWindow,
		UploadMaxBytes:     cfg.UploadMaxBytes,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		APIDocs:            !cfg.IsProduction(),
	}, store.Ping)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "store", cfg.StoreDriver, "documents", cfg.DocumentStore)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

func openStore(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		runner, err := migrate.New(pool, cfg.DatabaseURL, log)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("configure migrations: %w", err)
		}
		if err := runner.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("database ping: %w", err)
		}
		if err := runner.Ensure(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return postgres.New(pool), nil
	case config.StoreDriverMongo:
		return mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.StoreDriverMemory:
		if cfg.IsProduction() {
			log.Warn("memory store selected in production; data is lost on restart")
		}
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func openDocuments(ctx context.Context, cfg config.APIConfig) (storage.Store, error) {
	switch cfg.DocumentStore {
	case config.DocumentStoreLocal:
		return storage.NewLocal(cfg.UploadDir)
	case config.DocumentStoreS3:
		return storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unsupported document store %q", cfg.DocumentStore)
	}
}
