package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	h "github.com/fjod/go_cart/storefront/internal/http"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, os.Stdout)
	ctx := context.Background()

	tp, err := telemetry.InitTracerProvider(ctx, "storefront", cfg.OTLPEndpoint)
	if err != nil {
		log.WithError(err).Fatal("failed to init tracing")
	}

	store, closeStore, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.WithError(err).WithField("backend", cfg.StorageBackend).Fatal("failed to open storage")
	}

	var opts []api.Option
	if cfg.BreakerEnabled {
		opts = append(opts, api.WithCircuitBreaker(gobreaker.Settings{
			Name:    "storefront-api",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
			},
		}))
	}
	client := api.NewClient(cfg.APIBaseURL, opts...)

	manager := session.NewManager(store, client, log,
		session.WithRefreshOnLogin(cfg.RefreshCartOnLogin),
		session.WithIdleTimeout(cfg.SessionIdleTimeout),
	)

	router := h.NewRouter(manager, log, h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.HTTPPort,
			"api":     cfg.APIBaseURL,
			"storage": cfg.StorageBackend,
		}).Info("storefront starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	manager.Close()
	if err := closeStore(shutdownCtx); err != nil {
		log.WithError(err).Error("storage close failed")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("tracer shutdown failed")
	}

	log.Info("server exited")
}

// openStorage connects the configured snapshot backend and returns it with
// its close function.
func openStorage(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (storage.Storage, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch cfg.StorageBackend {
	case config.BackendMemory:
		log.Warn("using in-memory storage, sessions are lost on restart")
		return storage.NewMemoryStorage(), noop, nil

	case config.BackendSQLite:
		s, err := storage.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("connected to SQLite")
		return s, func(context.Context) error { return s.Close() }, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		log.WithField("addr", cfg.RedisAddr).Info("redis ping succeeded")
		return storage.NewRedisStorage(client, cfg.RedisTTL), func(context.Context) error { return client.Close() }, nil

	case config.BackendMongo:
		db, err := storage.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		s := storage.NewMongoStorage(db)
		log.WithField("database", cfg.MongoDBName).Info("connected to MongoDB")
		return s, s.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
