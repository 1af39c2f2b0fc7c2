package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketchat/backend/internal/api/handler"
	"marketchat/backend/internal/chat"
	"marketchat/backend/internal/chathub"
	"marketchat/backend/internal/config"
	"marketchat/backend/internal/identity"
	"marketchat/backend/internal/listing"
	"marketchat/backend/internal/localization"
	"marketchat/backend/internal/obs"
	"marketchat/backend/internal/ratelimit"
	"marketchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config, log *slog.Logger) (*gorm.DB, *redis.Client) {
	db, err := storage.Open(cfg.DSN())
	if err != nil {
		log.Error("failed to connect postgres", "err", err)
		os.Exit(1)
	}
	if cfg.DBAutoMigrate {
		if err := storage.AutoMigrate(db); err != nil {
			log.Error("failed to run migrations", "err", err)
			os.Exit(1)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		if cfg.Broker == config.BrokerRedis {
			log.Error("failed to connect redis", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		// Only the rate limiter needs Redis then, and it fails open.
		log.Warn("redis unavailable, message rate limiting disabled", "addr", cfg.RedisAddr, "err", err)
		_ = rdb.Close()
		rdb = nil
	}

	log.Info("database and redis connections established", "auto_migrate", cfg.DBAutoMigrate, "redis", rdb != nil)
	return db, rdb
}

func newBroker(cfg config.Config, rdb *redis.Client, log *slog.Logger) chathub.Broker {
	switch cfg.Broker {
	case config.BrokerRedis:
		return chathub.NewRedisBroker(rdb, log)
	case config.BrokerNATS:
		b, err := chathub.NewNATSBroker(cfg.NATSURL, log)
		if err != nil {
			log.Error("failed to connect nats", "url", cfg.NATSURL, "err", err)
			os.Exit(1)
		}
		return b
	}
	return nil
}

func main() {
	loaded := config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	log := obs.NewLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting marketchat", "env", cfg.Env, "addr", cfg.HTTPAddr, "broker", cfg.Broker, "dotenv", loaded)
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Dependencies
	db, rdb := setupDependencies(cfg, log)
	texts, err := localization.Default()
	if err != nil {
		log.Error("failed to load catalogs", "err", err)
		os.Exit(1)
	}

	// 2. Chat core
	profiles := identity.NewProfileDirectory(db)
	titler := chat.NewTitler(listing.NewCatalog(db), profiles, texts, cfg.Locale, log)
	store := storage.NewStorageService(db, titler, log)
	svc := chat.NewService(store, store, profiles, texts, chat.Options{Locale: cfg.Locale, Logger: log})

	// 3. Gateway
	hubOpts := chathub.Options{
		Broker:      newBroker(cfg, rdb, log),
		MessageRule: ratelimit.MessageRule(cfg.RateLimitMessages, cfg.RateLimitWindow),
		Timeout:     cfg.RequestTimeout,
		Logger:      log,
	}
	if rdb != nil {
		hubOpts.Limiter = ratelimit.NewLimiter(rdb, log)
	}
	hub := chathub.NewManagerService(svc, hubOpts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := hub.Run(ctx); err != nil {
			log.Error("broker listener stopped", "err", err)
			stop()
		}
	}()

	// 4. HTTP
	h := handler.NewHandler(svc, hub, identity.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer), cfg.AllowedOrigins, cfg.RequestTimeout, log)
	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        handler.NewRouter(h),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	if hubOpts.Broker != nil {
		if err := hubOpts.Broker.Close(); err != nil {
			log.Warn("broker close", "err", err)
		}
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
