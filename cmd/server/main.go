package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"vesper/internal/config"
	"vesper/internal/handler"
	"vesper/internal/middleware"
	"vesper/internal/realtime"
	"vesper/internal/repository"
	"vesper/internal/service"
	"vesper/pkg/logger"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewWithWriter(cfg.Log.Level, os.Stdout, cfg.Log.Pretty)

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to parse database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	// NATS object store for attachments
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("vesper"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				appLogger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			appLogger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		appLogger.Fatal("Failed to connect to NATS", "error", err)
	}

	blobCtx, blobCancel := context.WithTimeout(context.Background(), 10*time.Second)
	blobRepo, err := repository.NewBlobRepository(blobCtx, nc, cfg.NATS.Bucket, appLogger)
	blobCancel()
	if err != nil {
		appLogger.Fatal("Failed to open attachment bucket", "error", err)
	}
	appLogger.Info("NATS object store ready", "bucket", cfg.NATS.Bucket)

	presence := realtime.NewPresenceRegistry()
	repos := repository.NewRepositories(dbPool, rdb, blobRepo, appLogger)
	services := service.NewServices(repos, presence, cfg, appLogger)
	hub := realtime.NewHub(services.Chat, presence, cfg.Chat.SendBuffer, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, cfg.RateLimit, appLogger)

	checks := map[string]handler.HealthCheck{
		"postgres": dbPool.Ping,
		"redis": func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
		"nats": func(context.Context) error {
			if !blobRepo.Ping() {
				return errors.New("not connected")
			}
			return nil
		},
	}

	handlers := handler.NewHandlers(services, hub, checks, cfg, appLogger)
	router := handler.NewRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	// no WriteTimeout: websocket connections outlive any request deadline
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			// one operation so the steps keep their order
			"server": func(ctx context.Context) error {
				appLogger.Info("Shutting down server...")
				hub.Shutdown()
				if err := srv.Shutdown(ctx); err != nil {
					return fmt.Errorf("http server shutdown: %w", err)
				}
				if err := nc.Drain(); err != nil {
					return fmt.Errorf("nats drain: %w", err)
				}
				dbPool.Close()
				return rdb.Close()
			},
		},
	)

	exitCode := <-wait
	appLogger.Info("Server exited", "code", exitCode)
	os.Exit(exitCode)
}
