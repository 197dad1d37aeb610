// Command server runs the resumiro audit-feed service: health, Prometheus
// metrics and the authenticated audit log over HTTP, plus the optional
// Redis stream forwarder.
//
// Configuration comes from the environment (see internal/config):
//
//	DB_PATH=data/resumiro.db PORT=8080 JWT_SECRET=$(openssl rand -hex 32) \
//	ADMIN_PRINCIPAL=0xadmin REDIS_ADDR=localhost:6379 go run ./cmd/server
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/resumiro/internal/audit"
	"github.com/sakif/resumiro/internal/audit/redisstream"
	"github.com/sakif/resumiro/internal/config"
	"github.com/sakif/resumiro/internal/facade"
	"github.com/sakif/resumiro/internal/metrics"
	"github.com/sakif/resumiro/internal/repository/sqlite"
	"github.com/sakif/resumiro/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// === DATABASE ===
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// === EVENT SINKS ===
	m := metrics.New()
	sinks := []audit.Sink{audit.LogSink(logger), audit.MetricsSink(m)}

	var workers []server.Worker
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()

		fwd := redisstream.New(rdb, cfg.RedisStream, redisstream.DefaultBuffer, m, logger)
		sinks = append(sinks, fwd)
		workers = append(workers, fwd.Run)
	} else {
		logger.Info("REDIS_ADDR not set, events are not forwarded")
	}

	// === COMPONENTS ===
	f := facade.Wire(db, audit.NewDispatcher(sinks...), m, logger)

	if cfg.AdminPrincipal != "" {
		if err := f.Bootstrap(context.Background(), cfg.AdminPrincipal); err != nil {
			return err
		}
	} else {
		logger.Warn("ADMIN_PRINCIPAL not set, no platform admin is registered")
	}

	// === HTTP ===
	srv, err := server.New(
		server.Config{Port: cfg.Port, JWTSecret: cfg.JWTSecret},
		server.Deps{Events: f, DB: db, Metrics: m},
		logger,
	)
	if err != nil {
		return err
	}
	return srv.Start(workers...)
}
