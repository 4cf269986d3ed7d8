package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/walkquest/internal/config"
	"github.com/playperu/walkquest/internal/content"
	"github.com/playperu/walkquest/internal/database"
	"github.com/playperu/walkquest/internal/handler/health"
	"github.com/playperu/walkquest/internal/migrations"
	"github.com/playperu/walkquest/internal/quest"
	"github.com/playperu/walkquest/internal/server"
	"github.com/playperu/walkquest/internal/session"
	"github.com/playperu/walkquest/internal/store"
	"github.com/playperu/walkquest/internal/store/redisx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	version, _ := migrations.Version(db)
	logger.Info("connected to sqlite", "path", cfg.DBPath, "schema_version", version)

	st := store.New(db)
	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, st); err != nil {
			return fmt.Errorf("seeding demo quests: %w", err)
		}
	}

	if cfg.ContentDir != "" {
		n, err := content.ImportDir(ctx, cfg.ContentDir, st)
		if err != nil {
			logger.Warn("some quest files were not imported", "dir", cfg.ContentDir, "error", err)
		}
		logger.Info("quest content imported", "dir", cfg.ContentDir, "count", n)
	}

	hh := health.NewHandler(logger, map[string]health.Checker{
		"sqlite": dbChecker{db},
	})

	// --- Redis (optional) ---
	var summaries quest.SummarySink = st
	if cfg.RedisURL != "" {
		rdb, err := redisx.Open(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis", "stream", cfg.RedisStream)

		summaries = redisx.Mirror{
			Primary: st,
			Stream:  redisx.NewSummaryStream(rdb, cfg.RedisStream),
			Logger:  logger,
		}
		hh.Optional("redis", redisx.Checker{Client: rdb})
	}

	// --- Sessions ---
	broker := server.NewBroker()
	registry := server.NewRegistry(session.Deps{
		Catalog:   st,
		Progress:  st,
		Summaries: summaries,
		Reviews:   st,
	}, cfg.SessionOptions(logger), broker, logger)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Quests:       st,
		Sessions:     registry,
		Broker:       broker,
		AdminKeyHash: cfg.AdminKeyHash,
		Health:       hh.Routes(),
		SPADir:       cfg.SPADir,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	if cfg.ContentDir != "" {
		g.Go(func() error {
			return content.NewWatcher(cfg.ContentDir, st, logger).Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		err := srv.Shutdown(context.Background())
		logger.Info("closing live sessions", "count", registry.Len())
		registry.CloseAll()
		return err
	})

	return g.Wait()
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }
