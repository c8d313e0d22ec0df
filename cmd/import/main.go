package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/stockpile-dev/stockpile/internal/app"
	"github.com/stockpile-dev/stockpile/internal/catalog"
	"github.com/stockpile-dev/stockpile/internal/importer"
	"github.com/stockpile-dev/stockpile/internal/platform/db"
	"github.com/stockpile-dev/stockpile/jobs"
)

func main() {
	var (
		file       = flag.String("file", "", "path to the vendor CSV feed")
		encoding   = flag.String("encoding", "", "feed encoding (utf-8, windows-1252, latin-1)")
		skipWarmup = flag.Bool("skip-warmup", false, "do not enqueue a stats warmup after the import")
	)
	flag.Parse()

	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping import")
		return
	}
	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	src, err := os.Open(*file)
	if err != nil {
		logger.Error("open feed", slog.Any("error", err))
		os.Exit(1)
	}
	defer src.Close()

	statsCache := catalog.NewCache(redisClient, cfg.CacheTTL)
	imp := importer.New(logger, pool, statsCache)

	report, err := imp.Run(ctx, src, importer.Options{Encoding: *encoding})
	if err != nil {
		logger.Error("import failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
		logger.Warn("write report", slog.Any("error", err))
	}

	if *skipWarmup {
		return
	}
	client, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("jobs client", slog.Any("error", err))
		return
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	if _, err := client.EnqueueStatsWarmup(ctx, nil); err != nil {
		logger.Warn("enqueue stats warmup", slog.Any("error", err))
	}
}
