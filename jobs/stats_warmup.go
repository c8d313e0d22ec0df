package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockpile-dev/stockpile/internal/catalog"
	jobmetrics "github.com/stockpile-dev/stockpile/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StatsWarmupJob precomputes the unfiltered catalog stats so the cache
// is warm before the first caller asks.
type StatsWarmupJob struct {
	Catalog *catalog.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStatsWarmupJob wires dependencies for the warmup handler.
func NewStatsWarmupJob(svc *catalog.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsWarmupJob {
	return &StatsWarmupJob{
		Catalog: svc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes stats warmup tasks.
func (j *StatsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Catalog == nil {
		return errors.New("stats warmup: handler not configured")
	}
	var payload StatsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.Fields) == 0 {
		payload.Fields = catalog.DefaultStatsFields
	}

	tracker := j.metrics().Track(TaskStatsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Any("fields", payload.Fields))
	logger.Info("starting stats warmup")

	start := j.now()
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stats, err := j.Catalog.Stats(warmCtx, catalog.StatsParams{Fields: payload.Fields})
	if err != nil {
		resultErr = err
		logger.Error("warm stats", slog.Any("error", err))
		return resultErr
	}
	categories, err := j.Catalog.Categories(warmCtx)
	if err != nil {
		resultErr = err
		logger.Error("warm categories", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed stats warmup",
		slog.Int("total_products", stats.TotalCount),
		slog.Int("field_breakdowns", len(stats.Fields)),
		slog.Int("categories", len(categories)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *StatsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStatsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskStatsWarmup))
}

func (j *StatsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *StatsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
