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

// LowStockScanJob surveys products at or under the stock threshold and
// records per-warehouse gauges so replenishment dashboards stay fresh.
type LowStockScanJob struct {
	Catalog *catalog.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(svc *catalog.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{
		Catalog: svc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Catalog == nil {
		return errors.New("lowstock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Threshold <= 0 {
		payload.Threshold = catalog.DefaultLowStockThreshold
	}

	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("threshold", payload.Threshold))
	logger.Info("starting low-stock scan")

	start := j.now()
	scanCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stats, err := j.Catalog.Stats(scanCtx, catalog.StatsParams{
		Filters: map[string]any{"stock__lte": payload.Threshold},
		Fields:  []string{"warehouse"},
	})
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, field := range stats.Fields {
		if field.Field != "warehouse" {
			continue
		}
		for _, group := range field.Groups {
			j.metrics().SetLowStock(group.Value, group.Count)
			logger.Info("warehouse running low",
				slog.String("warehouse", group.Value),
				slog.Int("products", group.Count))
		}
	}
	if stats.Stock.OutOfStock > 0 {
		logger.Warn("products out of stock",
			slog.Int("count", stats.Stock.OutOfStock))
	}

	logger.Info("completed low-stock scan",
		slog.Int("low_stock_products", stats.TotalCount),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
