package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatsWarmup precomputes the cached catalog stats.
	TaskStatsWarmup = "catalog:stats_warmup"
	// TaskLowStockScan surveys products running low on stock.
	TaskLowStockScan = "catalog:lowstock_scan"
)

// StatsWarmupPayload selects which field breakdowns to precompute. An
// empty list means the default stats fields.
type StatsWarmupPayload struct {
	Fields []string `json:"fields,omitempty"`
}

// NewStatsWarmupTask constructs a stats warmup task.
func NewStatsWarmupTask(fields []string) (*asynq.Task, error) {
	body, err := json.Marshal(StatsWarmupPayload{Fields: fields})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatsWarmup, body, asynq.Queue(QueueDefault)), nil
}

// LowStockScanPayload tunes one scan run. Threshold zero means the
// scan default.
type LowStockScanPayload struct {
	Threshold int `json:"threshold,omitempty"`
}

// NewLowStockScanTask constructs a low-stock scan task.
func NewLowStockScanTask(threshold int) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{Threshold: threshold})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}
