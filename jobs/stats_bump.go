package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/itasset/internal/jobs"
)

// StatsInvalidator moves the stats cache to a new generation.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context) (int64, error)
}

// StatsBumpJob invalidates cached dashboard stats after bulk data changes.
type StatsBumpJob struct {
	Stats   StatsInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStatsBumpJob wires dependencies for the bump handler.
func NewStatsBumpJob(stats StatsInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsBumpJob {
	return &StatsBumpJob{Stats: stats, Logger: logger, Metrics: metrics}
}

// Handle processes stats bump tasks.
func (j *StatsBumpJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stats == nil {
		return errors.New("stats bump: handler not configured")
	}
	var payload StatsBumpPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskStatsBump)

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	version, err := j.Stats.InvalidateStats(ctx)
	if err != nil {
		logger.Error("bump stats cache", slog.String("reason", payload.Reason), slog.Any("error", err))
		return tracker.End(err)
	}
	logger.Info("stats cache bumped", slog.String("reason", payload.Reason), slog.Int64("version", version))
	return tracker.End(nil)
}
