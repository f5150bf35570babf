package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/itasset/internal/assets"
	jobmetrics "github.com/odyssey-erp/itasset/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StatsSource is the part of the assets service the warmup needs.
type StatsSource interface {
	Categories(ctx context.Context, kind assets.CategoryKind) ([]assets.CategoryRef, error)
	GetDashboardStats(ctx context.Context, filter assets.StatsFilter) (assets.DashboardStats, error)
}

// StatsWarmupJob precomputes the dashboard payloads most sessions open with.
type StatsWarmupJob struct {
	Stats   StatsSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStatsWarmupJob wires dependencies for the warmup handler.
func NewStatsWarmupJob(stats StatsSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *StatsWarmupJob {
	return &StatsWarmupJob{
		Stats:   stats,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes stats warmup tasks.
func (j *StatsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stats == nil {
		return errors.New("stats warmup: handler not configured")
	}
	var payload StatsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("stats warmup: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskStatsWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Bool("per_category", payload.PerCategory))
	logger.Info("starting stats warmup")
	started := j.now()

	filters := baseFilters()
	if payload.PerCategory {
		categories, err := j.Stats.Categories(ctx, assets.KindAssetCategory)
		if err != nil {
			resultErr = err
			logger.Error("load warmup categories", slog.Any("error", err))
			return resultErr
		}
		for _, c := range categories {
			if c.IsConsumable {
				continue
			}
			filters = append(filters, assets.StatsFilter{
				CategoryIDs:   []int64{c.ID},
				PrinterPeriod: assets.PeriodMonth,
				RadioMode:     assets.RadioModeUnit,
			})
		}
	}

	warmed := 0
	for _, f := range filters {
		if err := j.warm(ctx, f); err != nil {
			resultErr = err
			logger.Error("warm stats", slog.Any("categories", f.CategoryIDs), slog.String("period", string(f.PrinterPeriod)), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}
	j.metrics().AddWarmed(warmed)

	logger.Info("completed stats warmup", slog.Int("payloads", warmed), slog.Duration("duration", j.now().Sub(started)))
	return resultErr
}

func (j *StatsWarmupJob) warm(ctx context.Context, f assets.StatsFilter) error {
	warmCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	_, err := j.Stats.GetDashboardStats(warmCtx, f)
	return err
}

// baseFilters covers the unfiltered dashboard for every period and radio mode.
func baseFilters() []assets.StatsFilter {
	periods := []assets.PrinterPeriod{assets.PeriodMonth, assets.PeriodQuarter, assets.PeriodYear}
	modes := []assets.RadioMode{assets.RadioModeUnit, assets.RadioModeStock}
	out := make([]assets.StatsFilter, 0, len(periods)*len(modes))
	for _, p := range periods {
		for _, m := range modes {
			out = append(out, assets.StatsFilter{PrinterPeriod: p, RadioMode: m})
		}
	}
	return out
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
