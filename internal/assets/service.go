package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/itasset/internal/predicate"
)

// Repository exposes the persistence operations the service relies on.
type Repository interface {
	ListCategories(ctx context.Context) ([]CategoryRef, error)
	ListFleetCategories(ctx context.Context) ([]CategoryRef, error)
	CountByState(ctx context.Context, assetType AssetType, filter StatsFilter) (StateCounts, error)
	CategoryDistribution(ctx context.Context, filter StatsFilter) ([]CategoryCount, error)
	MaintenanceCount(ctx context.Context, filter StatsFilter) (int64, error)
	PrinterUsage(ctx context.Context, start, end time.Time) (bw, color int64, err error)
	TopPrinters(ctx context.Context, start, end time.Time, limit int) ([]PrinterUsage, error)
	RadioGroups(ctx context.Context, mode RadioMode, fleetCategoryIDs []int64) ([]GroupCount, error)
	FleetSummary(ctx context.Context, fleetCategoryIDs []int64) ([]FleetCategoryStats, error)
	Comparison(ctx context.Context, categoryIDs []int64) ([]ComparisonRow, error)
	RecentActivities(ctx context.Context, limit int) ([]ActivityRecord, error)
	RecordActivity(ctx context.Context, rec ActivityRecord) error
	GetAsset(ctx context.Context, id int64) (Asset, error)
	ListAssets(ctx context.Context, pred predicate.Expr, page Page) ([]Asset, error)
	ListMaintenance(ctx context.Context, pred predicate.Expr, page Page) ([]MaintenanceLog, error)
	LatestReading(ctx context.Context, assetID int64, onOrBefore time.Time) (PrinterReading, bool, error)
	InsertReading(ctx context.Context, reading PrinterReading) (int64, error)
	ListReadings(ctx context.Context, assetID int64, page Page) ([]PrinterReading, error)
	GetCategory(ctx context.Context, id int64) (CategoryRef, error)
	CreateAsset(ctx context.Context, asset Asset) (int64, error)
	AssignAsset(ctx context.Context, assignment Assignment) (Assignment, error)
	ReturnAssignment(ctx context.Context, id int64, on time.Time) (Assignment, Asset, error)
	ListAssignments(ctx context.Context, assetID int64, page Page) ([]Assignment, error)
	SwapAsset(ctx context.Context, swap Swap) (Swap, error)
	ReturnSwap(ctx context.Context, id int64, on time.Time) (Swap, Asset, error)
	ListSwaps(ctx context.Context, assetID int64, page Page) ([]Swap, error)
}

// Service computes dashboard aggregates and manages printer readings and the
// assignment and swap history of assets.
type Service struct {
	repo     Repository
	cache    *StatsCache
	logger   *slog.Logger
	validate *validator.Validate
	group    singleflight.Group
	timeout  time.Duration
	now      func() time.Time
	observer CacheObserver
}

// CacheObserver is told whether each cached stats lookup hit.
type CacheObserver interface {
	ObserveCacheLookup(hit bool)
}

// Option customises a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout bounds a single aggregate computation.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCacheObserver reports stats cache hits and misses to o.
func WithCacheObserver(o CacheObserver) Option {
	return func(s *Service) { s.observer = o }
}

// NewService wires a Repository with the stats cache.
func NewService(repo Repository, cache *StatsCache, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		cache:    cache,
		logger:   slog.Default(),
		validate: validator.New(),
		timeout:  5 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Categories lists the categories of the requested kind.
func (s *Service) Categories(ctx context.Context, kind CategoryKind) ([]CategoryRef, error) {
	var (
		refs []CategoryRef
		err  error
	)
	switch kind {
	case KindAssetCategory:
		refs, err = s.repo.ListCategories(ctx)
	case KindFleetCategory:
		refs, err = s.repo.ListFleetCategories(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	if refs == nil {
		refs = []CategoryRef{}
	}
	return refs, nil
}

// GetDashboardStats returns the aggregate payload for the filter, served from
// the versioned cache when possible. Identical concurrent requests share one load.
func (s *Service) GetDashboardStats(ctx context.Context, filter StatsFilter) (DashboardStats, error) {
	filter = filter.normalized()
	key, err := s.cache.Key(ctx, filter)
	if err != nil {
		s.logger.Warn("stats cache key unavailable", slog.Any("error", err))
		return s.loadStats(ctx, filter)
	}
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		stats, hit, err := s.cache.Fetch(ctx, key, func(ctx context.Context) (DashboardStats, error) {
			return s.loadStats(ctx, filter)
		})
		if err != nil {
			return nil, err
		}
		if s.observer != nil {
			s.observer.ObserveCacheLookup(hit)
		}
		s.logger.Debug("dashboard stats served", slog.String("key", key), slog.Bool("cache_hit", hit))
		return stats, nil
	})
	select {
	case <-ctx.Done():
		return DashboardStats{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return DashboardStats{}, res.Err
		}
		return res.Val.(DashboardStats), nil
	}
}

func (s *Service) loadStats(ctx context.Context, filter StatsFilter) (DashboardStats, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	now := s.now()
	windowStart, windowEnd := filter.PrinterWindow(now)

	var (
		stats      DashboardStats
		categories []CategoryCount
		bw, color  int64
		fleet      []FleetCategoryStats
		activities []ActivityRecord
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.repo.CountByState(ctx, AssetTypeIT, filter)
		if err != nil {
			return fmt.Errorf("count it assets: %w", err)
		}
		stats.StateCounts = counts
		return nil
	})

	g.Go(func() error {
		counts, err := s.repo.CountByState(ctx, AssetTypeOperation, filter)
		if err != nil {
			return fmt.Errorf("count operation assets: %w", err)
		}
		stats.OperationAssets = counts
		return nil
	})

	g.Go(func() error {
		rows, err := s.repo.CategoryDistribution(ctx, filter)
		if err != nil {
			return fmt.Errorf("category distribution: %w", err)
		}
		categories = rows
		return nil
	})

	g.Go(func() error {
		count, err := s.repo.MaintenanceCount(ctx, filter)
		if err != nil {
			return fmt.Errorf("maintenance count: %w", err)
		}
		stats.MaintenanceLogs = count
		return nil
	})

	g.Go(func() error {
		var err error
		bw, color, err = s.repo.PrinterUsage(ctx, windowStart, windowEnd)
		if err != nil {
			return fmt.Errorf("printer usage: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		top, err := s.repo.TopPrinters(ctx, windowStart, windowEnd, topPrinterLimit)
		if err != nil {
			return fmt.Errorf("top printers: %w", err)
		}
		stats.Printer.TopPrinters = top
		return nil
	})

	g.Go(func() error {
		groups, err := s.repo.RadioGroups(ctx, filter.RadioMode, filter.FleetCategoryIDs)
		if err != nil {
			return fmt.Errorf("radio groups: %w", err)
		}
		stats.Radio.Groups = groups
		return nil
	})

	g.Go(func() error {
		rows, err := s.repo.FleetSummary(ctx, filter.FleetCategoryIDs)
		if err != nil {
			return fmt.Errorf("fleet summary: %w", err)
		}
		fleet = rows
		return nil
	})

	g.Go(func() error {
		rows, err := s.repo.Comparison(ctx, filter.CompCategoryIDs)
		if err != nil {
			return fmt.Errorf("comparison: %w", err)
		}
		stats.Comparison = rows
		return nil
	})

	g.Go(func() error {
		rows, err := s.repo.RecentActivities(ctx, recentActivityLimit)
		if err != nil {
			return fmt.Errorf("recent activities: %w", err)
		}
		activities = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return DashboardStats{}, err
	}

	stats.CategoryDistribution = topCategories(categories, len(filter.CategoryIDs) > 0)
	stats.StateDistribution = stateSlices(stats.StateCounts)

	stats.Printer.Period = filter.PrinterPeriod
	stats.Printer.WindowStart = windowStart.Format(dateLayout)
	stats.Printer.WindowEnd = windowEnd.Format(dateLayout)
	stats.Printer.BWPages = bw
	stats.Printer.ColorPages = color
	stats.Printer.TotalPages = bw + color
	stats.Printer.ColorRatio = colorRatio(color, bw+color)
	if stats.Printer.TopPrinters == nil {
		stats.Printer.TopPrinters = []PrinterUsage{}
	}

	stats.Radio.Mode = filter.RadioMode
	for _, group := range stats.Radio.Groups {
		stats.Radio.Total += group.Count
	}
	if stats.Radio.Groups == nil {
		stats.Radio.Groups = []GroupCount{}
	}

	stats.Fleet.Categories = []FleetCategoryStats{}
	for _, row := range fleet {
		stats.Fleet.TotalUnits += row.Units
		stats.Fleet.UnitsWithAssets += row.UnitsWithAssets
		stats.Fleet.InstalledAssets += row.InstalledAssets
		stats.Fleet.Categories = append(stats.Fleet.Categories, row)
	}

	stats.RecentActivities = make([]Activity, 0, len(activities))
	for _, rec := range activities {
		stats.RecentActivities = append(stats.RecentActivities, Activity{
			ID:     rec.ID,
			Type:   rec.Type,
			Title:  rec.Title,
			User:   rec.Actor,
			Time:   humanize.RelTime(rec.OccurredAt, now, "ago", "from now"),
			Status: rec.Status,
		})
	}
	return stats, nil
}

// InvalidateStats bumps the stats cache generation.
func (s *Service) InvalidateStats(ctx context.Context) (int64, error) {
	ver, err := s.cache.Bump(ctx)
	if err != nil {
		return 0, fmt.Errorf("bump stats cache: %w", err)
	}
	return ver, nil
}

// ListAssets lists assets matching the predicate.
func (s *Service) ListAssets(ctx context.Context, pred predicate.Expr, page Page) ([]Asset, error) {
	out, err := s.repo.ListAssets(ctx, pred, page)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Asset{}
	}
	return out, nil
}

// ListMaintenance lists maintenance records matching the predicate.
func (s *Service) ListMaintenance(ctx context.Context, pred predicate.Expr, page Page) ([]MaintenanceLog, error) {
	out, err := s.repo.ListMaintenance(ctx, pred, page)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []MaintenanceLog{}
	}
	return out, nil
}

// ListReadings lists the readings of a printer.
func (s *Service) ListReadings(ctx context.Context, assetID int64, page Page) ([]PrinterReading, error) {
	if _, err := s.printer(ctx, assetID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListReadings(ctx, assetID, page)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []PrinterReading{}
	}
	return out, nil
}

// RecordPrinterReading stores a meter reading. The counter may not go below the
// previous reading; diffs are computed against it and are zero for the first one.
func (s *Service) RecordPrinterReading(ctx context.Context, input ReadingInput) (PrinterReading, error) {
	if err := s.validate.Struct(input); err != nil {
		return PrinterReading{}, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	asset, err := s.printer(ctx, input.AssetID)
	if err != nil {
		return PrinterReading{}, err
	}
	date := time.Date(input.Date.Year(), input.Date.Month(), input.Date.Day(), 0, 0, 0, 0, time.UTC)
	reading := PrinterReading{
		AssetID:    input.AssetID,
		Date:       date,
		ColorPages: input.ColorPages,
		BWPages:    input.BWPages,
		TotalPages: input.ColorPages + input.BWPages,
		Remarks:    strings.TrimSpace(input.Remarks),
	}
	prev, ok, err := s.repo.LatestReading(ctx, input.AssetID, date)
	if err != nil {
		return PrinterReading{}, fmt.Errorf("previous reading: %w", err)
	}
	if ok {
		if reading.TotalPages < prev.TotalPages {
			return PrinterReading{}, fmt.Errorf("%w (%d pages)", ErrCounterDecreased, prev.TotalPages)
		}
		reading.PagesDiff = reading.TotalPages - prev.TotalPages
		reading.BWDiff = reading.BWPages - prev.BWPages
		reading.ColorDiff = reading.ColorPages - prev.ColorPages
	}
	id, err := s.repo.InsertReading(ctx, reading)
	if err != nil {
		return PrinterReading{}, err
	}
	reading.ID = id

	s.recordChange(ctx, asset.ID, "printer_reading",
		fmt.Sprintf("Counter reading for %s: %d pages", asset.Name, reading.TotalPages))
	return reading, nil
}

// recordChange logs a write to the activity feed and invalidates cached
// stats. Both are best effort once the write itself succeeded.
func (s *Service) recordChange(ctx context.Context, assetID int64, kind, title string) {
	if err := s.repo.RecordActivity(ctx, ActivityRecord{
		Type:       kind,
		Title:      title,
		Actor:      "system",
		Status:     "done",
		OccurredAt: s.now(),
	}); err != nil {
		s.logger.Warn("record activity failed", slog.Int64("asset_id", assetID), slog.Any("error", err))
	}
	if _, err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("stats cache bump failed", slog.Any("error", err))
	}
}

func (s *Service) printer(ctx context.Context, assetID int64) (Asset, error) {
	asset, err := s.repo.GetAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Asset{}, fmt.Errorf("printer %d: %w", assetID, ErrNotFound)
		}
		return Asset{}, err
	}
	if !IsPrinterCategory(asset.CategoryName) {
		return Asset{}, fmt.Errorf("%w: asset %d is not a printer", ErrInvalidReading, assetID)
	}
	return asset, nil
}

// IsPrinterCategory reports whether a category name designates printers.
func IsPrinterCategory(name string) bool {
	return strings.Contains(strings.ToLower(name), "printer")
}
