// Package dashboard holds the IT asset dashboard state: facet filters, the
// latest aggregate stats and the navigation requests opened from summary tiles.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/odyssey-erp/itasset/internal/assets"
)

// QueryService loads categories and aggregate stats.
type QueryService interface {
	FetchCategories(ctx context.Context, kind assets.CategoryKind) ([]assets.CategoryRef, error)
	FetchAggregateStats(ctx context.Context, params Params) (assets.DashboardStats, error)
}

// Navigator opens list/form views.
type Navigator interface {
	OpenListAndForm(ctx context.Context, req ViewRequest) error
}

// FetchObserver receives the outcome of every stats fetch.
type FetchObserver interface {
	ObserveFetch(outcome string, elapsed time.Duration)
}

// Fetch outcomes reported to the FetchObserver.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeSuperseded = "superseded"
)

// Controller owns one dashboard's filter state and stats. Query Service calls
// run outside the lock; each refresh carries a request token and only the
// response to the latest token is applied.
type Controller struct {
	query        QueryService
	nav          Navigator
	logger       *slog.Logger
	observer     FetchObserver
	placeholders bool

	mu              sync.Mutex
	filters         FilterState
	stats           assets.DashboardStats
	hasStats        bool
	categories      []assets.CategoryRef
	fleetCategories []assets.CategoryRef
	loaded          bool
	ready           bool
	issued          uint64
}

// Option customises a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver reports fetch outcomes to o.
func WithObserver(o FetchObserver) Option {
	return func(c *Controller) { c.observer = o }
}

// WithPlaceholderActivities fills recent activities with a fixed local list
// when the Query Service returns none.
func WithPlaceholderActivities(enabled bool) Option {
	return func(c *Controller) { c.placeholders = enabled }
}

// NewController constructs a controller around its collaborators.
func NewController(query QueryService, nav Navigator, opts ...Option) *Controller {
	c := &Controller{
		query:  query,
		nav:    nav,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize loads asset and fleet categories, drops selections that refer to
// unknown categories and performs the first stats fetch. The controller is
// ready only once all three steps succeed.
func (c *Controller) Initialize(ctx context.Context) error {
	cats, err := c.query.FetchCategories(ctx, assets.KindAssetCategory)
	if err != nil {
		return fmt.Errorf("dashboard: load categories: %w: %w", ErrFetchFailure, err)
	}
	fleet, err := c.query.FetchCategories(ctx, assets.KindFleetCategory)
	if err != nil {
		return fmt.Errorf("dashboard: load fleet categories: %w: %w", ErrFetchFailure, err)
	}

	c.mu.Lock()
	c.categories = cats
	c.fleetCategories = fleet
	c.loaded = true
	c.filters.Categories = retainIDs(c.filters.Categories, c.knownCategory)
	c.filters.CompCategories = retainIDs(c.filters.CompCategories, c.knownCategory)
	c.filters.FleetCategories = retainIDs(c.filters.FleetCategories, c.knownFleetCategory)
	c.mu.Unlock()

	// A superseded first fetch is fine: the newer request owns the stats.
	if err := c.RefreshStats(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		return err
	}

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
	return nil
}

// Ready reports whether Initialize completed.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Restore replaces the filter state, typically from a persisted session.
// Unknown categories are dropped on the next Initialize.
func (c *Controller) Restore(f FilterState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = f
}

// RefreshStats fetches stats for the current filters and replaces the stats
// record wholesale.
func (c *Controller) RefreshStats(ctx context.Context) error {
	return c.mutate(ctx, false, nil)
}

// ToggleCategory adds or removes id from the category selection; nil clears it.
func (c *Controller) ToggleCategory(ctx context.Context, id *int64) error {
	return c.mutate(ctx, id != nil, func(f *FilterState) error {
		if id == nil {
			f.Categories = nil
			return nil
		}
		if !c.knownCategory(*id) {
			return fmt.Errorf("%w: %d", ErrUnknownCategory, *id)
		}
		f.Categories = toggleID(f.Categories, *id)
		return nil
	})
}

// ToggleFleetCategory toggles a fleet category; nil clears the selection.
func (c *Controller) ToggleFleetCategory(ctx context.Context, id *int64) error {
	return c.mutate(ctx, id != nil, func(f *FilterState) error {
		if id == nil {
			f.FleetCategories = nil
			return nil
		}
		if !c.knownFleetCategory(*id) {
			return fmt.Errorf("%w: fleet category %d", ErrUnknownCategory, *id)
		}
		f.FleetCategories = toggleID(f.FleetCategories, *id)
		return nil
	})
}

// ToggleCompCategory toggles a comparison category; nil clears the selection.
func (c *Controller) ToggleCompCategory(ctx context.Context, id *int64) error {
	return c.mutate(ctx, id != nil, func(f *FilterState) error {
		if id == nil {
			f.CompCategories = nil
			return nil
		}
		if !c.knownCategory(*id) {
			return fmt.Errorf("%w: %d", ErrUnknownCategory, *id)
		}
		f.CompCategories = toggleID(f.CompCategories, *id)
		return nil
	})
}

// SetDateBound sets the start or end date; an empty value clears the bound.
func (c *Controller) SetDateBound(ctx context.Context, bound Bound, value string) error {
	return c.mutate(ctx, true, func(f *FilterState) error {
		date, err := normalizeDate(value)
		if err != nil {
			return err
		}
		switch bound {
		case BoundStart:
			f.DateStart = date
		case BoundEnd:
			f.DateEnd = date
		default:
			return fmt.Errorf("%w: unknown bound %q", ErrInvalidDate, bound)
		}
		return nil
	})
}

// SetPeriod overwrites the printer period; empty unsets it.
func (c *Controller) SetPeriod(ctx context.Context, period assets.PrinterPeriod) error {
	return c.mutate(ctx, true, func(f *FilterState) error {
		if period != "" && !period.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
		}
		f.PrinterPeriod = period
		return nil
	})
}

// SetMode overwrites the radio grouping mode; empty unsets it.
func (c *Controller) SetMode(ctx context.Context, mode assets.RadioMode) error {
	return c.mutate(ctx, true, func(f *FilterState) error {
		if mode != "" && !mode.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
		}
		f.RadioMode = mode
		return nil
	})
}

// OpenFilteredView opens the list view behind a summary tile.
func (c *Controller) OpenFilteredView(ctx context.Context, tag string, assetType assets.AssetType) (ViewRequest, error) {
	if assetType == "" {
		assetType = assets.AssetTypeIT
	}
	if !assetType.Valid() {
		return ViewRequest{}, fmt.Errorf("%w: %q", ErrInvalidAssetType, assetType)
	}
	req := BuildViewRequest(tag, assetType, c.State())
	if err := c.nav.OpenListAndForm(ctx, req); err != nil {
		return ViewRequest{}, fmt.Errorf("dashboard: open %s: %w: %w", req.Entity, ErrNavigationFailure, err)
	}
	return req, nil
}

// State returns a copy of the filter state.
func (c *Controller) State() FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// Stats returns the last applied stats and whether any fetch succeeded yet.
func (c *Controller) Stats() (assets.DashboardStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats, c.hasStats
}

// Snapshot is the render input of a dashboard.
type Snapshot struct {
	Ready            bool                  `json:"ready"`
	Filters          FilterState           `json:"filters"`
	Stats            assets.DashboardStats `json:"stats"`
	HasStats         bool                  `json:"has_stats"`
	CategoryPicker   []assets.CategoryRef  `json:"category_picker"`
	ComparisonPicker []assets.CategoryRef  `json:"comparison_picker"`
	FleetPicker      []assets.CategoryRef  `json:"fleet_picker"`
}

// Snapshot captures the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	categories, comparison := SplitPickers(c.categories)
	fleet := append([]assets.CategoryRef{}, c.fleetCategories...)
	return Snapshot{
		Ready:            c.ready,
		Filters:          c.filters,
		Stats:            c.stats,
		HasStats:         c.hasStats,
		CategoryPicker:   categories,
		ComparisonPicker: comparison,
		FleetPicker:      fleet,
	}
}

// mutate applies change to the filter state, then refreshes stats. The change
// and the request token are taken under one lock so the latest intent always
// holds the latest token. Changes that validate against the category catalog
// need a completed category load; clearing a selection never does.
func (c *Controller) mutate(ctx context.Context, needsCatalog bool, change func(*FilterState) error) error {
	c.mu.Lock()
	if change != nil {
		if needsCatalog && !c.loaded {
			c.mu.Unlock()
			return ErrNotReady
		}
		next := c.filters
		if err := change(&next); err != nil {
			c.mu.Unlock()
			return err
		}
		c.filters = next
	}
	c.issued++
	token := c.issued
	params := BuildFetchParams(c.filters)
	c.mu.Unlock()

	started := time.Now()
	stats, err := c.query.FetchAggregateStats(ctx, params)
	elapsed := time.Since(started)

	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.issued {
		c.observe(OutcomeSuperseded, elapsed)
		c.logger.Debug("discarding superseded stats response", slog.Uint64("token", token), slog.Uint64("latest", c.issued))
		return ErrSuperseded
	}
	if err != nil {
		c.observe(OutcomeFailure, elapsed)
		return fmt.Errorf("dashboard: refresh stats: %w: %w", ErrFetchFailure, err)
	}
	if stats.RecentActivities == nil && c.placeholders {
		stats.RecentActivities = placeholderActivities()
	}
	c.stats = stats
	c.hasStats = true
	c.observe(OutcomeSuccess, elapsed)
	return nil
}

func (c *Controller) observe(outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveFetch(outcome, elapsed)
	}
}

// knownCategory and knownFleetCategory must be called with c.mu held.
func (c *Controller) knownCategory(id int64) bool {
	for _, ref := range c.categories {
		if ref.ID == id {
			return true
		}
	}
	return false
}

func (c *Controller) knownFleetCategory(id int64) bool {
	for _, ref := range c.fleetCategories {
		if ref.ID == id {
			return true
		}
	}
	return false
}

// placeholderActivities stands in for an activity feed the backend does not provide.
func placeholderActivities() []assets.Activity {
	return []assets.Activity{
		{ID: 1, Type: "ticket", Title: "Keyboard not working", User: "Agus", Time: "2 mins ago", Status: "new"},
		{ID: 2, Type: "request", Title: "New ERP Account", User: "Siti", Time: "15 mins ago", Status: "pending"},
		{ID: 3, Type: "asset", Title: "Macbook Air M2 Assigned", User: "Budi", Time: "1 hour ago", Status: "done"},
	}
}
