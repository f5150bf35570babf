package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/itasset/internal/assets"
)

type fakeQuery struct {
	mu         sync.Mutex
	categories map[assets.CategoryKind][]assets.CategoryRef
	catErr     error
	calls      []Params
	respond    func(call int, params Params) (assets.DashboardStats, error)
}

func newFakeQuery() *fakeQuery {
	return &fakeQuery{
		categories: map[assets.CategoryKind][]assets.CategoryRef{
			assets.KindAssetCategory: {
				{ID: 1, Name: "Laptop"},
				{ID: 2, Name: "Printer"},
				{ID: 3, Name: "Radio HT"},
				{ID: 9, Name: "Toner", IsConsumable: true},
			},
			assets.KindFleetCategory: {
				{ID: 11, Name: "Bus"},
				{ID: 12, Name: "Truck"},
			},
		},
	}
}

func (q *fakeQuery) FetchCategories(ctx context.Context, kind assets.CategoryKind) ([]assets.CategoryRef, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.catErr != nil {
		return nil, q.catErr
	}
	return q.categories[kind], nil
}

func (q *fakeQuery) FetchAggregateStats(ctx context.Context, params Params) (assets.DashboardStats, error) {
	q.mu.Lock()
	call := len(q.calls)
	q.calls = append(q.calls, params)
	respond := q.respond
	q.mu.Unlock()
	if respond != nil {
		return respond(call, params)
	}
	return assets.DashboardStats{StateCounts: assets.StateCounts{Total: int64(call)}}, nil
}

func (q *fakeQuery) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

func (q *fakeQuery) lastParams() Params {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls[len(q.calls)-1]
}

type recordingNavigator struct {
	requests []ViewRequest
	err      error
}

func (n *recordingNavigator) OpenListAndForm(ctx context.Context, req ViewRequest) error {
	n.requests = append(n.requests, req)
	return n.err
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *outcomeRecorder) ObserveFetch(outcome string, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func id(v int64) *int64 { return &v }

func newReadyController(t *testing.T, q *fakeQuery, opts ...Option) *Controller {
	t.Helper()
	ctrl := NewController(q, &recordingNavigator{}, opts...)
	require.NoError(t, ctrl.Initialize(context.Background()))
	require.True(t, ctrl.Ready())
	return ctrl
}

func TestInitializeLoadsCategoriesAndStats(t *testing.T) {
	q := newFakeQuery()
	ctrl := newReadyController(t, q)

	assert.Equal(t, 1, q.callCount())
	assert.Empty(t, q.lastParams(), "initial state sends an empty mapping")

	snap := ctrl.Snapshot()
	assert.True(t, snap.HasStats)
	assert.Len(t, snap.CategoryPicker, 3)
	require.Len(t, snap.ComparisonPicker, 1)
	assert.Equal(t, "Toner", snap.ComparisonPicker[0].Name)
	assert.Len(t, snap.FleetPicker, 2)
}

func TestInitializeFailureLeavesControllerNotReady(t *testing.T) {
	q := newFakeQuery()
	q.catErr = errors.New("connection refused")
	ctrl := NewController(q, &recordingNavigator{})

	err := ctrl.Initialize(context.Background())
	require.ErrorIs(t, err, ErrFetchFailure)
	assert.False(t, ctrl.Ready())
	assert.Zero(t, q.callCount())

	require.ErrorIs(t, ctrl.ToggleCategory(context.Background(), id(1)), ErrNotReady)
}

func TestInitializeDropsUnknownRestoredSelections(t *testing.T) {
	q := newFakeQuery()
	ctrl := NewController(q, &recordingNavigator{})
	ctrl.Restore(FilterState{Categories: []int64{1, 404}, FleetCategories: []int64{12, 99}, DateStart: "2024-01-01"})

	require.NoError(t, ctrl.Initialize(context.Background()))
	state := ctrl.State()
	assert.Equal(t, []int64{1}, state.Categories)
	assert.Equal(t, []int64{12}, state.FleetCategories)
	assert.Equal(t, Params{
		assets.ParamCategoryIDs:      []int64{1},
		assets.ParamFleetCategoryIDs: []int64{12},
		assets.ParamDateStart:        "2024-01-01",
	}, q.lastParams())
}

func TestClearingToggleWorksBeforeInitialize(t *testing.T) {
	q := newFakeQuery()
	ctrl := NewController(q, &recordingNavigator{})
	ctrl.Restore(FilterState{Categories: []int64{1, 2}, FleetCategories: []int64{11}, CompCategories: []int64{9}})

	require.NoError(t, ctrl.ToggleCategory(context.Background(), nil))
	require.NoError(t, ctrl.ToggleFleetCategory(context.Background(), nil))
	require.NoError(t, ctrl.ToggleCompCategory(context.Background(), nil))

	state := ctrl.State()
	assert.Empty(t, state.Categories)
	assert.Empty(t, state.FleetCategories)
	assert.Empty(t, state.CompCategories)
	assert.Empty(t, q.lastParams())
	assert.False(t, ctrl.Ready())

	require.ErrorIs(t, ctrl.ToggleCategory(context.Background(), id(1)), ErrNotReady)
}

func TestToggleCategoryIsSymmetric(t *testing.T) {
	q := newFakeQuery()
	ctrl := newReadyController(t, q)
	ctx := context.Background()

	require.NoError(t, ctrl.ToggleCategory(ctx, id(3)))
	require.NoError(t, ctrl.ToggleCategory(ctx, id(1)))
	require.NoError(t, ctrl.ToggleCategory(ctx, id(3)))
	assert.Equal(t, []int64{1}, ctrl.State().Categories)
	assert.Equal(t, Params{assets.ParamCategoryIDs: []int64{1}}, q.lastParams())

	require.NoError(t, ctrl.ToggleCategory(ctx, id(1)))
	assert.Empty(t, ctrl.State().Categories)
	assert.Empty(t, q.lastParams())

	require.NoError(t, ctrl.ToggleCategory(ctx, id(2)))
	require.NoError(t, ctrl.ToggleCategory(ctx, id(3)))
	require.NoError(t, ctrl.ToggleCategory(ctx, nil))
	assert.Empty(t, ctrl.State().Categories)
	assert.NotContains(t, q.lastParams(), assets.ParamCategoryIDs)
	assert.Equal(t, 8, q.callCount())
}

func TestToggleRejectsUnknownCategory(t *testing.T) {
	q := newFakeQuery()
	ctrl := newReadyController(t, q)
	ctx := context.Background()

	require.ErrorIs(t, ctrl.ToggleCategory(ctx, id(404)), ErrUnknownCategory)
	require.ErrorIs(t, ctrl.ToggleFleetCategory(ctx, id(1)), ErrUnknownCategory)
	assert.Equal(t, 1, q.callCount(), "rejected toggles do not refresh")
}

func TestSecondaryFacets(t *testing.T) {
	q := newFakeQuery()
	ctrl := newReadyController(t, q)
	ctx := context.Background()

	require.NoError(t, ctrl.ToggleFleetCategory(ctx, id(12)))
	require.NoError(t, ctrl.ToggleCompCategory(ctx, id(9)))
	require.NoError(t, ctrl.SetDateBound(ctx, BoundStart, "2024-01-01"))
	require.NoError(t, ctrl.SetDateBound(ctx, BoundEnd, "2024-03-31"))
	require.NoError(t, ctrl.SetPeriod(ctx, assets.PeriodQuarter))
	require.NoError(t, ctrl.SetMode(ctx, assets.RadioModeStock))

	assert.Equal(t, Params{
		assets.ParamFleetCategoryIDs: []int64{12},
		assets.ParamCompCategoryIDs:  []int64{9},
		assets.ParamDateStart:        "2024-01-01",
		assets.ParamDateEnd:          "2024-03-31",
		assets.ParamPrinterPeriod:    "quarter",
		assets.ParamRadioMode:        "stock",
	}, q.lastParams())

	require.NoError(t, ctrl.SetDateBound(ctx, BoundStart, ""))
	require.NoError(t, ctrl.SetMode(ctx, ""))
	require.NoError(t, ctrl.ToggleFleetCategory(ctx, nil))
	params := q.lastParams()
	assert.NotContains(t, params, assets.ParamDateStart)
	assert.NotContains(t, params, assets.ParamRadioMode)
	assert.NotContains(t, params, assets.ParamFleetCategoryIDs)
}

func TestSettersRejectInvalidValues(t *testing.T) {
	q := newFakeQuery()
	ctrl := newReadyController(t, q)
	ctx := context.Background()

	require.ErrorIs(t, ctrl.SetDateBound(ctx, BoundStart, "31/01/2024"), ErrInvalidDate)
	require.ErrorIs(t, ctrl.SetDateBound(ctx, Bound("middle"), "2024-01-31"), ErrInvalidDate)
	require.ErrorIs(t, ctrl.SetPeriod(ctx, "week"), ErrInvalidPeriod)
	require.ErrorIs(t, ctrl.SetMode(ctx, "fleet"), ErrInvalidMode)
	assert.True(t, ctrl.State().IsZero())
	assert.Equal(t, 1, q.callCount())
}

func TestFetchFailureKeepsFiltersAndLastStats(t *testing.T) {
	q := newFakeQuery()
	rec := &outcomeRecorder{}
	ctrl := newReadyController(t, q, WithObserver(rec))
	before, _ := ctrl.Stats()

	q.respond = func(call int, params Params) (assets.DashboardStats, error) {
		return assets.DashboardStats{}, errors.New("502 bad gateway")
	}
	err := ctrl.ToggleCategory(context.Background(), id(2))
	require.ErrorIs(t, err, ErrFetchFailure)
	assert.Equal(t, []int64{2}, ctrl.State().Categories, "filter state is not rolled back")

	after, ok := ctrl.Stats()
	assert.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{OutcomeSuccess, OutcomeFailure}, rec.outcomes)
}

func TestSupersededRefreshNeverOverwritesLaterIntent(t *testing.T) {
	q := newFakeQuery()
	rec := &outcomeRecorder{}
	ctrl := newReadyController(t, q, WithObserver(rec))

	entered := make(chan struct{})
	release := make(chan struct{})
	q.respond = func(call int, params Params) (assets.DashboardStats, error) {
		if call == 1 {
			close(entered)
			<-release
			return assets.DashboardStats{StateCounts: assets.StateCounts{Total: 111}}, nil
		}
		return assets.DashboardStats{StateCounts: assets.StateCounts{Total: 222}}, nil
	}

	slow := make(chan error, 1)
	go func() { slow <- ctrl.ToggleCategory(context.Background(), id(1)) }()
	<-entered

	require.NoError(t, ctrl.ToggleCategory(context.Background(), id(2)))
	close(release)
	require.ErrorIs(t, <-slow, ErrSuperseded)

	stats, ok := ctrl.Stats()
	require.True(t, ok)
	assert.Equal(t, int64(222), stats.Total)
	assert.Equal(t, []int64{1, 2}, ctrl.State().Categories)
	assert.Equal(t, []string{OutcomeSuccess, OutcomeSuccess, OutcomeSuperseded}, rec.outcomes)
}

func TestSupersededFailureIsNotReported(t *testing.T) {
	q := newFakeQuery()
	ctrl := newReadyController(t, q)

	entered := make(chan struct{})
	release := make(chan struct{})
	q.respond = func(call int, params Params) (assets.DashboardStats, error) {
		if call == 1 {
			close(entered)
			<-release
			return assets.DashboardStats{}, context.DeadlineExceeded
		}
		return assets.DashboardStats{StateCounts: assets.StateCounts{Total: 7}}, nil
	}

	slow := make(chan error, 1)
	go func() { slow <- ctrl.SetPeriod(context.Background(), assets.PeriodYear) }()
	<-entered
	require.NoError(t, ctrl.SetMode(context.Background(), assets.RadioModeStock))
	close(release)

	err := <-slow
	require.ErrorIs(t, err, ErrSuperseded)
	assert.NotErrorIs(t, err, ErrFetchFailure)
	stats, _ := ctrl.Stats()
	assert.Equal(t, int64(7), stats.Total)
}

func TestPlaceholderActivities(t *testing.T) {
	q := newFakeQuery()
	off := newReadyController(t, q)
	stats, _ := off.Stats()
	assert.Nil(t, stats.RecentActivities)

	on := newReadyController(t, q, WithPlaceholderActivities(true))
	stats, _ = on.Stats()
	require.Len(t, stats.RecentActivities, 3)
	assert.Equal(t, "Agus", stats.RecentActivities[0].User)

	q.respond = func(call int, params Params) (assets.DashboardStats, error) {
		return assets.DashboardStats{RecentActivities: []assets.Activity{}}, nil
	}
	require.NoError(t, on.RefreshStats(context.Background()))
	stats, _ = on.Stats()
	assert.Empty(t, stats.RecentActivities, "an explicit empty feed is kept")
}

func TestOpenFilteredView(t *testing.T) {
	q := newFakeQuery()
	nav := &recordingNavigator{}
	ctrl := NewController(q, nav)
	ctx := context.Background()
	require.NoError(t, ctrl.Initialize(ctx))
	require.NoError(t, ctrl.ToggleCategory(ctx, id(1)))

	req, err := ctrl.OpenFilteredView(ctx, TagAssigned, "")
	require.NoError(t, err)
	require.Len(t, nav.requests, 1)
	assert.Equal(t, req, nav.requests[0])
	assert.Equal(t, "Assigned IT Assets", req.Name)
	assert.Len(t, req.Predicate.Terms(), 3)

	_, err = ctrl.OpenFilteredView(ctx, TagAll, "vehicle")
	require.ErrorIs(t, err, ErrInvalidAssetType)

	nav.err = errors.New("view not found")
	_, err = ctrl.OpenFilteredView(ctx, TagAll, assets.AssetTypeOperation)
	require.ErrorIs(t, err, ErrNavigationFailure)
	assert.Equal(t, 2, q.callCount(), "navigation never refreshes stats")
}
