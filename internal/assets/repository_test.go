package assets

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/odyssey-erp/itasset/internal/platform/migrate"
	"github.com/odyssey-erp/itasset/internal/predicate"
	"github.com/odyssey-erp/itasset/migrations"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("itasset"),
		postgres.WithUsername("itasset"),
		postgres.WithPassword("itasset"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := migrate.Open(dsn)
	require.NoError(t, err)
	_, err = migrate.Up(db, migrations.FS)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func seed(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	stmts := []string{
		`INSERT INTO asset_categories (id, name, is_consumable) VALUES (1, 'Laptop', false), (2, 'Printer', false), (3, 'Radio HT', false), (4, 'Toner', true)`,
		`INSERT INTO fleet_categories (id, name, code) VALUES (1, 'Bus', 'BUS'), (2, 'Truck', 'TRK')`,
		`INSERT INTO fleet_units (id, name, category_id) VALUES (1, 'BUS-01', 1), (2, 'TRK-01', 2), (3, 'TRK-02', 2)`,
		`INSERT INTO assets (id, name, asset_tag, category_id, asset_type, state, condition, unit_id, created_at) VALUES
			(1, 'ThinkPad A', 'L-1', 1, 'it', 'available', 'good', NULL, '2024-01-05'),
			(2, 'ThinkPad B', 'L-2', 1, 'it', 'in_use', 'broken', NULL, '2024-01-31 18:00'),
			(3, 'LaserJet', 'P-1', 2, 'it', 'retired', 'good', NULL, '2024-02-10'),
			(4, 'Radio 1', 'R-1', 3, 'operation', 'in_use', 'good', 1, '2024-01-10'),
			(5, 'Radio 2', 'R-2', 3, 'operation', 'in_use', 'good', 2, '2024-01-10'),
			(6, 'Radio 3', 'R-3', 3, 'operation', 'available', 'good', NULL, '2024-01-10')`,
		`INSERT INTO maintenance_logs (asset_id, maintenance_date, maintenance_type) VALUES (1, '2024-01-20', 'repair'), (4, '2024-03-01', 'preventive')`,
		`INSERT INTO printer_readings (asset_id, reading_date, color_pages, bw_pages, total_pages, pages_diff, bw_diff, color_diff) VALUES
			(3, '2024-01-01', 10, 90, 100, 0, 0, 0),
			(3, '2024-01-15', 30, 170, 200, 100, 80, 20)`,
	}
	for _, stmt := range stmts {
		_, err := pool.Exec(context.Background(), stmt)
		require.NoError(t, err)
	}
}

func TestRepositoryAggregates(t *testing.T) {
	pool := newTestPool(t)
	seed(t, pool)
	repo := NewRepository(pool)
	ctx := context.Background()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	filter := StatsFilter{DateStart: &start, DateEnd: &end}

	counts, err := repo.CountByState(ctx, AssetTypeIT, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.Total, "end date includes the whole day")
	assert.Equal(t, int64(1), counts.Broken)
	assert.Equal(t, int64(1), counts.Unavailable)

	ops, err := repo.CountByState(ctx, AssetTypeOperation, StatsFilter{CategoryIDs: []int64{1}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), ops.Total, "category scope only applies to it assets")

	dist, err := repo.CategoryDistribution(ctx, StatsFilter{CategoryIDs: []int64{1, 2}})
	require.NoError(t, err)
	assert.Len(t, dist, 2)

	maint, err := repo.MaintenanceCount(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), maint)

	bw, color, err := repo.PrinterUsage(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(80), bw)
	assert.Equal(t, int64(20), color)

	units, err := repo.RadioGroups(ctx, RadioModeUnit, nil)
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{{Label: "Bus", Count: 1}, {Label: "Truck", Count: 1}}, units)

	stock, err := repo.RadioGroups(ctx, RadioModeStock, nil)
	require.NoError(t, err)
	assert.Equal(t, []GroupCount{{Label: "available", Count: 1}}, stock)

	fleet, err := repo.FleetSummary(ctx, []int64{2})
	require.NoError(t, err)
	require.Len(t, fleet, 1)
	assert.Equal(t, int64(2), fleet[0].Units)
	assert.Equal(t, int64(1), fleet[0].UnitsWithAssets)
}

func TestRepositoryListsByPredicate(t *testing.T) {
	pool := newTestPool(t)
	seed(t, pool)
	repo := NewRepository(pool)
	ctx := context.Background()

	unavailable := predicate.And(
		predicate.Eq("asset_type", "it"),
		predicate.Or(predicate.Eq("condition", "broken"), predicate.Eq("state", "retired")),
	)
	rows, err := repo.ListAssets(ctx, unavailable, Page{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "LaserJet", rows[0].Name)

	logs, err := repo.ListMaintenance(ctx, predicate.Eq("asset_id.asset_type", "operation"), Page{})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, AssetTypeOperation, logs[0].AssetType)

	_, err = repo.ListAssets(ctx, predicate.Eq("password", "x"), Page{})
	require.ErrorIs(t, err, predicate.ErrUnknownField)
}

func TestRepositoryReadings(t *testing.T) {
	pool := newTestPool(t)
	seed(t, pool)
	repo := NewRepository(pool)
	ctx := context.Background()

	latest, ok, err := repo.LatestReading(ctx, 3, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), latest.TotalPages)

	_, ok, err = repo.LatestReading(ctx, 1, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := repo.InsertReading(ctx, PrinterReading{AssetID: 3, Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), TotalPages: 250, BWPages: 200, ColorPages: 50, PagesDiff: 50})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = repo.InsertReading(ctx, PrinterReading{AssetID: 3, Date: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), TotalPages: 240})
	require.ErrorIs(t, err, ErrCounterDecreased)

	list, err := repo.ListReadings(ctx, 3, Page{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, id, list[0].ID)

	_, err = repo.GetAsset(ctx, 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryAssignmentsAndSwaps(t *testing.T) {
	pool := newTestPool(t)
	seed(t, pool)
	repo := NewRepository(pool)
	ctx := context.Background()
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	a, err := repo.AssignAsset(ctx, Assignment{AssetID: 1, Employee: "Alice", AssignedOn: day})
	require.NoError(t, err)
	assert.Equal(t, "ThinkPad A", a.AssetName)
	asset, err := repo.GetAsset(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StateInUse, asset.State)
	assert.Equal(t, "Alice", asset.Employee)

	closed, released, err := repo.ReturnAssignment(ctx, a.ID, day.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, LoanReturned, closed.State)
	assert.Equal(t, StateAvailable, released.State)
	asset, err = repo.GetAsset(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, asset.Employee)
	assert.Equal(t, StateAvailable, asset.State)

	_, _, err = repo.ReturnAssignment(ctx, a.ID, day)
	require.ErrorIs(t, err, ErrAlreadyReturned)

	history, err := repo.ListAssignments(ctx, 1, Page{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].ReturnedOn)
	assert.True(t, day.AddDate(0, 0, 7).Equal(*history[0].ReturnedOn))

	sw, err := repo.SwapAsset(ctx, Swap{AssetID: 6, UnitID: 3, SwappedOn: day})
	require.NoError(t, err)
	assert.Equal(t, "TRK-02", sw.UnitName)
	asset, err = repo.GetAsset(ctx, 6)
	require.NoError(t, err)
	require.NotNil(t, asset.UnitID)
	assert.Equal(t, int64(3), *asset.UnitID)
	assert.Equal(t, StateInUse, asset.State)

	_, released, err = repo.ReturnSwap(ctx, sw.ID, day)
	require.NoError(t, err)
	assert.Nil(t, released.UnitID)
	swaps, err := repo.ListSwaps(ctx, 6, Page{})
	require.NoError(t, err)
	require.Len(t, swaps, 1)
	assert.Equal(t, LoanReturned, swaps[0].State)

	_, err = repo.SwapAsset(ctx, Swap{AssetID: 6, UnitID: 99, SwappedOn: day})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRepositoryEnforcesAssetRules(t *testing.T) {
	pool := newTestPool(t)
	seed(t, pool)
	repo := NewRepository(pool)
	ctx := context.Background()
	_, err := pool.Exec(ctx, `SELECT setval('assets_id_seq', 100)`)
	require.NoError(t, err)
	laptop, toner := int64(1), int64(4)

	_, err = repo.CreateAsset(ctx, Asset{Name: "No tag", CategoryID: &laptop, AssetType: AssetTypeIT, State: StateAvailable, Condition: ConditionGood})
	require.ErrorIs(t, err, ErrAssetTagRequired)

	id, err := repo.CreateAsset(ctx, Asset{Name: "Toner 58A", CategoryID: &toner, AssetType: AssetTypeIT, State: StateAvailable, Condition: ConditionGood})
	require.NoError(t, err)
	created, err := repo.GetAsset(ctx, id)
	require.NoError(t, err)
	assert.True(t, created.IsConsumable)
	assert.Empty(t, created.AssetTag)

	_, err = repo.AssignAsset(ctx, Assignment{AssetID: id, Employee: "Alice", AssignedOn: time.Now()})
	require.ErrorIs(t, err, ErrConsumableAssignment)

	_, err = pool.Exec(ctx, `UPDATE assets SET asset_tag = NULL WHERE id = 1`)
	require.Error(t, err)
}
