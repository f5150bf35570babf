package assets

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/itasset/internal/platform/db"
	"github.com/odyssey-erp/itasset/internal/predicate"
)

// AssetColumns is the field allow-list of the asset list view.
var AssetColumns = predicate.Columns{
	"id":          "a.id",
	"name":        "a.name",
	"asset_tag":   "a.asset_tag",
	"state":       "a.state",
	"condition":   "a.condition",
	"asset_type":  "a.asset_type",
	"category_id": "a.category_id",
	"employee":    "a.employee",
	"unit_id":     "a.unit_id",
	"create_date": "a.created_at",
}

// MaintenanceColumns is the field allow-list of the maintenance list view.
var MaintenanceColumns = predicate.Columns{
	"id":                  "m.id",
	"asset_id":            "m.asset_id",
	"asset_id.asset_type": "a.asset_type",
	"maintenance_type":    "m.maintenance_type",
	"maintenance_date":    "m.maintenance_date",
	"technician":          "m.technician",
}

const (
	printerPattern = "%printer%"
	radioPattern   = "%radio%"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

func applyWhere(b sq.SelectBuilder, conds ...sq.Sqlizer) sq.SelectBuilder {
	for _, cond := range conds {
		if cond != nil {
			b = b.Where(cond)
		}
	}
	return b
}

// dateWindow bounds a timestamp or date column; the end date includes the whole day.
func dateWindow(col string, start, end *time.Time) sq.Sqlizer {
	var and sq.And
	if start != nil {
		and = append(and, sq.GtOrEq{col: *start})
	}
	if end != nil {
		and = append(and, sq.Lt{col: end.AddDate(0, 0, 1)})
	}
	if len(and) == 0 {
		return nil
	}
	return and
}

func categoryScope(col string, ids []int64) sq.Sqlizer {
	if len(ids) == 0 {
		return nil
	}
	return sq.Eq{col: ids}
}

// ListCategories returns asset categories ordered by name.
func (r *PGRepository) ListCategories(ctx context.Context) ([]CategoryRef, error) {
	query, args, err := psql.Select("id", "name", "is_consumable").
		From("asset_categories").
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.scanCategories(ctx, query, args...)
}

// ListFleetCategories returns active fleet unit categories ordered by name.
func (r *PGRepository) ListFleetCategories(ctx context.Context) ([]CategoryRef, error) {
	query, args, err := psql.Select("id", "name", "false").
		From("fleet_categories").
		Where(sq.Eq{"active": true}).
		OrderBy("name", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	return r.scanCategories(ctx, query, args...)
}

func (r *PGRepository) scanCategories(ctx context.Context, query string, args ...any) ([]CategoryRef, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryRef
	for rows.Next() {
		var ref CategoryRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.IsConsumable); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// CountByState counts assets of one type by state and condition. The category
// scope only applies to IT assets.
func (r *PGRepository) CountByState(ctx context.Context, assetType AssetType, filter StatsFilter) (StateCounts, error) {
	b := psql.Select(
		"COUNT(*)",
		"COUNT(*) FILTER (WHERE a.state = 'available')",
		"COUNT(*) FILTER (WHERE a.state = 'in_use')",
		"COUNT(*) FILTER (WHERE a.state = 'repair')",
		"COUNT(*) FILTER (WHERE a.state = 'retired')",
		"COUNT(*) FILTER (WHERE a.condition = 'broken')",
		"COUNT(*) FILTER (WHERE a.condition = 'broken' OR a.state = 'retired')",
	).From("assets a").
		Where(sq.Eq{"a.asset_type": string(assetType)})
	if assetType == AssetTypeIT {
		b = applyWhere(b, categoryScope("a.category_id", filter.CategoryIDs))
	}
	b = applyWhere(b, dateWindow("a.created_at", filter.DateStart, filter.DateEnd))
	query, args, err := b.ToSql()
	if err != nil {
		return StateCounts{}, err
	}
	var c StateCounts
	err = r.pool.QueryRow(ctx, query, args...).Scan(&c.Total, &c.Available, &c.InUse, &c.Repair, &c.Retired, &c.Broken, &c.Unavailable)
	return c, err
}

// CategoryDistribution counts IT assets per category, including empty categories.
func (r *PGRepository) CategoryDistribution(ctx context.Context, filter StatsFilter) ([]CategoryCount, error) {
	join := "assets a ON a.category_id = c.id AND a.asset_type = 'it'"
	var joinArgs []any
	if filter.DateStart != nil {
		join += " AND a.created_at >= ?"
		joinArgs = append(joinArgs, *filter.DateStart)
	}
	if filter.DateEnd != nil {
		join += " AND a.created_at < ?"
		joinArgs = append(joinArgs, filter.DateEnd.AddDate(0, 0, 1))
	}
	b := psql.Select("c.id", "c.name", "COUNT(a.id)").
		From("asset_categories c").
		LeftJoin(join, joinArgs...).
		GroupBy("c.id", "c.name")
	b = applyWhere(b, categoryScope("c.id", filter.CategoryIDs))
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryCount
	for rows.Next() {
		var row CategoryCount
		if err := rows.Scan(&row.ID, &row.Name, &row.Count); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MaintenanceCount counts maintenance records within the date window.
func (r *PGRepository) MaintenanceCount(ctx context.Context, filter StatsFilter) (int64, error) {
	b := psql.Select("COUNT(*)").From("maintenance_logs m")
	b = applyWhere(b, dateWindow("m.maintenance_date", filter.DateStart, filter.DateEnd))
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var count int64
	err = r.pool.QueryRow(ctx, query, args...).Scan(&count)
	return count, err
}

func printerReadings(cols ...string) sq.SelectBuilder {
	return psql.Select(cols...).
		From("printer_readings pr").
		Join("assets a ON a.id = pr.asset_id").
		Join("asset_categories c ON c.id = a.category_id").
		Where(sq.ILike{"c.name": printerPattern})
}

// PrinterUsage sums printed page diffs between start and end inclusive.
func (r *PGRepository) PrinterUsage(ctx context.Context, start, end time.Time) (bw, color int64, err error) {
	query, args, err := printerReadings("COALESCE(SUM(pr.bw_diff), 0)", "COALESCE(SUM(pr.color_diff), 0)").
		Where(sq.GtOrEq{"pr.reading_date": start}).
		Where(sq.LtOrEq{"pr.reading_date": end}).
		ToSql()
	if err != nil {
		return 0, 0, err
	}
	err = r.pool.QueryRow(ctx, query, args...).Scan(&bw, &color)
	return bw, color, err
}

// TopPrinters ranks printers by printed pages between start and end inclusive.
func (r *PGRepository) TopPrinters(ctx context.Context, start, end time.Time, limit int) ([]PrinterUsage, error) {
	query, args, err := printerReadings("a.id", "a.name", "COALESCE(SUM(pr.pages_diff), 0) AS pages").
		Where(sq.GtOrEq{"pr.reading_date": start}).
		Where(sq.LtOrEq{"pr.reading_date": end}).
		GroupBy("a.id", "a.name").
		OrderBy("pages DESC", "a.name").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PrinterUsage
	for rows.Next() {
		var row PrinterUsage
		if err := rows.Scan(&row.AssetID, &row.Name, &row.Pages); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RadioGroups counts radios. Unit mode groups installed radios by fleet
// category; stock mode groups uninstalled radios by state.
func (r *PGRepository) RadioGroups(ctx context.Context, mode RadioMode, fleetCategoryIDs []int64) ([]GroupCount, error) {
	var b sq.SelectBuilder
	switch mode {
	case RadioModeStock:
		b = psql.Select("a.state", "COUNT(*)").
			From("assets a").
			Join("asset_categories c ON c.id = a.category_id").
			Where(sq.ILike{"c.name": radioPattern}).
			Where(sq.Eq{"a.unit_id": nil}).
			GroupBy("a.state").
			OrderBy("a.state")
	default:
		b = psql.Select("fc.name", "COUNT(*)").
			From("assets a").
			Join("asset_categories c ON c.id = a.category_id").
			Join("fleet_units u ON u.id = a.unit_id").
			Join("fleet_categories fc ON fc.id = u.category_id").
			Where(sq.ILike{"c.name": radioPattern}).
			GroupBy("fc.name").
			OrderBy("fc.name")
		b = applyWhere(b, categoryScope("fc.id", fleetCategoryIDs))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GroupCount
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Label, &g.Count); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// FleetSummary counts active fleet units per category and the operation
// assets installed in them.
func (r *PGRepository) FleetSummary(ctx context.Context, fleetCategoryIDs []int64) ([]FleetCategoryStats, error) {
	b := psql.Select(
		"fc.id",
		"fc.name",
		"COUNT(DISTINCT u.id)",
		"COUNT(DISTINCT a.unit_id)",
		"COUNT(a.id)",
	).From("fleet_categories fc").
		LeftJoin("fleet_units u ON u.category_id = fc.id AND u.active").
		LeftJoin("assets a ON a.unit_id = u.id AND a.asset_type = 'operation'").
		Where(sq.Eq{"fc.active": true}).
		GroupBy("fc.id", "fc.name").
		OrderBy("fc.name")
	b = applyWhere(b, categoryScope("fc.id", fleetCategoryIDs))
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FleetCategoryStats
	for rows.Next() {
		var row FleetCategoryStats
		if err := rows.Scan(&row.ID, &row.Name, &row.Units, &row.UnitsWithAssets, &row.InstalledAssets); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Comparison returns state counters per requested category.
func (r *PGRepository) Comparison(ctx context.Context, categoryIDs []int64) ([]ComparisonRow, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	query, args, err := psql.Select(
		"c.id",
		"c.name",
		"COUNT(a.id) FILTER (WHERE a.state = 'available')",
		"COUNT(a.id) FILTER (WHERE a.state = 'in_use')",
		"COUNT(a.id) FILTER (WHERE a.state = 'repair')",
		"COUNT(a.id) FILTER (WHERE a.state = 'retired')",
	).From("asset_categories c").
		LeftJoin("assets a ON a.category_id = c.id").
		Where(sq.Eq{"c.id": categoryIDs}).
		GroupBy("c.id", "c.name").
		OrderBy("c.name").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ComparisonRow
	for rows.Next() {
		var row ComparisonRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Available, &row.InUse, &row.Repair, &row.Retired); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RecentActivities returns the newest activity records.
func (r *PGRepository) RecentActivities(ctx context.Context, limit int) ([]ActivityRecord, error) {
	query, args, err := psql.Select("id", "activity_type", "title", "actor", "status", "occurred_at").
		From("asset_activities").
		OrderBy("occurred_at DESC", "id DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ActivityRecord
	for rows.Next() {
		var rec ActivityRecord
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Title, &rec.Actor, &rec.Status, &rec.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordActivity appends an entry to the activity feed.
func (r *PGRepository) RecordActivity(ctx context.Context, rec ActivityRecord) error {
	query, args, err := psql.Insert("asset_activities").
		Columns("activity_type", "title", "actor", "status", "occurred_at").
		Values(rec.Type, rec.Title, rec.Actor, rec.Status, rec.OccurredAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query, args...)
	return err
}

func assetSelect() sq.SelectBuilder {
	return psql.Select(
		"a.id", "a.name", "COALESCE(a.model, '')", "COALESCE(a.asset_tag, '')",
		"a.category_id", "COALESCE(c.name, '')", "a.asset_type", "a.state", "a.condition",
		"COALESCE(c.is_consumable, FALSE)", "COALESCE(a.employee, '')", "a.unit_id",
		"COALESCE(u.name, '')", "a.created_at",
	).From("assets a").
		LeftJoin("asset_categories c ON c.id = a.category_id").
		LeftJoin("fleet_units u ON u.id = a.unit_id")
}

func scanAsset(row pgx.Row) (Asset, error) {
	var (
		a          Asset
		categoryID pgtype.Int8
		unitID     pgtype.Int8
		assetType  string
		state      string
		condition  string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Model, &a.AssetTag, &categoryID, &a.CategoryName,
		&assetType, &state, &condition, &a.IsConsumable, &a.Employee, &unitID, &a.UnitName,
		&a.CreatedAt); err != nil {
		return Asset{}, err
	}
	a.CategoryID = int8Ptr(categoryID)
	a.UnitID = int8Ptr(unitID)
	a.AssetType = AssetType(assetType)
	a.State = State(state)
	a.Condition = Condition(condition)
	return a, nil
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

// GetAsset loads one asset.
func (r *PGRepository) GetAsset(ctx context.Context, id int64) (Asset, error) {
	query, args, err := assetSelect().Where(sq.Eq{"a.id": id}).ToSql()
	if err != nil {
		return Asset{}, err
	}
	a, err := scanAsset(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, ErrNotFound
	}
	return a, err
}

// ListAssets lists assets matching the predicate.
func (r *PGRepository) ListAssets(ctx context.Context, pred predicate.Expr, page Page) ([]Asset, error) {
	cond, err := pred.Sqlizer(AssetColumns)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	query, args, err := applyWhere(assetSelect(), cond).
		OrderBy("a.name", "a.id").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListMaintenance lists maintenance records matching the predicate.
func (r *PGRepository) ListMaintenance(ctx context.Context, pred predicate.Expr, page Page) ([]MaintenanceLog, error) {
	cond, err := pred.Sqlizer(MaintenanceColumns)
	if err != nil {
		return nil, err
	}
	page = page.Normalize()
	query, args, err := applyWhere(psql.Select(
		"m.id", "m.asset_id", "a.name", "a.asset_type", "m.maintenance_date", "m.maintenance_type",
		"COALESCE(m.description, '')", "m.cost::float8", "COALESCE(m.technician, '')",
	).From("maintenance_logs m").
		Join("assets a ON a.id = m.asset_id"), cond).
		OrderBy("m.maintenance_date DESC", "m.id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MaintenanceLog
	for rows.Next() {
		var (
			m         MaintenanceLog
			assetType string
		)
		if err := rows.Scan(&m.ID, &m.AssetID, &m.AssetName, &assetType, &m.Date, &m.Type, &m.Description, &m.Cost, &m.Technician); err != nil {
			return nil, err
		}
		m.AssetType = AssetType(assetType)
		out = append(out, m)
	}
	return out, rows.Err()
}

const readingColumns = "id, asset_id, reading_date, color_pages, bw_pages, total_pages, pages_diff, bw_diff, color_diff, COALESCE(remarks, '')"

func scanReading(row pgx.Row) (PrinterReading, error) {
	var pr PrinterReading
	err := row.Scan(&pr.ID, &pr.AssetID, &pr.Date, &pr.ColorPages, &pr.BWPages, &pr.TotalPages,
		&pr.PagesDiff, &pr.BWDiff, &pr.ColorDiff, &pr.Remarks)
	return pr, err
}

// LatestReading returns the newest reading of the asset dated on or before onOrBefore.
func (r *PGRepository) LatestReading(ctx context.Context, assetID int64, onOrBefore time.Time) (PrinterReading, bool, error) {
	query, args, err := psql.Select(readingColumns).
		From("printer_readings").
		Where(sq.Eq{"asset_id": assetID}).
		Where(sq.LtOrEq{"reading_date": onOrBefore}).
		OrderBy("reading_date DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return PrinterReading{}, false, err
	}
	pr, err := scanReading(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return PrinterReading{}, false, nil
	}
	if err != nil {
		return PrinterReading{}, false, err
	}
	return pr, true, nil
}

// InsertReading stores a reading with its computed diffs. The printer row is
// locked for the duration so concurrent readings of one printer serialise, and
// the counter is checked again against the newest stored reading.
func (r *PGRepository) InsertReading(ctx context.Context, pr PrinterReading) (int64, error) {
	latest, latestArgs, err := psql.Select("total_pages").
		From("printer_readings").
		Where(sq.Eq{"asset_id": pr.AssetID}).
		Where(sq.LtOrEq{"reading_date": pr.Date}).
		OrderBy("reading_date DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return 0, err
	}
	insert, args, err := psql.Insert("printer_readings").
		Columns("asset_id", "reading_date", "color_pages", "bw_pages", "total_pages", "pages_diff", "bw_diff", "color_diff", "remarks").
		Values(pr.AssetID, pr.Date, pr.ColorPages, pr.BWPages, pr.TotalPages, pr.PagesDiff, pr.BWDiff, pr.ColorDiff, pr.Remarks).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	err = db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT id FROM assets WHERE id = $1 FOR UPDATE`, pr.AssetID); err != nil {
			return fmt.Errorf("lock printer: %w", err)
		}
		var prev int64
		switch err := tx.QueryRow(ctx, latest, latestArgs...).Scan(&prev); {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return fmt.Errorf("previous reading: %w", err)
		case pr.TotalPages < prev:
			return fmt.Errorf("%w (%d pages)", ErrCounterDecreased, prev)
		}
		if err := tx.QueryRow(ctx, insert, args...).Scan(&id); err != nil {
			return fmt.Errorf("insert printer reading: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ListReadings lists readings of one printer, newest first.
func (r *PGRepository) ListReadings(ctx context.Context, assetID int64, page Page) ([]PrinterReading, error) {
	page = page.Normalize()
	query, args, err := psql.Select(readingColumns).
		From("printer_readings").
		Where(sq.Eq{"asset_id": assetID}).
		OrderBy("reading_date DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PrinterReading
	for rows.Next() {
		pr, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

// GetCategory loads one asset category.
func (r *PGRepository) GetCategory(ctx context.Context, id int64) (CategoryRef, error) {
	var ref CategoryRef
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, is_consumable FROM asset_categories WHERE id = $1`, id,
	).Scan(&ref.ID, &ref.Name, &ref.IsConsumable)
	if errors.Is(err, pgx.ErrNoRows) {
		return CategoryRef{}, ErrNotFound
	}
	return ref, err
}

// CreateAsset inserts an asset and returns its ID. The asset tag rule is
// enforced by a trigger and surfaces as ErrAssetTagRequired.
func (r *PGRepository) CreateAsset(ctx context.Context, a Asset) (int64, error) {
	query, args, err := psql.Insert("assets").
		Columns("name", "model", "asset_tag", "category_id", "asset_type", "state", "condition", "employee").
		Values(a.Name, nullString(a.Model), nullString(a.AssetTag), a.CategoryID, a.AssetType, a.State, a.Condition, nullString(a.Employee)).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

// AssignAsset opens an assignment and hands the asset to the employee. The
// asset row stays locked until the assignment is stored.
func (r *PGRepository) AssignAsset(ctx context.Context, a Assignment) (Assignment, error) {
	err := db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		asset, err := lockAsset(ctx, tx, a.AssetID)
		if err != nil {
			return err
		}
		if asset.IsConsumable {
			return ErrConsumableAssignment
		}
		a.AssetName = asset.Name
		if err := tx.QueryRow(ctx, `
			INSERT INTO asset_assignments (asset_id, employee, assigned_on, notes, state)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			a.AssetID, a.Employee, a.AssignedOn, nullString(a.Notes), LoanActive,
		).Scan(&a.ID); err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE assets SET employee = $2, state = $3 WHERE id = $1`,
			a.AssetID, a.Employee, StateForEmployee(asset.State, a.Employee))
		return err
	})
	if err != nil {
		return Assignment{}, mapWriteError(err)
	}
	a.State = LoanActive
	return a, nil
}

// ReturnAssignment closes an open assignment on the given day. When the asset
// is still held by the assignment's employee it is released and made
// available. The asset is returned as it stands after the update.
func (r *PGRepository) ReturnAssignment(ctx context.Context, id int64, on time.Time) (Assignment, Asset, error) {
	var (
		a     Assignment
		asset Asset
	)
	err := db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var err error
		a, err = scanAssignment(tx.QueryRow(ctx, assignmentSelect+` WHERE s.id = $1 FOR UPDATE OF s`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("assignment %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if a.State == LoanReturned {
			return fmt.Errorf("assignment %d: %w", id, ErrAlreadyReturned)
		}
		if _, err := tx.Exec(ctx, `UPDATE asset_assignments SET returned_on = $2, state = $3 WHERE id = $1`,
			id, on, LoanReturned); err != nil {
			return fmt.Errorf("close assignment: %w", err)
		}
		a.ReturnedOn, a.State = &on, LoanReturned

		if asset, err = lockAsset(ctx, tx, a.AssetID); err != nil {
			return err
		}
		if !a.Releases(asset) {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE assets SET employee = NULL, state = $2 WHERE id = $1`,
			asset.ID, StateAvailable); err != nil {
			return fmt.Errorf("release asset: %w", err)
		}
		asset.Employee, asset.State = "", StateAvailable
		return nil
	})
	if err != nil {
		return Assignment{}, Asset{}, err
	}
	return a, asset, nil
}

// ListAssignments lists the assignment history of one asset, newest first.
func (r *PGRepository) ListAssignments(ctx context.Context, assetID int64, page Page) ([]Assignment, error) {
	page = page.Normalize()
	rows, err := r.pool.Query(ctx,
		assignmentSelect+` WHERE s.asset_id = $1 ORDER BY s.assigned_on DESC, s.id DESC LIMIT $2 OFFSET $3`,
		assetID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Assignment, error) {
		return scanAssignment(row)
	})
}

// SwapAsset installs the asset in a fleet unit and opens a swap entry.
func (r *PGRepository) SwapAsset(ctx context.Context, s Swap) (Swap, error) {
	err := db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		asset, err := lockAsset(ctx, tx, s.AssetID)
		if err != nil {
			return err
		}
		s.AssetName = asset.Name
		err = tx.QueryRow(ctx, `SELECT name FROM fleet_units WHERE id = $1`, s.UnitID).Scan(&s.UnitName)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("fleet unit %d: %w", s.UnitID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO asset_swaps (asset_id, unit_id, swapped_on, notes, state)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			s.AssetID, s.UnitID, s.SwappedOn, nullString(s.Notes), LoanActive,
		).Scan(&s.ID); err != nil {
			return fmt.Errorf("insert swap: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE assets SET unit_id = $2, state = $3 WHERE id = $1`,
			s.AssetID, s.UnitID, stateForHolder(asset.State, true))
		return err
	})
	if err != nil {
		return Swap{}, mapWriteError(err)
	}
	s.State = LoanActive
	return s, nil
}

// ReturnSwap closes an open swap. An asset still installed in the swap's unit
// is taken out of it and made available.
func (r *PGRepository) ReturnSwap(ctx context.Context, id int64, on time.Time) (Swap, Asset, error) {
	var (
		s     Swap
		asset Asset
	)
	err := db.WithTx(ctx, r.pool, pgx.ReadCommitted, func(tx pgx.Tx) error {
		var err error
		s, err = scanSwap(tx.QueryRow(ctx, swapSelect+` WHERE s.id = $1 FOR UPDATE OF s`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("swap %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if s.State == LoanReturned {
			return fmt.Errorf("swap %d: %w", id, ErrAlreadyReturned)
		}
		if _, err := tx.Exec(ctx, `UPDATE asset_swaps SET returned_on = $2, state = $3 WHERE id = $1`,
			id, on, LoanReturned); err != nil {
			return fmt.Errorf("close swap: %w", err)
		}
		s.ReturnedOn, s.State = &on, LoanReturned

		if asset, err = lockAsset(ctx, tx, s.AssetID); err != nil {
			return err
		}
		if !s.Releases(asset) {
			return nil
		}
		if _, err := tx.Exec(ctx, `UPDATE assets SET unit_id = NULL, state = $2 WHERE id = $1`,
			asset.ID, StateAvailable); err != nil {
			return fmt.Errorf("release asset: %w", err)
		}
		asset.UnitID, asset.UnitName, asset.State = nil, "", StateAvailable
		return nil
	})
	if err != nil {
		return Swap{}, Asset{}, err
	}
	return s, asset, nil
}

// ListSwaps lists the unit swap history of one asset, newest first.
func (r *PGRepository) ListSwaps(ctx context.Context, assetID int64, page Page) ([]Swap, error) {
	page = page.Normalize()
	rows, err := r.pool.Query(ctx,
		swapSelect+` WHERE s.asset_id = $1 ORDER BY s.swapped_on DESC, s.id DESC LIMIT $2 OFFSET $3`,
		assetID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Swap, error) {
		return scanSwap(row)
	})
}

const assignmentSelect = `
	SELECT s.id, s.asset_id, a.name, s.employee, s.assigned_on, s.returned_on, COALESCE(s.notes, ''), s.state
	FROM asset_assignments s
	JOIN assets a ON a.id = s.asset_id`

func scanAssignment(row pgx.Row) (Assignment, error) {
	var (
		a        Assignment
		returned pgtype.Date
		state    string
	)
	if err := row.Scan(&a.ID, &a.AssetID, &a.AssetName, &a.Employee, &a.AssignedOn, &returned, &a.Notes, &state); err != nil {
		return Assignment{}, err
	}
	a.ReturnedOn = datePtr(returned)
	a.State = LoanState(state)
	return a, nil
}

const swapSelect = `
	SELECT s.id, s.asset_id, a.name, s.unit_id, u.name, s.swapped_on, s.returned_on, COALESCE(s.notes, ''), s.state
	FROM asset_swaps s
	JOIN assets a ON a.id = s.asset_id
	JOIN fleet_units u ON u.id = s.unit_id`

func scanSwap(row pgx.Row) (Swap, error) {
	var (
		s        Swap
		returned pgtype.Date
		state    string
	)
	if err := row.Scan(&s.ID, &s.AssetID, &s.AssetName, &s.UnitID, &s.UnitName, &s.SwappedOn, &returned, &s.Notes, &state); err != nil {
		return Swap{}, err
	}
	s.ReturnedOn = datePtr(returned)
	s.State = LoanState(state)
	return s, nil
}

func datePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// lockAsset loads an asset and holds its row lock for the rest of tx.
func lockAsset(ctx context.Context, tx pgx.Tx, id int64) (Asset, error) {
	query, args, err := assetSelect().Where(sq.Eq{"a.id": id}).Suffix("FOR UPDATE OF a").ToSql()
	if err != nil {
		return Asset{}, err
	}
	asset, err := scanAsset(tx.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Asset{}, fmt.Errorf("asset %d: %w", id, ErrNotFound)
	}
	return asset, err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// mapWriteError translates constraint violations raised by the schema.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.ConstraintName == "assets_asset_tag_required":
		return ErrAssetTagRequired
	case pgErr.Code == "23503":
		return fmt.Errorf("%w: %s", ErrNotFound, pgErr.Detail)
	case pgErr.Code == "23505":
		return fmt.Errorf("%w: %s", ErrInvalidAsset, pgErr.Detail)
	}
	return err
}
