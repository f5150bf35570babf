package assets

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout          = "2006-01-02"
	categoryTopN        = 10
	recentActivityLimit = 10
	topPrinterLimit     = 5
)

// Filter parameter names accepted by the stats query.
const (
	ParamCategoryID       = "category_id"
	ParamCategoryIDs      = "category_ids"
	ParamCompCategoryIDs  = "comp_asset_cat_ids"
	ParamFleetCategoryIDs = "fleet_category_ids"
	ParamDateStart        = "date_start"
	ParamDateEnd          = "date_end"
	ParamPrinterPeriod    = "printer_period"
	ParamRadioMode        = "radio_mode"
)

// StateCounts holds asset counters by lifecycle state.
type StateCounts struct {
	Total       int64 `json:"total_assets"`
	Available   int64 `json:"available"`
	InUse       int64 `json:"in_use"`
	Repair      int64 `json:"repair"`
	Retired     int64 `json:"retired"`
	Broken      int64 `json:"broken"`
	Unavailable int64 `json:"unavailable"`
}

// CategoryCount is one bar of the category distribution.
type CategoryCount struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// StateSlice is one slice of the state distribution pie.
type StateSlice struct {
	State State  `json:"state"`
	Label string `json:"label"`
	Value int64  `json:"value"`
	Color string `json:"color"`
}

// PrinterUsage is the printed volume of one printer within the window.
type PrinterUsage struct {
	AssetID int64  `json:"asset_id"`
	Name    string `json:"name"`
	Pages   int64  `json:"pages"`
}

// PrinterStats summarises printer meter readings within a period window.
type PrinterStats struct {
	Period      PrinterPeriod  `json:"period"`
	WindowStart string         `json:"window_start"`
	WindowEnd   string         `json:"window_end"`
	TotalPages  int64          `json:"total_pages"`
	BWPages     int64          `json:"bw_pages"`
	ColorPages  int64          `json:"color_pages"`
	ColorRatio  float64        `json:"color_ratio"`
	TopPrinters []PrinterUsage `json:"top_printers"`
}

// GroupCount is a labelled counter.
type GroupCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// RadioStats groups radios according to the selected mode.
type RadioStats struct {
	Mode   RadioMode    `json:"mode"`
	Total  int64        `json:"total"`
	Groups []GroupCount `json:"groups"`
}

// FleetCategoryStats summarises fleet units of one fleet category.
type FleetCategoryStats struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Units           int64  `json:"units"`
	UnitsWithAssets int64  `json:"units_with_assets"`
	InstalledAssets int64  `json:"installed_assets"`
}

// FleetStats summarises fleet units and the operation assets installed in them.
type FleetStats struct {
	TotalUnits      int64                `json:"total_units"`
	UnitsWithAssets int64                `json:"units_with_assets"`
	InstalledAssets int64                `json:"installed_assets"`
	Categories      []FleetCategoryStats `json:"categories"`
}

// ComparisonRow compares state counters of one selected category.
type ComparisonRow struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Available int64  `json:"available"`
	InUse     int64  `json:"in_use"`
	Repair    int64  `json:"repair"`
	Retired   int64  `json:"retired"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	User   string `json:"user"`
	Time   string `json:"time"`
	Status string `json:"status"`
}

// DashboardStats is the aggregate payload returned by the stats query.
type DashboardStats struct {
	StateCounts
	OperationAssets      StateCounts     `json:"operation_assets"`
	MaintenanceLogs      int64           `json:"maintenance_logs"`
	CategoryDistribution []CategoryCount `json:"category_distribution"`
	StateDistribution    []StateSlice    `json:"state_distribution"`
	Printer              PrinterStats    `json:"printer"`
	Radio                RadioStats      `json:"radio"`
	Fleet                FleetStats      `json:"fleet"`
	Comparison           []ComparisonRow `json:"comparison,omitempty"`
	RecentActivities     []Activity      `json:"recent_activities"`
}

// StatsFilter scopes the aggregate query. Empty fields mean "unfiltered".
type StatsFilter struct {
	CategoryIDs      []int64
	CompCategoryIDs  []int64
	FleetCategoryIDs []int64
	DateStart        *time.Time
	DateEnd          *time.Time
	PrinterPeriod    PrinterPeriod
	RadioMode        RadioMode
}

// ParseStatsRequest converts the query mapping into a StatsFilter. Values may
// come straight from a JSON decoder, so numbers arrive as float64 and lists as
// []any.
func ParseStatsRequest(params map[string]any) (StatsFilter, error) {
	var f StatsFilter
	for key, raw := range params {
		if raw == nil {
			continue
		}
		var err error
		switch key {
		case ParamCategoryID:
			var id int64
			id, err = toInt64(raw)
			if err == nil {
				f.CategoryIDs = appendUnique(f.CategoryIDs, id)
			}
		case ParamCategoryIDs:
			var ids []int64
			ids, err = toInt64s(raw)
			for _, id := range ids {
				f.CategoryIDs = appendUnique(f.CategoryIDs, id)
			}
		case ParamCompCategoryIDs:
			f.CompCategoryIDs, err = toInt64s(raw)
		case ParamFleetCategoryIDs:
			f.FleetCategoryIDs, err = toInt64s(raw)
		case ParamDateStart:
			f.DateStart, err = toDate(raw)
		case ParamDateEnd:
			f.DateEnd, err = toDate(raw)
		case ParamPrinterPeriod:
			f.PrinterPeriod = PrinterPeriod(fmt.Sprint(raw))
			if !f.PrinterPeriod.Valid() {
				err = fmt.Errorf("unknown period %q", raw)
			}
		case ParamRadioMode:
			f.RadioMode = RadioMode(fmt.Sprint(raw))
			if !f.RadioMode.Valid() {
				err = fmt.Errorf("unknown mode %q", raw)
			}
		default:
			err = fmt.Errorf("unexpected parameter")
		}
		if err != nil {
			return StatsFilter{}, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, key, err)
		}
	}
	return f.normalized(), nil
}

func (f StatsFilter) normalized() StatsFilter {
	sortIDs(f.CategoryIDs)
	sortIDs(f.CompCategoryIDs)
	sortIDs(f.FleetCategoryIDs)
	if f.PrinterPeriod == "" {
		f.PrinterPeriod = PeriodMonth
	}
	if f.RadioMode == "" {
		f.RadioMode = RadioModeUnit
	}
	return f
}

// Key renders a canonical cache token for the filter.
func (f StatsFilter) Key() string {
	f = f.normalized()
	parts := []string{
		"c=" + joinIDs(f.CategoryIDs),
		"cmp=" + joinIDs(f.CompCategoryIDs),
		"fl=" + joinIDs(f.FleetCategoryIDs),
		"ds=" + formatDate(f.DateStart),
		"de=" + formatDate(f.DateEnd),
		"pp=" + string(f.PrinterPeriod),
		"rm=" + string(f.RadioMode),
	}
	return strings.Join(parts, "|")
}

// PrinterWindow resolves the reading date window for the period, anchored at
// the filter end date when present, otherwise at now.
func (f StatsFilter) PrinterWindow(now time.Time) (time.Time, time.Time) {
	anchor := now
	if f.DateEnd != nil {
		anchor = *f.DateEnd
	}
	end := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
	var start time.Time
	switch f.PrinterPeriod {
	case PeriodYear:
		start = time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case PeriodQuarter:
		firstMonth := time.Month((int(end.Month())-1)/3*3 + 1)
		start = time.Date(end.Year(), firstMonth, 1, 0, 0, 0, 0, time.UTC)
	default:
		start = time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return start, end
}

func toInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case int64:
		return val, nil
	case float64:
		if val != float64(int64(val)) {
			return 0, fmt.Errorf("non-integer id %v", val)
		}
		return int64(val), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	}
	return 0, fmt.Errorf("unsupported id type %T", v)
}

func toInt64s(v any) ([]int64, error) {
	switch val := v.(type) {
	case []int64:
		return append([]int64(nil), val...), nil
	case []any:
		out := make([]int64, 0, len(val))
		for _, item := range val {
			id, err := toInt64(item)
			if err != nil {
				return nil, err
			}
			out = appendUnique(out, id)
		}
		return out, nil
	case string:
		var out []int64
		for _, part := range strings.Split(val, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			id, err := toInt64(part)
			if err != nil {
				return nil, err
			}
			out = appendUnique(out, id)
		}
		return out, nil
	}
	id, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return []int64{id}, nil
}

func toDate(v any) (*time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("date must be a string")
	}
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(dateLayout)
}

// stateSlices builds the fixed state distribution.
func stateSlices(c StateCounts) []StateSlice {
	return []StateSlice{
		{State: StateAvailable, Label: "Available", Value: c.Available, Color: "#22c55e"},
		{State: StateInUse, Label: "In Use", Value: c.InUse, Color: "#3b82f6"},
		{State: StateRepair, Label: "Repair", Value: c.Repair, Color: "#f59e0b"},
		{State: StateRetired, Label: "Retired", Value: c.Retired, Color: "#ef4444"},
	}
}

// topCategories orders by count desc (name asc on ties), hides empty rows when
// the caller filters by category and keeps the first categoryTopN rows.
func topCategories(rows []CategoryCount, filtered bool) []CategoryCount {
	out := make([]CategoryCount, 0, len(rows))
	for _, row := range rows {
		if filtered && row.Count == 0 {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > categoryTopN {
		out = out[:categoryTopN]
	}
	return out
}

func colorRatio(color, total int64) float64 {
	if total <= 0 {
		return 0
	}
	ratio := float64(color) / float64(total) * 100
	return float64(int64(ratio*100+0.5)) / 100
}
