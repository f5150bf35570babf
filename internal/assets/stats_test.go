package assets

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatsRequestDecodedJSON(t *testing.T) {
	var params map[string]any
	raw := `{"category_ids":[5,3],"category_id":7,"comp_asset_cat_ids":[9],"fleet_category_ids":"2,1","date_start":"2024-01-01","date_end":"2024-01-31","printer_period":"year","radio_mode":"stock"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &params))

	f, err := ParseStatsRequest(params)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 7}, f.CategoryIDs)
	assert.Equal(t, []int64{9}, f.CompCategoryIDs)
	assert.Equal(t, []int64{1, 2}, f.FleetCategoryIDs)
	require.NotNil(t, f.DateStart)
	assert.Equal(t, "2024-01-01", f.DateStart.Format(dateLayout))
	assert.Equal(t, PeriodYear, f.PrinterPeriod)
	assert.Equal(t, RadioModeStock, f.RadioMode)
}

func TestParseStatsRequestDefaults(t *testing.T) {
	f, err := ParseStatsRequest(map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, f.CategoryIDs)
	assert.Nil(t, f.DateStart)
	assert.Equal(t, PeriodMonth, f.PrinterPeriod)
	assert.Equal(t, RadioModeUnit, f.RadioMode)
}

func TestParseStatsRequestRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]any{
		"unknown key":   {"tickets_open": 1},
		"bad date":      {"date_start": "31/01/2024"},
		"bad period":    {"printer_period": "week"},
		"bad mode":      {"radio_mode": "fleet"},
		"fractional id": {"category_id": 1.5},
	}
	for name, params := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStatsRequest(params)
			require.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestStatsFilterKeyIsCanonical(t *testing.T) {
	a := StatsFilter{CategoryIDs: []int64{2, 1}}
	b := StatsFilter{CategoryIDs: []int64{1, 2}, PrinterPeriod: PeriodMonth, RadioMode: RadioModeUnit}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), StatsFilter{}.Key())
}

func TestPrinterWindow(t *testing.T) {
	now := time.Date(2024, time.August, 15, 13, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		filter StatsFilter
		start  string
		end    string
	}{
		{StatsFilter{PrinterPeriod: PeriodMonth}, "2024-08-01", "2024-08-15"},
		{StatsFilter{PrinterPeriod: PeriodQuarter}, "2024-07-01", "2024-08-15"},
		{StatsFilter{PrinterPeriod: PeriodYear}, "2024-01-01", "2024-08-15"},
		{StatsFilter{PrinterPeriod: PeriodQuarter, DateEnd: &end}, "2024-01-01", "2024-02-10"},
	}
	for _, tc := range cases {
		start, stop := tc.filter.PrinterWindow(now)
		assert.Equal(t, tc.start, start.Format(dateLayout))
		assert.Equal(t, tc.end, stop.Format(dateLayout))
	}
}

func TestTopCategories(t *testing.T) {
	rows := make([]CategoryCount, 0, 12)
	for i := 0; i < 12; i++ {
		rows = append(rows, CategoryCount{ID: int64(i), Name: string(rune('A' + i)), Count: int64(i % 4)})
	}
	top := topCategories(rows, false)
	require.Len(t, top, 10)
	assert.Equal(t, int64(3), top[0].Count)
	assert.Equal(t, "D", top[0].Name)

	filtered := topCategories([]CategoryCount{{Name: "A", Count: 0}, {Name: "B", Count: 2}}, true)
	require.Len(t, filtered, 1)
	assert.Equal(t, "B", filtered[0].Name)
}

func TestColorRatio(t *testing.T) {
	assert.Zero(t, colorRatio(5, 0))
	assert.Equal(t, 33.33, colorRatio(1, 3))
}
