package dashboard

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/itasset/internal/assets"
)

func TestBuildFetchParamsEmptyState(t *testing.T) {
	params := BuildFetchParams(FilterState{})
	require.NotNil(t, params)
	assert.Empty(t, params)
}

func TestBuildFetchParamsOmitsUnsetKeys(t *testing.T) {
	params := BuildFetchParams(FilterState{DateEnd: "2024-02-29", RadioMode: assets.RadioModeUnit})
	assert.Equal(t, Params{
		assets.ParamDateEnd:   "2024-02-29",
		assets.ParamRadioMode: "unit",
	}, params)
}

func TestBuildFetchParamsCopiesSlices(t *testing.T) {
	f := FilterState{Categories: []int64{4}}
	params := BuildFetchParams(f)
	f.Categories[0] = 8
	assert.Equal(t, []int64{4}, params[assets.ParamCategoryIDs])
}

func TestParamsRoundTripThroughBackendParser(t *testing.T) {
	f := FilterState{
		Categories:      []int64{3, 1},
		CompCategories:  []int64{9},
		FleetCategories: []int64{12},
		DateStart:       "2024-01-01",
		DateEnd:         "2024-01-31",
		PrinterPeriod:   assets.PeriodYear,
		RadioMode:       assets.RadioModeStock,
	}
	filter, err := assets.ParseStatsRequest(map[string]any(BuildFetchParams(f)))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, filter.CategoryIDs)
	assert.Equal(t, []int64{9}, filter.CompCategoryIDs)
	assert.Equal(t, []int64{12}, filter.FleetCategoryIDs)
	assert.Equal(t, assets.PeriodYear, filter.PrinterPeriod)
	assert.Equal(t, assets.RadioModeStock, filter.RadioMode)
}

func TestToggleIDClosure(t *testing.T) {
	var ids []int64
	for _, v := range []int64{5, 3, 5, 7, 3, 9} {
		ids = toggleID(ids, v)
	}
	assert.Equal(t, []int64{7, 9}, ids)

	ids = toggleID(toggleID(ids, 7), 9)
	assert.Nil(t, ids)
}

func TestToggleIDDoesNotMutateInput(t *testing.T) {
	in := []int64{1, 2, 3}
	out := toggleID(in, 2)
	assert.Equal(t, []int64{1, 2, 3}, in)
	assert.Equal(t, []int64{1, 3}, out)
}

func TestNormalizeDate(t *testing.T) {
	v, err := normalizeDate("")
	require.NoError(t, err)
	assert.Empty(t, v)

	v, err = normalizeDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", v)

	_, err = normalizeDate("2023-02-29")
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestParamsEncodeRoundTrip(t *testing.T) {
	params := BuildFetchParams(FilterState{
		Categories:    []int64{3, 1},
		DateStart:     "2024-01-01",
		PrinterPeriod: assets.PeriodQuarter,
	})
	values, err := url.ParseQuery(params.Encode())
	require.NoError(t, err)
	assert.Equal(t, "3,1", values.Get(assets.ParamCategoryIDs))

	mapping := map[string]any{}
	for key := range values {
		mapping[key] = values.Get(key)
	}
	filter, err := assets.ParseStatsRequest(mapping)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1}, filter.CategoryIDs)
	assert.Equal(t, assets.PeriodQuarter, filter.PrinterPeriod)
	require.NotNil(t, filter.DateStart)
}
