package dashboard

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/odyssey-erp/itasset/internal/assets"
)

// Params is the named filter mapping sent to the Query Service. A missing key
// means the dimension is unfiltered; keys are never sent with empty values.
type Params map[string]any

// BuildFetchParams derives the Query Service mapping from the filter state.
func BuildFetchParams(f FilterState) Params {
	params := Params{}
	if len(f.Categories) > 0 {
		params[assets.ParamCategoryIDs] = append([]int64(nil), f.Categories...)
	}
	if len(f.CompCategories) > 0 {
		params[assets.ParamCompCategoryIDs] = append([]int64(nil), f.CompCategories...)
	}
	if len(f.FleetCategories) > 0 {
		params[assets.ParamFleetCategoryIDs] = append([]int64(nil), f.FleetCategories...)
	}
	if f.DateStart != "" {
		params[assets.ParamDateStart] = f.DateStart
	}
	if f.DateEnd != "" {
		params[assets.ParamDateEnd] = f.DateEnd
	}
	if f.PrinterPeriod != "" {
		params[assets.ParamPrinterPeriod] = string(f.PrinterPeriod)
	}
	if f.RadioMode != "" {
		params[assets.ParamRadioMode] = string(f.RadioMode)
	}
	return params
}

// Encode renders params as a query string. ID lists are comma separated, which
// the stats parser accepts alongside JSON arrays.
func (p Params) Encode() string {
	values := url.Values{}
	for key, raw := range p {
		switch v := raw.(type) {
		case []int64:
			parts := make([]string, len(v))
			for i, id := range v {
				parts[i] = strconv.FormatInt(id, 10)
			}
			values.Set(key, strings.Join(parts, ","))
		default:
			values.Set(key, fmt.Sprint(v))
		}
	}
	return values.Encode()
}
