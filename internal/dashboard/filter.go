package dashboard

import (
	"fmt"
	"sort"
	"time"

	"github.com/odyssey-erp/itasset/internal/assets"
)

const dateLayout = "2006-01-02"

// Bound selects which end of the date range is being set.
type Bound string

const (
	BoundStart Bound = "start"
	BoundEnd   Bound = "end"
)

// FilterState is the facet selection of one dashboard. Empty fields mean
// "no constraint". Slices are kept sorted and are never mutated in place, so
// a copied FilterState can be read without holding the controller lock.
type FilterState struct {
	Categories      []int64              `json:"categories,omitempty"`
	DateStart       string               `json:"date_start,omitempty"`
	DateEnd         string               `json:"date_end,omitempty"`
	FleetCategories []int64              `json:"fleet_categories,omitempty"`
	CompCategories  []int64              `json:"comp_categories,omitempty"`
	PrinterPeriod   assets.PrinterPeriod `json:"printer_period,omitempty"`
	RadioMode       assets.RadioMode     `json:"radio_mode,omitempty"`
}

// IsZero reports whether no facet is selected.
func (f FilterState) IsZero() bool {
	return len(f.Categories) == 0 && f.DateStart == "" && f.DateEnd == "" &&
		len(f.FleetCategories) == 0 && len(f.CompCategories) == 0 &&
		f.PrinterPeriod == "" && f.RadioMode == ""
}

// HasCategory reports whether id is part of the category selection.
func (f FilterState) HasCategory(id int64) bool {
	return containsID(f.Categories, id)
}

// HasFleetCategory reports whether id is part of the fleet selection.
func (f FilterState) HasFleetCategory(id int64) bool {
	return containsID(f.FleetCategories, id)
}

// HasCompCategory reports whether id is part of the comparison selection.
func (f FilterState) HasCompCategory(id int64) bool {
	return containsID(f.CompCategories, id)
}

// toggleID returns a new sorted set with id added when absent and removed when present.
func toggleID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids)+1)
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		out = append(out, id)
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// retainIDs drops every id not accepted by keep.
func retainIDs(ids []int64, keep func(int64) bool) []int64 {
	var out []int64
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// normalizeDate validates a YYYY-MM-DD input; empty clears the bound.
func normalizeDate(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t.Format(dateLayout), nil
}

// SplitPickers separates asset categories into the category facet picker
// (non-consumable) and the comparison facet picker (consumable).
func SplitPickers(refs []assets.CategoryRef) (categories, comparison []assets.CategoryRef) {
	categories = []assets.CategoryRef{}
	comparison = []assets.CategoryRef{}
	for _, ref := range refs {
		if ref.IsConsumable {
			comparison = append(comparison, ref)
			continue
		}
		categories = append(categories, ref)
	}
	return categories, comparison
}
