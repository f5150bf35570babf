package dashboard

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/itasset/internal/assets"
	"github.com/odyssey-erp/itasset/internal/predicate"
)

// Tile tags with dedicated navigation rules.
const (
	TagAll             = "all"
	TagAvailable       = "available"
	TagAssigned        = "assigned"
	TagUnavailable     = "unavailable"
	TagMaintenanceLogs = "maintenance_logs"
)

// ViewRequest is a declarative request to open a list/form pair.
type ViewRequest struct {
	Entity    string         `json:"res_model"`
	Name      string         `json:"name"`
	Predicate predicate.Expr `json:"predicate"`
	Views     []string       `json:"views"`
}

// ActWindow is the client-facing descriptor of a ViewRequest.
type ActWindow struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	ResModel string  `json:"res_model"`
	Views    [][]any `json:"views"`
	Domain   []any   `json:"domain"`
	Target   string  `json:"target"`
}

// ActWindow renders the request as an act-window descriptor.
func (v ViewRequest) ActWindow() ActWindow {
	views := make([][]any, 0, len(v.Views))
	for _, kind := range v.Views {
		views = append(views, []any{false, kind})
	}
	return ActWindow{
		Type:     "ir.actions.act_window",
		Name:     v.Name,
		ResModel: v.Entity,
		Views:    views,
		Domain:   v.Predicate.Domain(),
		Target:   "current",
	}
}

// BuildViewRequest maps a tile tag to the view it opens.
//
// maintenance_logs opens the maintenance history of the asset type and nothing
// else. Every asset view is scoped by asset type; unavailable adds the
// condition = broken OR state = retired disjunction, all adds no state term and
// any other tag becomes a single state equality (assigned is stored as in_use).
// The category selection only narrows IT asset views.
func BuildViewRequest(tag string, assetType assets.AssetType, f FilterState) ViewRequest {
	if assetType == "" {
		assetType = assets.AssetTypeIT
	}
	typeLabel := assetTypeLabel(assetType)

	if tag == TagMaintenanceLogs {
		return ViewRequest{
			Entity:    assets.EntityMaintenance,
			Name:      typeLabel + " Maintenance Logs",
			Predicate: predicate.Eq("asset_id.asset_type", string(assetType)),
			Views:     []string{"list", "form"},
		}
	}

	var (
		stateTerm predicate.Expr
		name      string
	)
	switch tag {
	case TagAll, "":
		name = "All " + typeLabel + " Assets"
	case TagUnavailable:
		stateTerm = predicate.Or(
			predicate.Eq("condition", string(assets.ConditionBroken)),
			predicate.Eq("state", string(assets.StateRetired)),
		)
		name = "Unavailable " + typeLabel + " Assets (Broken/Retired)"
	default:
		state := tag
		if tag == TagAssigned {
			state = string(assets.StateInUse)
		}
		stateTerm = predicate.Eq("state", state)
		name = tagLabel(tag) + " " + typeLabel + " Assets"
	}

	var categoryTerm predicate.Expr
	if assetType == assets.AssetTypeIT && len(f.Categories) > 0 {
		categoryTerm = predicate.In("category_id", append([]int64(nil), f.Categories...))
	}

	return ViewRequest{
		Entity:    assets.EntityAsset,
		Name:      name,
		Predicate: predicate.And(predicate.Eq("asset_type", string(assetType)), stateTerm, categoryTerm),
		Views:     []string{"list", "form"},
	}
}

func tagLabel(tag string) string {
	caser := cases.Title(language.English)
	words := strings.Split(tag, "_")
	for i, word := range words {
		words[i] = caser.String(word)
	}
	return strings.Join(words, " ")
}

func assetTypeLabel(t assets.AssetType) string {
	if t == assets.AssetTypeIT {
		return "IT"
	}
	return cases.Title(language.English).String(string(t))
}
