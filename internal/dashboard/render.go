package dashboard

import (
	"encoding/json"
	"fmt"
	"html"
	"html/template"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"

	"github.com/odyssey-erp/itasset/internal/assets"
	"github.com/odyssey-erp/itasset/internal/dashboard/svg"
)

// Renderer turns a snapshot into a presentation.
type Renderer interface {
	Render(w io.Writer, s Snapshot) error
}

// Render hands the current snapshot to r.
func (c *Controller) Render(w io.Writer, r Renderer) error {
	return r.Render(w, c.Snapshot())
}

// JSONRenderer writes the snapshot as JSON.
type JSONRenderer struct{}

// Render encodes s.
func (JSONRenderer) Render(w io.Writer, s Snapshot) error {
	return json.NewEncoder(w).Encode(s)
}

// TemplateExecutor is satisfied by *template.Template.
type TemplateExecutor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// Tile is one clickable summary counter.
type Tile struct {
	Tag       string
	AssetType assets.AssetType
	Label     string
	Count     int64
}

// PickerOption is one checkbox of a category picker.
type PickerOption struct {
	ID      int64
	Name    string
	Checked bool
}

// Picker is a category facet rendered as a checkbox group.
type Picker struct {
	Legend   string
	Endpoint string
	Options  []PickerOption
}

// ViewModel is the template input of the HTML dashboard.
type ViewModel struct {
	Snapshot
	Title          string
	Pickers        []Picker
	ITTiles        []Tile
	OperationTiles []Tile
	Activities     []assets.Activity
	CategoryChart  template.HTML
	PrinterChart   template.HTML
	ExportQuery    template.URL
	CSRFToken      string
}

// HTMLRenderer executes the dashboard page template.
type HTMLRenderer struct {
	tpl       TemplateExecutor
	name      string
	csrfToken string
	policy    *bluemonday.Policy
}

// NewHTMLRenderer renders the template called name.
func NewHTMLRenderer(tpl TemplateExecutor, name string) *HTMLRenderer {
	return &HTMLRenderer{tpl: tpl, name: name, policy: bluemonday.StrictPolicy()}
}

// WithCSRFToken returns a copy that embeds token in the page forms.
func (h *HTMLRenderer) WithCSRFToken(token string) *HTMLRenderer {
	clone := *h
	clone.csrfToken = token
	return &clone
}

// Render builds the view model and executes the template.
func (h *HTMLRenderer) Render(w io.Writer, s Snapshot) error {
	vm, err := h.viewModel(s)
	if err != nil {
		return err
	}
	return h.tpl.ExecuteTemplate(w, h.name, vm)
}

func (h *HTMLRenderer) viewModel(s Snapshot) (ViewModel, error) {
	vm := ViewModel{
		Snapshot:       s,
		Title:          "Dashboard",
		ITTiles:        tiles(assets.AssetTypeIT, s.Stats.StateCounts, s.Stats.MaintenanceLogs),
		OperationTiles: tiles(assets.AssetTypeOperation, s.Stats.OperationAssets, -1),
		ExportQuery:    template.URL(BuildFetchParams(s.Filters).Encode()),
		CSRFToken:      h.csrfToken,
		Pickers: []Picker{
			picker("Categories", "categories", s.CategoryPicker, s.Filters.HasCategory),
			picker("Compare consumables", "comparison-categories", s.ComparisonPicker, s.Filters.HasCompCategory),
			picker("Fleet categories", "fleet-categories", s.FleetPicker, s.Filters.HasFleetCategory),
		},
	}
	// Activity text comes from user-entered records; strip any markup.
	for _, a := range s.Stats.RecentActivities {
		a.Title = h.plainText(a.Title)
		a.User = h.plainText(a.User)
		vm.Activities = append(vm.Activities, a)
	}

	if dist := s.Stats.CategoryDistribution; len(dist) > 0 {
		labels := make([]string, len(dist))
		counts := make([]int64, len(dist))
		for i, row := range dist {
			labels[i] = row.Name
			counts[i] = row.Count
		}
		chart, err := svg.Bars(0, 0, labels, []svg.Series{{Label: "Assets", Values: counts}}, svg.BarOpts{
			Title:       "Assets by category",
			Description: "Top categories by asset count",
		})
		if err != nil {
			return ViewModel{}, fmt.Errorf("dashboard: category chart: %w", err)
		}
		vm.CategoryChart = chart
	}

	if top := s.Stats.Printer.TopPrinters; len(top) > 0 {
		labels := make([]string, len(top))
		pages := make([]int64, len(top))
		for i, p := range top {
			labels[i] = p.Name
			pages[i] = p.Pages
		}
		chart, err := svg.Bars(0, 0, labels, []svg.Series{{Label: "Pages", Values: pages}}, svg.BarOpts{
			Title:       "Top printers",
			Description: fmt.Sprintf("Printed pages %s to %s", s.Stats.Printer.WindowStart, s.Stats.Printer.WindowEnd),
		})
		if err != nil {
			return ViewModel{}, fmt.Errorf("dashboard: printer chart: %w", err)
		}
		vm.PrinterChart = chart
	}
	return vm, nil
}

// plainText drops markup and returns unescaped text; the template escapes it
// exactly once.
func (h *HTMLRenderer) plainText(s string) string {
	return html.UnescapeString(h.policy.Sanitize(s))
}

func picker(legend, endpoint string, refs []assets.CategoryRef, checked func(int64) bool) Picker {
	p := Picker{Legend: legend, Endpoint: endpoint, Options: make([]PickerOption, 0, len(refs))}
	for _, ref := range refs {
		p.Options = append(p.Options, PickerOption{ID: ref.ID, Name: ref.Name, Checked: checked(ref.ID)})
	}
	return p
}

// tiles lists the summary counters of one asset type. A negative maintenance
// count omits the maintenance tile.
func tiles(t assets.AssetType, counts assets.StateCounts, maintenance int64) []Tile {
	label := assetTypeLabel(t)
	out := []Tile{
		{Tag: TagAll, AssetType: t, Label: "All " + label + " Assets", Count: counts.Total},
		{Tag: TagAvailable, AssetType: t, Label: "Available", Count: counts.Available},
		{Tag: TagAssigned, AssetType: t, Label: "Assigned", Count: counts.InUse},
		{Tag: string(assets.StateRepair), AssetType: t, Label: "In Repair", Count: counts.Repair},
		{Tag: TagUnavailable, AssetType: t, Label: "Unavailable", Count: counts.Unavailable},
	}
	if maintenance >= 0 {
		out = append(out, Tile{Tag: TagMaintenanceLogs, AssetType: t, Label: "Maintenance Logs", Count: maintenance})
	}
	return out
}

// TemplateFuncs are the helpers the dashboard templates rely on.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"comma": humanize.Comma,
		"percent": func(v float64) string {
			return humanize.FormatFloat("#,###.##", v) + "%"
		},
	}
}
