package assethttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers the assets endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Get("/it-asset/query/categories", h.handleCategories)
	r.Post("/it-asset/query/stats", h.handleStats)
	r.Get("/it-asset/assets", h.handleAssets)
	r.Post("/it-asset/assets", h.handleCreateAsset)
	r.Get("/it-asset/assets/{id}/assignments", h.handleListAssignments)
	r.Post("/it-asset/assets/{id}/assignments", h.handleAssign)
	r.Post("/it-asset/assignments/{id}/return", h.handleReturnAssignment)
	r.Get("/it-asset/assets/{id}/swaps", h.handleListSwaps)
	r.Post("/it-asset/assets/{id}/swaps", h.handleSwap)
	r.Post("/it-asset/swaps/{id}/return", h.handleReturnSwap)
	r.Get("/it-asset/maintenance", h.handleMaintenance)
	r.Get("/it-asset/printers/{id}/readings", h.handleListReadings)
	r.Post("/it-asset/printers/{id}/readings", h.handleRecordReading)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Get("/it-asset/stats/export.xlsx", h.handleExportXLSX)
		gr.Get("/it-asset/stats/export.csv", h.handleExportCSV)
	})
}
