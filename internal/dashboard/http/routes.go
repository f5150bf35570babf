package dashboardhttp

import (
	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/itasset/internal/dashboard"
)

// MountRoutes registers the dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Route("/it-asset/dashboard", func(r chi.Router) {
		r.Get("/", h.handleView)
		r.Get("/view", h.handlePage)
		r.Post("/categories/toggle", h.handleToggle((*dashboard.Controller).ToggleCategory))
		r.Post("/fleet-categories/toggle", h.handleToggle((*dashboard.Controller).ToggleFleetCategory))
		r.Post("/comparison-categories/toggle", h.handleToggle((*dashboard.Controller).ToggleCompCategory))
		r.Post("/dates", h.handleDates)
		r.Post("/printer-period", h.handlePrinterPeriod)
		r.Post("/radio-mode", h.handleRadioMode)
		r.Post("/open", h.handleOpen)
	})
}
