package assethttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/itasset/internal/assets"
	"github.com/odyssey-erp/itasset/internal/assets/export"
	"github.com/odyssey-erp/itasset/internal/platform/httpx"
	"github.com/odyssey-erp/itasset/internal/predicate"
)

// Service is the backend contract used by the handler.
type Service interface {
	Categories(ctx context.Context, kind assets.CategoryKind) ([]assets.CategoryRef, error)
	GetDashboardStats(ctx context.Context, filter assets.StatsFilter) (assets.DashboardStats, error)
	ListAssets(ctx context.Context, pred predicate.Expr, page assets.Page) ([]assets.Asset, error)
	ListMaintenance(ctx context.Context, pred predicate.Expr, page assets.Page) ([]assets.MaintenanceLog, error)
	ListReadings(ctx context.Context, assetID int64, page assets.Page) ([]assets.PrinterReading, error)
	RecordPrinterReading(ctx context.Context, input assets.ReadingInput) (assets.PrinterReading, error)
	CreateAsset(ctx context.Context, input assets.AssetInput) (assets.Asset, error)
	AssignAsset(ctx context.Context, input assets.AssignmentInput) (assets.Assignment, error)
	ReturnAssignment(ctx context.Context, id int64) (assets.Assignment, error)
	ListAssignments(ctx context.Context, assetID int64, page assets.Page) ([]assets.Assignment, error)
	SwapAsset(ctx context.Context, input assets.SwapInput) (assets.Swap, error)
	ReturnSwap(ctx context.Context, id int64) (assets.Swap, error)
	ListSwaps(ctx context.Context, assetID int64, page assets.Page) ([]assets.Swap, error)
}

// Handler serves the query API, list views, asset history and exports.
type Handler struct {
	logger  *slog.Logger
	service Service
	timeout time.Duration
}

// NewHandler constructs the assets HTTP handler.
func NewHandler(logger *slog.Logger, service Service, timeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{logger: logger, service: service, timeout: timeout}
}

// CategoriesResponse wraps the category listing.
type CategoriesResponse struct {
	Kind       assets.CategoryKind  `json:"kind"`
	Categories []assets.CategoryRef `json:"categories"`
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	kind := assets.CategoryKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		kind = assets.KindAssetCategory
	}
	refs, err := h.service.Categories(r.Context(), kind)
	if err != nil {
		h.respondError(w, "list categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, CategoriesResponse{Kind: kind, Categories: refs})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	params := map[string]any{}
	if err := httpx.DecodeJSON(r, &params); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	filter, err := assets.ParseStatsRequest(params)
	if err != nil {
		h.respondError(w, "parse stats request", err)
		return
	}
	stats, err := h.loadStats(r.Context(), filter)
	if err != nil {
		h.respondError(w, "load stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) loadStats(ctx context.Context, filter assets.StatsFilter) (assets.DashboardStats, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.service.GetDashboardStats(ctx, filter)
}

// ListResponse wraps paged list views with the predicate that produced them.
type ListResponse[T any] struct {
	Domain []any `json:"domain"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Items  []T   `json:"items"`
}

func (h *Handler) handleAssets(w http.ResponseWriter, r *http.Request) {
	pred, page, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.respondError(w, "parse list query", err)
		return
	}
	items, err := h.service.ListAssets(r.Context(), pred, page)
	if err != nil {
		h.respondError(w, "list assets", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse[assets.Asset]{Domain: pred.Domain(), Limit: page.Limit, Offset: page.Offset, Items: items})
}

func (h *Handler) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	pred, page, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.respondError(w, "parse list query", err)
		return
	}
	items, err := h.service.ListMaintenance(r.Context(), pred, page)
	if err != nil {
		h.respondError(w, "list maintenance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse[assets.MaintenanceLog]{Domain: pred.Domain(), Limit: page.Limit, Offset: page.Offset, Items: items})
}

func (h *Handler) handleListReadings(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Printer", "printer id must be a positive integer")
		return
	}
	_, page, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.respondError(w, "parse list query", err)
		return
	}
	items, err := h.service.ListReadings(r.Context(), id, page)
	if err != nil {
		h.respondError(w, "list readings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse[assets.PrinterReading]{Domain: []any{}, Limit: page.Limit, Offset: page.Offset, Items: items})
}

type readingRequest struct {
	Date       string `json:"date"`
	ColorPages int64  `json:"color_pages"`
	BWPages    int64  `json:"bw_pages"`
	Remarks    string `json:"remarks"`
}

func (h *Handler) handleRecordReading(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Printer", "printer id must be a positive integer")
		return
	}
	var req readingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	date := time.Now().UTC()
	if req.Date != "" {
		date, err = time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
			return
		}
	}
	reading, err := h.service.RecordPrinterReading(r.Context(), assets.ReadingInput{
		AssetID:    id,
		Date:       date,
		ColorPages: req.ColorPages,
		BWPages:    req.BWPages,
		Remarks:    req.Remarks,
	})
	if err != nil {
		h.respondError(w, "record reading", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reading)
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.exportStats(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=it-asset-stats-%s.xlsx", time.Now().Format("20060102")))
	if err := export.WriteStatsXLSX(w, stats); err != nil {
		h.logger.Error("write xlsx export", slog.Any("error", err))
	}
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	stats, ok := h.exportStats(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=it-asset-summary.csv")
	if err := export.WriteSummaryCSV(w, stats); err != nil {
		h.logger.Error("write csv export", slog.Any("error", err))
	}
}

func (h *Handler) exportStats(w http.ResponseWriter, r *http.Request) (assets.DashboardStats, bool) {
	params := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		params[key] = strings.Join(values, ",")
	}
	filter, err := assets.ParseStatsRequest(params)
	if err != nil {
		h.respondError(w, "parse export filter", err)
		return assets.DashboardStats{}, false
	}
	stats, err := h.loadStats(r.Context(), filter)
	if err != nil {
		h.respondError(w, "load export stats", err)
		return assets.DashboardStats{}, false
	}
	return stats, true
}

func parseListQuery(values url.Values) (predicate.Expr, assets.Page, error) {
	pred, err := predicate.Parse(values.Get("domain"))
	if err != nil {
		return predicate.Expr{}, assets.Page{}, err
	}
	var page assets.Page
	if raw := values.Get("limit"); raw != "" {
		page.Limit, err = strconv.Atoi(raw)
		if err != nil {
			return predicate.Expr{}, assets.Page{}, fmt.Errorf("%w: limit", httpx.ErrValidation)
		}
	}
	if raw := values.Get("offset"); raw != "" {
		page.Offset, err = strconv.Atoi(raw)
		if err != nil {
			return predicate.Expr{}, assets.Page{}, fmt.Errorf("%w: offset", httpx.ErrValidation)
		}
	}
	return pred, page.Normalize(), nil
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, assets.ErrInvalidFilter),
		errors.Is(err, assets.ErrUnknownKind),
		errors.Is(err, assets.ErrInvalidReading),
		errors.Is(err, assets.ErrInvalidAsset),
		errors.Is(err, assets.ErrAssetTagRequired),
		errors.Is(err, assets.ErrConsumableAssignment),
		errors.Is(err, predicate.ErrInvalidExpr),
		errors.Is(err, predicate.ErrUnknownField):
		err = fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, assets.ErrCounterDecreased),
		errors.Is(err, assets.ErrAlreadyReturned):
		err = fmt.Errorf("%w: %v", httpx.ErrConflict, err)
	case errors.Is(err, assets.ErrNotFound):
		err = fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: %v", httpx.ErrTimeout, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
