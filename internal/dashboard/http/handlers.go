package dashboardhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/itasset/internal/assets"
	"github.com/odyssey-erp/itasset/internal/dashboard"
	"github.com/odyssey-erp/itasset/internal/platform/httpx"
	"github.com/odyssey-erp/itasset/internal/shared"
)

// FiltersSessionKey stores the JSON encoded filter state in the session.
const FiltersSessionKey = "dashboard_filters"

var validate = validator.New()

// Handler exposes the per-session dashboard controller over HTTP.
type Handler struct {
	logger   *slog.Logger
	registry *dashboard.Registry
	csrf     *shared.CSRFManager
	page     *dashboard.HTMLRenderer
	timeout  time.Duration
}

// NewHandler builds the dashboard handler. page may be nil when the HTML view
// is not served.
func NewHandler(logger *slog.Logger, registry *dashboard.Registry, csrf *shared.CSRFManager, page *dashboard.HTMLRenderer, timeout time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{logger: logger, registry: registry, csrf: csrf, page: page, timeout: timeout}
}

// ViewResponse is returned by every dashboard endpoint.
type ViewResponse struct {
	View      dashboard.Snapshot `json:"view"`
	CSRFToken string             `json:"csrf_token,omitempty"`
}

// OpenResponse carries the act-window descriptor of an opened tile.
type OpenResponse struct {
	Action dashboard.ActWindow `json:"action"`
}

type toggleRequest struct {
	ID *int64 `json:"id"`
}

func (t *toggleRequest) Bind(r *http.Request) error {
	if t.ID != nil && *t.ID <= 0 {
		return fmt.Errorf("id must be positive")
	}
	return nil
}

type dateRequest struct {
	Bound string `json:"bound" validate:"required,oneof=start end"`
	Value string `json:"value" validate:"omitempty,datetime=2006-01-02"`
}

func (d *dateRequest) Bind(r *http.Request) error { return validate.Struct(d) }

type valueRequest struct {
	Value string `json:"value" validate:"max=32"`
}

func (v *valueRequest) Bind(r *http.Request) error { return validate.Struct(v) }

type openRequest struct {
	Tag       string `json:"tag" validate:"required,max=64"`
	AssetType string `json:"asset_type" validate:"omitempty,oneof=it operation"`
}

func (o *openRequest) Bind(r *http.Request) error { return validate.Struct(o) }

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	token, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.respondError(w, ctrl, "ensure csrf token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ViewResponse{View: ctrl.Snapshot(), CSRFToken: token})
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	if h.page == nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	sess, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	token, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.respondError(w, ctrl, "ensure csrf token", err)
		return
	}
	var buf bytes.Buffer
	if err := ctrl.Render(&buf, h.page.WithCSRFToken(token)); err != nil {
		h.respondError(w, ctrl, "render dashboard", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleToggle(toggle func(*dashboard.Controller, context.Context, *int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toggleRequest
		if err := render.Bind(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
		h.mutate(w, r, func(ctx context.Context, ctrl *dashboard.Controller) error {
			return toggle(ctrl, ctx, req.ID)
		})
	}
}

func (h *Handler) handleDates(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := render.Bind(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	h.mutate(w, r, func(ctx context.Context, ctrl *dashboard.Controller) error {
		return ctrl.SetDateBound(ctx, dashboard.Bound(req.Bound), req.Value)
	})
}

func (h *Handler) handlePrinterPeriod(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := render.Bind(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	h.mutate(w, r, func(ctx context.Context, ctrl *dashboard.Controller) error {
		return ctrl.SetPeriod(ctx, assets.PrinterPeriod(req.Value))
	})
}

func (h *Handler) handleRadioMode(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if err := render.Bind(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	h.mutate(w, r, func(ctx context.Context, ctrl *dashboard.Controller) error {
		return ctrl.SetMode(ctx, assets.RadioMode(req.Value))
	})
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := render.Bind(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	_, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	view, err := ctrl.OpenFilteredView(ctx, req.Tag, assets.AssetType(req.AssetType))
	if err != nil {
		h.respondError(w, ctrl, "open filtered view", err)
		return
	}
	httpx.JSON(w, http.StatusOK, OpenResponse{Action: view.ActWindow()})
}

// mutate runs change against the session controller, persists the resulting
// filter state and answers with the current view.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, change func(context.Context, *dashboard.Controller) error) {
	sess, ctrl, ok := h.controller(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	err := change(ctx, ctrl)
	h.persist(sess, ctrl)
	if err != nil {
		h.respondError(w, ctrl, "update dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ViewResponse{View: ctrl.Snapshot()})
}

// controller resolves the session controller, restoring persisted filters and
// initializing it on first use.
func (h *Handler) controller(w http.ResponseWriter, r *http.Request) (*shared.Session, *dashboard.Controller, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return nil, nil, false
	}
	ctrl, created := h.registry.Get(sess.ID)
	if created {
		if raw := sess.Get(FiltersSessionKey); raw != "" {
			var f dashboard.FilterState
			if err := json.Unmarshal([]byte(raw), &f); err != nil {
				h.logger.Warn("discarding unreadable dashboard filters", slog.String("session", sess.ID), slog.Any("error", err))
			} else {
				ctrl.Restore(f)
			}
		}
	}
	if !ctrl.Ready() {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := ctrl.Initialize(ctx); err != nil {
			h.respondError(w, ctrl, "initialize dashboard", err)
			return nil, nil, false
		}
		h.persist(sess, ctrl)
	}
	return sess, ctrl, true
}

func (h *Handler) persist(sess *shared.Session, ctrl *dashboard.Controller) {
	state := ctrl.State()
	if state.IsZero() {
		sess.Delete(FiltersSessionKey)
		return
	}
	raw, err := json.Marshal(state)
	if err != nil {
		h.logger.Error("encode dashboard filters", slog.Any("error", err))
		return
	}
	sess.Set(FiltersSessionKey, string(raw))
}

func (h *Handler) respondError(w http.ResponseWriter, ctrl *dashboard.Controller, op string, err error) {
	switch {
	case errors.Is(err, dashboard.ErrSuperseded):
		httpx.JSON(w, http.StatusConflict, ViewResponse{View: ctrl.Snapshot()})
		return
	case errors.Is(err, dashboard.ErrNotReady):
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
		return
	case errors.Is(err, dashboard.ErrUnknownCategory),
		errors.Is(err, dashboard.ErrInvalidDate),
		errors.Is(err, dashboard.ErrInvalidPeriod),
		errors.Is(err, dashboard.ErrInvalidMode),
		errors.Is(err, dashboard.ErrInvalidAssetType):
		err = fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Warn(op, slog.Any("error", err))
		err = fmt.Errorf("%w: %v", httpx.ErrTimeout, err)
	case errors.Is(err, dashboard.ErrFetchFailure), errors.Is(err, dashboard.ErrNavigationFailure):
		h.logger.Warn(op, slog.Any("error", err))
		err = fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
