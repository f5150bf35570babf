package assethttp

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/itasset/internal/assets"
	"github.com/odyssey-erp/itasset/internal/platform/httpx"
)

func (h *Handler) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	var input assets.AssetInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	asset, err := h.service.CreateAsset(r.Context(), input)
	if err != nil {
		h.respondError(w, "create asset", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, asset)
}

type assignmentRequest struct {
	Employee string `json:"employee"`
	Date     string `json:"date"`
	Notes    string `json:"notes"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid Asset")
	if !ok {
		return
	}
	var req assignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	date, ok := optionalDate(w, req.Date)
	if !ok {
		return
	}
	a, err := h.service.AssignAsset(r.Context(), assets.AssignmentInput{
		AssetID:  id,
		Employee: req.Employee,
		Date:     date,
		Notes:    req.Notes,
	})
	if err != nil {
		h.respondError(w, "assign asset", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) handleReturnAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid Assignment")
	if !ok {
		return
	}
	a, err := h.service.ReturnAssignment(r.Context(), id)
	if err != nil {
		h.respondError(w, "return assignment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid Asset")
	if !ok {
		return
	}
	_, page, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.respondError(w, "parse list query", err)
		return
	}
	items, err := h.service.ListAssignments(r.Context(), id, page)
	if err != nil {
		h.respondError(w, "list assignments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse[assets.Assignment]{Domain: []any{}, Limit: page.Limit, Offset: page.Offset, Items: items})
}

type swapRequest struct {
	UnitID int64  `json:"unit_id"`
	Date   string `json:"date"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleSwap(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid Asset")
	if !ok {
		return
	}
	var req swapRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	date, ok := optionalDate(w, req.Date)
	if !ok {
		return
	}
	sw, err := h.service.SwapAsset(r.Context(), assets.SwapInput{
		AssetID: id,
		UnitID:  req.UnitID,
		Date:    date,
		Notes:   req.Notes,
	})
	if err != nil {
		h.respondError(w, "swap asset", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sw)
}

func (h *Handler) handleReturnSwap(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid Swap")
	if !ok {
		return
	}
	sw, err := h.service.ReturnSwap(r.Context(), id)
	if err != nil {
		h.respondError(w, "return swap", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sw)
}

func (h *Handler) handleListSwaps(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid Asset")
	if !ok {
		return
	}
	_, page, err := parseListQuery(r.URL.Query())
	if err != nil {
		h.respondError(w, "parse list query", err)
		return
	}
	items, err := h.service.ListSwaps(r.Context(), id, page)
	if err != nil {
		h.respondError(w, "list swaps", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse[assets.Swap]{Domain: []any{}, Limit: page.Limit, Offset: page.Offset, Items: items})
}

func pathID(w http.ResponseWriter, r *http.Request, title string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, title, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

// optionalDate parses a YYYY-MM-DD date; empty means the service default.
func optionalDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}
