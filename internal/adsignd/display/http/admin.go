package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/display"
	werrors "github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/httpapi"
)

// ListDisplays lists the caller's displays, optionally by stored status or loop
func (h *Handler) ListDisplays(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.ListDisplays"

	var filter display.Filter
	if s := r.URL.Query().Get("status"); s != "" {
		status := display.Status(s)
		if !status.Valid() {
			h.writeError(w, r, werrors.Validation(op, "unknown display status"))
			return
		}
		filter.Statuses = []display.Status{status}
	}
	filter.CurrentLoop = r.URL.Query().Get("loop")

	displays, err := h.displays.List(r.Context(), httpapi.AdminID(r.Context()), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := h.liveness.Now()
	items := make([]v1alpha1.Display, 0, len(displays))
	for _, d := range displays {
		items = append(items, toDisplay(d, now))
	}
	httpapi.WriteJSON(w, http.StatusOK, v1alpha1.NewList(items))
}

// CreateDisplay registers a display already assigned to the caller
func (h *Handler) CreateDisplay(w http.ResponseWriter, r *http.Request) {
	var req v1alpha1.DisplayCreateRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.displays.Create(r.Context(), httpapi.AdminID(r.Context()), display.CreateParams{
		DisplayID:     req.DisplayID,
		Name:          req.DisplayName,
		Location:      req.Location,
		Password:      req.Password,
		Resolution:    display.Resolution{Width: req.Resolution.Width, Height: req.Resolution.Height},
		Configuration: fromConfiguration(req.Configuration),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1alpha1/displays/"+d.DisplayID)
	httpapi.WriteJSON(w, http.StatusCreated, v1alpha1.DisplayCreateResponse{
		Display:         toDisplay(d, h.liveness.Now()),
		ConnectionToken: d.ConnectionToken,
	})
}

// Summary counts the caller's displays by actual status
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.liveness.Summarize(r.Context(), httpapi.AdminID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, v1alpha1.DisplaySummary{
		Total:           summary.Total,
		Online:          summary.Online,
		Offline:         summary.Offline,
		Inactive:        summary.Inactive,
		PendingRequests: summary.PendingRequests,
	})
}

// GetDisplay returns one of the caller's displays
func (h *Handler) GetDisplay(w http.ResponseWriter, r *http.Request) {
	d, err := h.displays.Get(r.Context(), httpapi.AdminID(r.Context()), chi.URLParam(r, "displayID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toDisplay(d, h.liveness.Now()))
}

// UpdateDisplay patches presentation fields
func (h *Handler) UpdateDisplay(w http.ResponseWriter, r *http.Request) {
	var req v1alpha1.DisplayUpdateRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.displays.Update(r.Context(), httpapi.AdminID(r.Context()), chi.URLParam(r, "displayID"), display.UpdateParams{
		Name:          req.DisplayName,
		Location:      req.Location,
		Resolution:    fromResolution(req.Resolution),
		Configuration: fromConfiguration(req.Configuration),
		Version:       req.Version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toDisplay(d, h.liveness.Now()))
}

// DeleteDisplay removes one of the caller's displays
func (h *Handler) DeleteDisplay(w http.ResponseWriter, r *http.Request) {
	if err := h.displays.Delete(r.Context(), httpapi.AdminID(r.Context()), chi.URLParam(r, "displayID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetStatus switches a display to inactive or re-enables it
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.SetStatus"

	var req v1alpha1.DisplayStatusUpdate
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	var inactive bool
	switch req.Status {
	case v1alpha1.DisplayStatusInactive:
		inactive = true
	case v1alpha1.DisplayStatusOffline, v1alpha1.DisplayStatusOnline:
	default:
		h.writeError(w, r, werrors.Validation(op, "status must be inactive, offline or online"))
		return
	}

	d, err := h.displays.SetInactive(r.Context(), httpapi.AdminID(r.Context()), chi.URLParam(r, "displayID"), inactive)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toDisplay(d, h.liveness.Now()))
}

// AssignLoop makes a loop the display's current loop
func (h *Handler) AssignLoop(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.AssignLoop"

	var req v1alpha1.LoopAssignment
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	loopID, err := uuid.Parse(req.LoopID)
	if err != nil {
		h.writeError(w, r, werrors.Validation(op, "loopId must be a UUID"))
		return
	}

	d, err := h.loops.Assign(r.Context(), httpapi.AdminID(r.Context()), chi.URLParam(r, "displayID"), loopID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toDisplay(d, h.liveness.Now()))
}
