package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	werrors "github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/httpapi"
)

// ListRequests lists connection requests, newest first
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.ListRequests"

	filter := approval.Filter{
		Status:    approval.Status(r.URL.Query().Get("status")),
		DisplayID: r.URL.Query().Get("displayId"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		h.writeError(w, r, werrors.Validation(op, "status must be pending, approved or rejected"))
		return
	}

	requests, err := h.workflow.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]v1alpha1.ConnectionRequest, 0, len(requests))
	for _, req := range requests {
		items = append(items, toRequest(req))
	}
	httpapi.WriteJSON(w, http.StatusOK, v1alpha1.NewList(items))
}

// ApproveRequest assigns the requesting display to the caller
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := requestIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	_, d, err := h.workflow.Approve(r.Context(), requestID, httpapi.AdminID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toDisplay(d, h.liveness.Now()))
}

// RejectRequest rejects a pending request with an optional reason
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	requestID, err := requestIDParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var body v1alpha1.RejectRequest
	if r.ContentLength != 0 {
		if err := httpapi.DecodeJSON(w, r, &body); err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	req, err := h.workflow.Reject(r.Context(), requestID, httpapi.AdminID(r.Context()), body.RejectionReason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toRequest(req))
}

func requestIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		return uuid.Nil, werrors.Validation("Handler.requestIDParam", "request id must be a UUID")
	}
	return id, nil
}
