package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	werrors "github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/httpapi"
)

// Register handles device self-registration
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req v1alpha1.DisplayRegistrationRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	reg, err := h.workflow.Register(r.Context(), approval.RegisterParams{
		DisplayID:  req.DisplayID,
		Name:       req.DisplayName,
		Location:   req.Location,
		Password:   req.Password,
		Resolution: display.Resolution{Width: req.Resolution.Width, Height: req.Resolution.Height},
		DeviceInfo: req.DeviceInfo,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, v1alpha1.DisplayRegistrationResponse{
		DisplayID:           reg.Display.DisplayID,
		ConnectionToken:     reg.Display.ConnectionToken,
		Status:              v1alpha1.DisplayStatus(reg.Display.Status),
		IsPendingApproval:   reg.Display.IsPending(),
		ConnectionRequestID: reg.Request.ID.String(),
	})
}

// Login recovers a connection token with the display password
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req v1alpha1.DisplayLoginRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.displays.Login(r.Context(), req.DisplayID, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, v1alpha1.DisplayLoginResponse{
		DisplayID:       d.DisplayID,
		ConnectionToken: d.ConnectionToken,
	})
}

// PollStatus tells a device where its registration stands
func (h *Handler) PollStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.workflow.PollStatus(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d := result.Display
	httpapi.WriteJSON(w, http.StatusOK, v1alpha1.DisplayTokenStatus{
		DisplayID:               d.DisplayID,
		Status:                  v1alpha1.DisplayStatus(d.Status),
		Configuration:           toConfiguration(d.Configuration),
		CurrentLoop:             d.CurrentLoop,
		AssignedAdmin:           d.AssignedAdmin,
		ConnectionRequestStatus: v1alpha1.ConnectionRequestStatus(result.RequestStatus),
		RejectionReason:         result.RejectionReason,
	})
}

// GetPlaylist returns the ads of the display's current loop
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.loops.Playlist(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toPlaylist(playlist))
}

// ReportStatus ingests a device heartbeat
func (h *Handler) ReportStatus(w http.ResponseWriter, r *http.Request) {
	var req v1alpha1.StatusReport
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if _, err := h.liveness.ReportHeartbeat(r.Context(), req.ConnectionToken, display.Status(req.Status), req.CurrentAdPlaying); err != nil {
		h.writeError(w, r, err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, v1alpha1.StatusAck{
		Acknowledged: true,
		ServerTime:   h.liveness.Now(),
	})
}

// Events upgrades the request to a websocket carrying the display's events
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	const op = "Handler.Events"

	token := r.URL.Query().Get("token")
	if token == "" {
		h.writeError(w, r, werrors.NewError("UNAUTHORIZED", "connection token is required", op, werrors.ErrUnauthorized))
		return
	}
	d, err := h.displays.GetByToken(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.events.Serve(w, r, d.DisplayID)
}
