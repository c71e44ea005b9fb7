// Package http exposes loop management over HTTP
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/auth"
	werrors "github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/httpapi"
	"github.com/wrale/adsign/internal/adsignd/loop"
)

// Service is the loop service the handler depends on
type Service interface {
	Create(ctx context.Context, adminID string, params loop.CreateParams) (*loop.Loop, error)
	Get(ctx context.Context, adminID string, id uuid.UUID) (*loop.Loop, error)
	ListByDisplay(ctx context.Context, adminID, displayID string) ([]*loop.Loop, error)
	Update(ctx context.Context, adminID string, id uuid.UUID, params loop.UpdateParams) (*loop.Loop, error)
	Delete(ctx context.Context, adminID string, id uuid.UUID) error
}

// Handler serves the /loops routes
type Handler struct {
	service Service
	auth    auth.Service
	logger  *slog.Logger
}

// NewHandler creates a loop handler
func NewHandler(service Service, tokens auth.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, auth: tokens, logger: logger}
}

// Mount registers the loop routes on r
func (h *Handler) Mount(r chi.Router) {
	r.Route("/loops", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(httpapi.AdminAuth(h.auth, h.logger))

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{loopID}", h.Get)
		r.Patch("/{loopID}", h.Update)
		r.Delete("/{loopID}", h.Delete)
	})
}

// Create builds a loop for one of the caller's displays
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req v1alpha1.LoopCreateRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	l, err := h.service.Create(r.Context(), httpapi.AdminID(r.Context()), loop.CreateParams{
		DisplayID:    req.DisplayID,
		Name:         req.Name,
		RotationType: loop.RotationType(req.RotationType),
		AdIDs:        req.Advertisements,
		Assign:       req.Assign,
	})
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1alpha1/loops/"+l.ID.String())
	httpapi.WriteJSON(w, http.StatusCreated, toLoop(l))
}

// List returns the loops of the display named by the display query parameter
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "LoopHandler.List"

	displayID := r.URL.Query().Get("display")
	if displayID == "" {
		httpapi.WriteError(w, r, h.logger, werrors.Validation(op, "display query parameter is required"))
		return
	}

	loops, err := h.service.ListByDisplay(r.Context(), httpapi.AdminID(r.Context()), displayID)
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	items := make([]v1alpha1.Loop, 0, len(loops))
	for _, l := range loops {
		items = append(items, toLoop(l))
	}
	httpapi.WriteJSON(w, http.StatusOK, v1alpha1.NewList(items))
}

// Get returns one loop
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := loopIDParam(r)
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}
	l, err := h.service.Get(r.Context(), httpapi.AdminID(r.Context()), id)
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toLoop(l))
}

// Update replaces advertisements and/or the rotation type
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := loopIDParam(r)
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	var req v1alpha1.LoopUpdateRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	params := loop.UpdateParams{
		AdIDs:   req.Advertisements,
		Version: req.Version,
	}
	if req.RotationType != nil {
		rotation := loop.RotationType(*req.RotationType)
		params.RotationType = &rotation
	}

	l, err := h.service.Update(r.Context(), httpapi.AdminID(r.Context()), id, params)
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toLoop(l))
}

// Delete removes a loop
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := loopIDParam(r)
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), httpapi.AdminID(r.Context()), id); err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func loopIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "loopID"))
	if err != nil {
		return uuid.Nil, werrors.Validation("LoopHandler.loopIDParam", "loop id must be a UUID")
	}
	return id, nil
}

func toLoop(l *loop.Loop) v1alpha1.Loop {
	items := make([]v1alpha1.LoopItem, 0, len(l.Items))
	for _, item := range l.Items {
		items = append(items, v1alpha1.LoopItem{AdID: item.AdID, LoopOrder: item.Order})
	}
	return v1alpha1.Loop{
		TypeMeta: v1alpha1.TypeMeta{
			Kind:       "Loop",
			APIVersion: v1alpha1.APIVersion,
		},
		ID:            l.ID,
		DisplayID:     l.DisplayID,
		Name:          l.Name,
		Items:         items,
		RotationType:  v1alpha1.RotationType(l.RotationType),
		TotalDuration: l.TotalDuration,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
		Version:       l.Version,
	}
}
