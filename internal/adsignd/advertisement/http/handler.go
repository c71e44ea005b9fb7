// Package http exposes advertisements over HTTP
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/advertisement"
	"github.com/wrale/adsign/internal/adsignd/auth"
	werrors "github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/httpapi"
)

// Handler serves the /advertisements routes
type Handler struct {
	service *advertisement.Service
	auth    auth.Service
	logger  *slog.Logger
}

// NewHandler creates an advertisement handler
func NewHandler(service *advertisement.Service, tokens auth.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, auth: tokens, logger: logger}
}

// Mount registers the advertisement routes on r
func (h *Handler) Mount(r chi.Router) {
	r.Route("/advertisements", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(httpapi.AdminAuth(h.auth, h.logger))

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{adID}", h.Get)
		r.Put("/{adID}/status", h.SetStatus)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req v1alpha1.AdvertisementCreateRequest
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	ad, err := h.service.Create(r.Context(), httpapi.AdminID(r.Context()), advertisement.CreateParams{
		Title:     req.Title,
		MediaURL:  req.MediaURL,
		MediaType: advertisement.MediaType(req.MediaType),
		Duration:  req.Duration,
		Status:    advertisement.Status(req.Status),
	})
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", "/api/v1alpha1/advertisements/"+ad.ID.String())
	httpapi.WriteJSON(w, http.StatusCreated, toAdvertisement(ad))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ads, err := h.service.List(r.Context(), httpapi.AdminID(r.Context()))
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	items := make([]v1alpha1.Advertisement, 0, len(ads))
	for _, ad := range ads {
		items = append(items, toAdvertisement(ad))
	}
	httpapi.WriteJSON(w, http.StatusOK, v1alpha1.NewList(items))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := adIDParam(r)
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}
	ad, err := h.service.Get(r.Context(), httpapi.AdminID(r.Context()), id)
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAdvertisement(ad))
}

// SetStatus changes whether the ad is eligible for playback
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := adIDParam(r)
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	var req v1alpha1.AdvertisementStatusUpdate
	if err := httpapi.DecodeJSON(w, r, &req); err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}

	ad, err := h.service.SetStatus(r.Context(), httpapi.AdminID(r.Context()), id, advertisement.Status(req.Status))
	if err != nil {
		httpapi.WriteError(w, r, h.logger, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, toAdvertisement(ad))
}

func adIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "adID"))
	if err != nil {
		return uuid.Nil, werrors.Validation("AdvertisementHandler.adIDParam", "advertisement id must be a UUID")
	}
	return id, nil
}

func toAdvertisement(ad *advertisement.Advertisement) v1alpha1.Advertisement {
	return v1alpha1.Advertisement{
		TypeMeta: v1alpha1.TypeMeta{
			Kind:       "Advertisement",
			APIVersion: v1alpha1.APIVersion,
		},
		ID:        ad.ID,
		Title:     ad.Title,
		MediaURL:  ad.MediaURL,
		MediaType: v1alpha1.MediaType(ad.MediaType),
		Duration:  ad.Duration,
		Status:    v1alpha1.AdvertisementStatus(ad.Status),
		CreatedAt: ad.CreatedAt,
		UpdatedAt: ad.UpdatedAt,
	}
}
