// Package http exposes the display registry, approval workflow and liveness
// tracker over HTTP
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/auth"
	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	"github.com/wrale/adsign/internal/adsignd/httpapi"
	"github.com/wrale/adsign/internal/adsignd/liveness"
	"github.com/wrale/adsign/internal/adsignd/loop"
	"github.com/wrale/adsign/internal/adsignd/ratelimit"
)

// Liveness is the part of the liveness tracker the handlers use
type Liveness interface {
	ReportHeartbeat(ctx context.Context, token string, reported display.Status, currentAd string) (*display.Display, error)
	Summarize(ctx context.Context, adminID string) (*liveness.Summary, error)
	Now() time.Time
}

// Loops is the part of the loop service the display routes use
type Loops interface {
	Assign(ctx context.Context, adminID, displayID string, loopID uuid.UUID) (*display.Display, error)
	Playlist(ctx context.Context, token string) (*loop.Playlist, error)
}

// EventStream upgrades a device connection and streams its events
type EventStream interface {
	Serve(w http.ResponseWriter, r *http.Request, displayID string)
}

// Handler encapsulates the HTTP API for displays and connection requests
type Handler struct {
	displays display.Service
	workflow approval.Workflow
	liveness Liveness
	loops    Loops
	events   EventStream
	auth     auth.Service
	limiters *ratelimit.Limiters
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler for display endpoints
func NewHandler(
	displays display.Service,
	workflow approval.Workflow,
	tracker Liveness,
	loops Loops,
	events EventStream,
	tokens auth.Service,
	limiters *ratelimit.Limiters,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		displays: displays,
		workflow: workflow,
		liveness: tracker,
		loops:    loops,
		events:   events,
		auth:     tokens,
		limiters: limiters,
		logger:   logger,
	}
}

// Mount registers the display and connection request routes on r, which is
// expected to be rooted at /api/v1alpha1
func (h *Handler) Mount(r chi.Router) {
	r.Route("/displays", func(r chi.Router) {
		// Device routes, authenticated by connection token
		r.Group(func(r chi.Router) {
			r.Use(h.limiters.Register())
			r.Use(middleware.Timeout(10 * time.Second))

			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.limiters.Device())

			r.With(middleware.Timeout(10*time.Second)).Get("/token/{token}", h.PollStatus)
			r.With(middleware.Timeout(10*time.Second)).Get("/token/{token}/playlist", h.GetPlaylist)
			r.With(middleware.Timeout(10*time.Second)).Post("/status", h.ReportStatus)
			r.Get("/ws", h.Events)
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(httpapi.AdminAuth(h.auth, h.logger))

			r.Get("/", h.ListDisplays)
			r.Post("/", h.CreateDisplay)
			r.Get("/summary", h.Summary)
			r.Get("/{displayID}", h.GetDisplay)
			r.Patch("/{displayID}", h.UpdateDisplay)
			r.Delete("/{displayID}", h.DeleteDisplay)
			r.Put("/{displayID}/status", h.SetStatus)
			r.Put("/{displayID}/loop", h.AssignLoop)
		})
	})

	r.Route("/connection-requests", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(httpapi.AdminAuth(h.auth, h.logger))

		r.Get("/", h.ListRequests)
		r.Post("/{requestID}/approve", h.ApproveRequest)
		r.Post("/{requestID}/reject", h.RejectRequest)
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpapi.WriteError(w, r, h.logger, err)
}
