package ratelimit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/config"
	"github.com/wrale/adsign/internal/adsignd/httpapi"
)

// Middleware enforces limitType per client address using the shared store.
// Store failures let the request through.
func Middleware(service *Service, logger *slog.Logger, limitType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _ := httprate.KeyByRealIP(r)
			err := service.Allow(r.Context(), LimitKey{Type: limitType, RemoteIP: ip})
			if errors.Is(err, ErrLimitExceeded) {
				limit := service.GetLimit(limitType)
				logger.Warn("rate limit exceeded",
					"path", r.URL.Path,
					"remoteIP", ip,
					"type", limitType,
				)
				writeLimitExceeded(w, r, limit.Period)
				return
			}
			if err != nil {
				logger.Warn("rate limit store unavailable, allowing request",
					"error", err,
					"type", limitType,
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Limiters provides the middleware for the device endpoints
type Limiters struct {
	register func(http.Handler) http.Handler
	device   func(http.Handler) http.Handler
}

// NewLimiters uses the shared service when it is set and in-process
// httprate counters otherwise
func NewLimiters(cfg config.RateLimitConfig, service *Service, logger *slog.Logger) *Limiters {
	if service != nil {
		return &Limiters{
			register: Middleware(service, logger, TypeRegister),
			device:   Middleware(service, logger, TypeDevice),
		}
	}
	return &Limiters{
		register: local(cfg.RegisterPerMinute),
		device:   local(cfg.DevicePerMinute),
	}
}

// Register limits self-registration and password login
func (l *Limiters) Register() func(http.Handler) http.Handler { return l.register }

// Device limits polling, heartbeats and playlist fetches
func (l *Limiters) Device() func(http.Handler) http.Handler { return l.device }

func local(perMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeLimitExceeded(w, r, time.Minute)
		}),
	)
}

func writeLimitExceeded(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	httpapi.WriteJSON(w, http.StatusTooManyRequests, v1alpha1.ErrorResponse{
		Code:      ErrLimitExceeded.Code,
		Message:   "too many requests, please retry later",
		RequestID: middleware.GetReqID(r.Context()),
	})
}
