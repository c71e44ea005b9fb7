package liveness

import (
	"context"
	"log/slog"
	"time"

	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	"github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/metrics"
)

// Summary counts an admin's displays by derived status
type Summary struct {
	Total           int
	Online          int
	Offline         int
	Inactive        int
	PendingRequests int
}

// Tracker records heartbeats and summarizes liveness
type Tracker struct {
	displays display.Repository
	requests approval.Repository
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a liveness tracker
func NewTracker(displays display.Repository, requests approval.Repository, logger *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		displays: displays,
		requests: requests,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ReportHeartbeat marks the display owning token as seen now. The reported
// status defaults to online; a device cannot set or clear inactive.
func (t *Tracker) ReportHeartbeat(ctx context.Context, token string, reported display.Status, currentAd string) (*display.Display, error) {
	const op = "LivenessTracker.ReportHeartbeat"

	if token == "" {
		metrics.Heartbeats.WithLabelValues("invalid").Inc()
		return nil, errors.Validation(op, "connection token is required")
	}
	if reported == "" {
		reported = display.StatusOnline
	}
	if reported != display.StatusOnline && reported != display.StatusOffline {
		metrics.Heartbeats.WithLabelValues("invalid").Inc()
		return nil, errors.Validation(op, "reported status must be online or offline")
	}

	d, err := t.displays.RecordHeartbeat(ctx, token, reported, currentAd, t.now())
	if err != nil {
		if errors.IsNotFound(err) {
			metrics.Heartbeats.WithLabelValues("unknown").Inc()
			return nil, errors.NewError("NOT_FOUND", "unknown connection token", op, err)
		}
		metrics.Heartbeats.WithLabelValues("failed").Inc()
		return nil, errors.NewError("HEARTBEAT_FAILED", "failed to record heartbeat", op, err)
	}

	metrics.Heartbeats.WithLabelValues("ok").Inc()
	t.logger.Debug("heartbeat recorded",
		"operation", op,
		"displayID", d.DisplayID,
		"status", d.Status,
	)
	return d, nil
}

// Summarize counts adminID's displays by derived status, plus pending requests
func (t *Tracker) Summarize(ctx context.Context, adminID string) (*Summary, error) {
	const op = "LivenessTracker.Summarize"

	displays, err := t.displays.List(ctx, display.Filter{AssignedAdmin: adminID})
	if err != nil {
		return nil, errors.NewError("LIST_FAILED", "failed to list displays", op, err)
	}

	now := t.now()
	summary := &Summary{Total: len(displays)}
	for _, d := range displays {
		switch Derive(d, now) {
		case display.StatusOnline:
			summary.Online++
		case display.StatusInactive:
			summary.Inactive++
		default:
			summary.Offline++
		}
	}

	pending, err := t.requests.List(ctx, approval.Filter{Status: approval.StatusPending})
	if err != nil {
		return nil, errors.NewError("LIST_FAILED", "failed to list connection requests", op, err)
	}
	summary.PendingRequests = len(pending)
	return summary, nil
}

// Now returns the tracker's clock, so read paths derive with the same time source
func (t *Tracker) Now() time.Time {
	return t.now()
}
