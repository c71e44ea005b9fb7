package liveness_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	"github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/liveness"
	"github.com/wrale/adsign/internal/adsignd/store/memory"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func seed(t *testing.T, store *memory.Store, id, admin string, status display.Status, now time.Time) *display.Display {
	t.Helper()
	d, err := display.New(id, "Screen "+id, "Floor 1", now)
	require.NoError(t, err)
	d.AssignedAdmin = admin
	d.Status = status
	require.NoError(t, store.Displays().Create(context.Background(), d))
	return d
}

func TestReportHeartbeat(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := liveness.NewTracker(store.Displays(), store.Requests(), testLogger, liveness.WithClock(func() time.Time { return now }))

	d := seed(t, store, "lobby-1", "admin-1", display.StatusOffline, now)

	got, err := tracker.ReportHeartbeat(ctx, d.ConnectionToken, "", "ad-42")
	require.NoError(t, err)
	assert.Equal(t, display.StatusOnline, got.Status)
	assert.True(t, got.IsConnected)
	require.NotNil(t, got.LastSeen)
	assert.True(t, got.LastSeen.Equal(now))
	assert.Equal(t, "ad-42", got.CurrentAd)

	_, err = tracker.ReportHeartbeat(ctx, "nope", display.StatusOnline, "")
	assert.True(t, errors.IsNotFound(err))

	_, err = tracker.ReportHeartbeat(ctx, d.ConnectionToken, display.StatusInactive, "")
	assert.True(t, errors.IsInvalidInput(err), "devices cannot mark themselves inactive")

	_, err = tracker.ReportHeartbeat(ctx, "", display.StatusOnline, "")
	assert.True(t, errors.IsInvalidInput(err))
}

func TestHeartbeatDoesNotClearInactive(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := liveness.NewTracker(store.Displays(), store.Requests(), testLogger, liveness.WithClock(func() time.Time { return now }))

	d := seed(t, store, "lobby-1", "admin-1", display.StatusInactive, now)

	got, err := tracker.ReportHeartbeat(ctx, d.ConnectionToken, display.StatusOnline, "")
	require.NoError(t, err)
	assert.Equal(t, display.StatusInactive, got.Status)
	assert.Equal(t, display.StatusInactive, liveness.Derive(got, now))
}

func TestSummarize(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	tracker := liveness.NewTracker(store.Displays(), store.Requests(), testLogger, liveness.WithClock(func() time.Time { return clock }))

	fresh := seed(t, store, "fresh", "admin-1", display.StatusOffline, now)
	stale := seed(t, store, "stale", "admin-1", display.StatusOffline, now)
	seed(t, store, "off", "admin-1", display.StatusInactive, now)
	seed(t, store, "other", "admin-2", display.StatusOnline, now)
	pending := seed(t, store, "pending", "", display.StatusOffline, now)
	require.NoError(t, store.Requests().Create(ctx, approval.NewRequest(pending.DisplayID, now)))

	clock = now.Add(-3 * time.Hour)
	_, err := tracker.ReportHeartbeat(ctx, stale.ConnectionToken, display.StatusOnline, "")
	require.NoError(t, err)
	clock = now
	_, err = tracker.ReportHeartbeat(ctx, fresh.ConnectionToken, display.StatusOnline, "")
	require.NoError(t, err)

	summary, err := tracker.Summarize(ctx, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, liveness.Summary{
		Total:           3,
		Online:          1,
		Offline:         1,
		Inactive:        1,
		PendingRequests: 1,
	}, *summary)
}
