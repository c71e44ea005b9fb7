package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	"github.com/wrale/adsign/internal/adsignd/display/approval/postgres"
	displaypg "github.com/wrale/adsign/internal/adsignd/display/postgres"
	"github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/testutil"
)

func setup(t *testing.T) (*postgres.Repository, *displaypg.Repository) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return postgres.NewRepository(db, logger), displaypg.NewRepository(db, logger)
}

func registered(t *testing.T, displays *displaypg.Repository, requests *postgres.Repository, id string, at time.Time) *approval.ConnectionRequest {
	t.Helper()
	ctx := context.Background()
	d, err := display.New(id, "Screen "+id, "Dock", at)
	require.NoError(t, err)
	require.NoError(t, displays.Create(ctx, d))
	req := approval.NewRequest(id, at)
	require.NoError(t, requests.Create(ctx, req))
	return req
}

func TestRepository_OnePendingPerDisplay(t *testing.T) {
	ctx := context.Background()
	requests, displays := setup(t)

	registered(t, displays, requests, "lobby-1", time.Now())
	err := requests.Create(ctx, approval.NewRequest("lobby-1", time.Now()))
	assert.True(t, errors.IsConflict(err))

	pending, err := requests.FindPending(ctx, "lobby-1")
	require.NoError(t, err)
	assert.Equal(t, "Screen lobby-1", pending.DisplayName)
	assert.Equal(t, "Dock", pending.Location)
}

func TestRepository_ResolveApprove(t *testing.T) {
	ctx := context.Background()
	requests, displays := setup(t)
	req := registered(t, displays, requests, "lobby-1", time.Now())

	got, d, err := requests.Resolve(ctx, req.ID, approval.Decision{
		Outcome: approval.StatusApproved,
		AdminID: "admin-1",
		At:      time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, approval.StatusApproved, got.Status)
	assert.Equal(t, "admin-1", got.RespondedBy)
	require.NotNil(t, got.RespondedAt)
	require.NotNil(t, d)
	assert.Equal(t, "admin-1", d.AssignedAdmin)
	assert.Equal(t, display.StatusOffline, d.Status)
	assert.Equal(t, 2, d.Version)

	_, _, err = requests.Resolve(ctx, req.ID, approval.Decision{Outcome: approval.StatusRejected, AdminID: "admin-2", At: time.Now()})
	assert.True(t, errors.IsInvalidState(err))

	_, _, err = requests.Resolve(ctx, uuid.New(), approval.Decision{Outcome: approval.StatusApproved, AdminID: "admin-1", At: time.Now()})
	assert.True(t, errors.IsNotFound(err))
}

func TestRepository_ResolveConcurrently(t *testing.T) {
	ctx := context.Background()
	requests, displays := setup(t)
	req := registered(t, displays, requests, "lobby-1", time.Now())

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, admin := range []string{"admin-1", "admin-2"} {
		wg.Add(1)
		go func(i int, admin string) {
			defer wg.Done()
			_, _, results[i] = requests.Resolve(ctx, req.ID, approval.Decision{
				Outcome: approval.StatusApproved,
				AdminID: admin,
				At:      time.Now(),
			})
		}(i, admin)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, errors.IsInvalidState(err), "loser sees invalid state, got %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestRepository_RejectAndExpire(t *testing.T) {
	ctx := context.Background()
	requests, displays := setup(t)
	now := time.Now()

	old := registered(t, displays, requests, "old-1", now.Add(-48*time.Hour))
	fresh := registered(t, displays, requests, "fresh-1", now.Add(-time.Hour))
	registered(t, displays, requests, "pending-1", now.Add(-72*time.Hour))

	_, d, err := requests.Resolve(ctx, old.ID, approval.Decision{
		Outcome: approval.StatusRejected, AdminID: "admin-1", Reason: "unknown site", At: now.Add(-47 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.True(t, d.IsPending(), "rejection leaves the display unassigned")

	_, _, err = requests.Resolve(ctx, fresh.ID, approval.Decision{
		Outcome: approval.StatusRejected, AdminID: "admin-1", At: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	ids, err := requests.ListExpiredRejections(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"old-1"}, ids)

	latest, err := requests.FindLatest(ctx, "old-1")
	require.NoError(t, err)
	assert.Equal(t, "unknown site", latest.RejectionReason)

	rejected, err := requests.List(ctx, approval.Filter{Status: approval.StatusRejected})
	require.NoError(t, err)
	require.Len(t, rejected, 2)
	assert.Equal(t, "fresh-1", rejected[0].DisplayID, "newest first")
}
