package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/adsign/internal/adsignd/advertisement"
	adpg "github.com/wrale/adsign/internal/adsignd/advertisement/postgres"
	"github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/loop"
	"github.com/wrale/adsign/internal/adsignd/loop/postgres"
	"github.com/wrale/adsign/internal/adsignd/testutil"
)

func TestRepository_LoopLifecycle(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loops := postgres.NewRepository(db, logger)
	ads := adpg.NewRepository(db, logger)
	now := time.Now().UTC().Truncate(time.Microsecond)

	a, err := advertisement.New("admin-1", advertisement.CreateParams{
		Title: "a", MediaURL: "https://cdn.example.com/a.png", MediaType: advertisement.MediaImage, Duration: 5, Status: advertisement.StatusActive,
	}, now)
	require.NoError(t, err)
	b, err := advertisement.New("admin-1", advertisement.CreateParams{
		Title: "b", MediaURL: "https://cdn.example.com/b.mp4", MediaType: advertisement.MediaVideo, Duration: 3,
	}, now)
	require.NoError(t, err)
	require.NoError(t, ads.Create(ctx, a))
	require.NoError(t, ads.Create(ctx, b))

	found, err := ads.FindByIDs(ctx, []uuid.UUID{a.ID, b.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	b.Status = advertisement.StatusPaused
	require.NoError(t, ads.Save(ctx, b))
	reloaded, err := ads.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, advertisement.StatusPaused, reloaded.Status)

	l, err := loop.New("lobby-1", "admin-1", "Morning", loop.RotationRandom, now)
	require.NoError(t, err)
	require.NoError(t, l.SetAdvertisements([]uuid.UUID{a.ID, b.ID, a.ID}, found, now))
	require.NoError(t, loops.Create(ctx, l))

	got, err := loops.FindByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Items, got.Items)
	assert.Equal(t, 13, got.TotalDuration)
	assert.Equal(t, loop.RotationRandom, got.RotationType)

	got.Name = "Evening"
	require.NoError(t, loops.Save(ctx, got))
	assert.Equal(t, 2, got.Version)
	got.Version = 1
	assert.True(t, errors.IsVersionMismatch(loops.Save(ctx, got)))

	byDisplay, err := loops.ListByDisplay(ctx, "lobby-1")
	require.NoError(t, err)
	assert.Len(t, byDisplay, 1)

	require.NoError(t, loops.Delete(ctx, l.ID))
	_, err = loops.FindByID(ctx, l.ID)
	assert.True(t, errors.IsNotFound(err))
	assert.True(t, errors.IsNotFound(loops.Delete(ctx, l.ID)))
}
