package loop

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/adsign/internal/adsignd/advertisement"
	"github.com/wrale/adsign/internal/adsignd/errors"
)

func TestNew(t *testing.T) {
	now := time.Now()

	l, err := New("lobby-1", "admin-1", " Morning ", "", now)
	require.NoError(t, err)
	assert.Equal(t, "Morning", l.Name)
	assert.Equal(t, RotationSequential, l.RotationType)
	assert.Empty(t, l.Items)
	assert.Equal(t, 1, l.Version)

	_, err = New("lobby-1", "admin-1", "", RotationRandom, now)
	assert.True(t, errors.IsInvalidInput(err))

	_, err = New("lobby-1", "admin-1", "x", "shuffle", now)
	assert.True(t, errors.IsInvalidInput(err))
}

func TestSetAdvertisements(t *testing.T) {
	now := time.Now()
	a := &advertisement.Advertisement{ID: uuid.New(), Duration: 5}
	b := &advertisement.Advertisement{ID: uuid.New(), Duration: 3}
	ads := map[uuid.UUID]*advertisement.Advertisement{a.ID: a, b.ID: b}

	l, err := New("lobby-1", "admin-1", "Loop", RotationSequential, now)
	require.NoError(t, err)

	require.NoError(t, l.SetAdvertisements([]uuid.UUID{a.ID, b.ID, a.ID}, ads, now))
	assert.Equal(t, 13, l.TotalDuration)
	require.Len(t, l.Items, 3)
	for i, item := range l.Items {
		assert.Equal(t, i, item.Order)
	}
	assert.Equal(t, []uuid.UUID{a.ID, b.ID}, l.AdIDs())

	// Duration changes are not retroactive
	a.Duration = 60
	assert.Equal(t, 13, l.TotalDuration)

	err = l.SetAdvertisements([]uuid.UUID{uuid.New()}, ads, now)
	assert.True(t, errors.IsNotFound(err))
	assert.Len(t, l.Items, 3, "failed update leaves items untouched")

	require.NoError(t, l.SetAdvertisements(nil, ads, now))
	assert.Empty(t, l.Items)
	assert.Zero(t, l.TotalDuration)

	tooMany := make([]uuid.UUID, MaxItems+1)
	for i := range tooMany {
		tooMany[i] = a.ID
	}
	assert.True(t, errors.IsInvalidInput(l.SetAdvertisements(tooMany, ads, now)))
}
