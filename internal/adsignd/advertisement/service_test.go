package advertisement_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrale/adsign/internal/adsignd/advertisement"
	"github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/store/memory"
)

func newService() *advertisement.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return advertisement.NewService(memory.New().Advertisements(), logger)
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	valid := advertisement.CreateParams{
		Title:     "Spring sale",
		MediaURL:  "https://cdn.example.com/spring.mp4",
		MediaType: advertisement.MediaVideo,
		Duration:  30,
	}

	ad, err := svc.Create(ctx, "admin-1", valid)
	require.NoError(t, err)
	assert.Equal(t, advertisement.StatusDraft, ad.Status)
	assert.False(t, ad.Playable())

	tests := []struct {
		name   string
		mutate func(p *advertisement.CreateParams)
	}{
		{"empty title", func(p *advertisement.CreateParams) { p.Title = "  " }},
		{"missing url", func(p *advertisement.CreateParams) { p.MediaURL = "" }},
		{"unknown media", func(p *advertisement.CreateParams) { p.MediaType = "audio" }},
		{"zero duration", func(p *advertisement.CreateParams) { p.Duration = 0 }},
		{"too long", func(p *advertisement.CreateParams) { p.Duration = 301 }},
		{"unknown status", func(p *advertisement.CreateParams) { p.Status = "live" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := svc.Create(ctx, "admin-1", p)
			assert.True(t, errors.IsInvalidInput(err), "got %v", err)
		})
	}

	_, err = svc.Create(ctx, "", valid)
	assert.True(t, errors.IsUnauthorized(err))
}

func TestService_OwnershipAndStatus(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	ad, err := svc.Create(ctx, "admin-1", advertisement.CreateParams{
		Title:     "Menu",
		MediaURL:  "https://cdn.example.com/menu.png",
		MediaType: advertisement.MediaImage,
		Duration:  10,
	})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "admin-2", ad.ID)
	assert.True(t, errors.IsNotFound(err))
	_, err = svc.Get(ctx, "admin-1", uuid.New())
	assert.True(t, errors.IsNotFound(err))

	updated, err := svc.SetStatus(ctx, "admin-1", ad.ID, advertisement.StatusActive)
	require.NoError(t, err)
	assert.True(t, updated.Playable())

	_, err = svc.SetStatus(ctx, "admin-2", ad.ID, advertisement.StatusPaused)
	assert.True(t, errors.IsNotFound(err))
	_, err = svc.SetStatus(ctx, "admin-1", ad.ID, "live")
	assert.True(t, errors.IsInvalidInput(err))

	mine, err := svc.List(ctx, "admin-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	theirs, err := svc.List(ctx, "admin-2")
	require.NoError(t, err)
	assert.Empty(t, theirs)
}
