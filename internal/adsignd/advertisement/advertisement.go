// Package advertisement holds the playable media items that loops reference
package advertisement

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	werrors "github.com/wrale/adsign/internal/adsignd/errors"
)

// MediaType is the kind of media an advertisement shows
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// Status controls playback eligibility
type Status string

const (
	StatusActive    Status = "active"
	StatusScheduled Status = "scheduled"
	StatusPaused    Status = "paused"
	StatusExpired   Status = "expired"
	StatusDraft     Status = "draft"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusScheduled, StatusPaused, StatusExpired, StatusDraft:
		return true
	}
	return false
}

// Duration bounds in seconds
const (
	MinDuration = 1
	MaxDuration = 300
)

// Advertisement is a playable media item owned by one admin
type Advertisement struct {
	ID         uuid.UUID
	OwnerAdmin string
	Title      string
	MediaURL   string
	MediaType  MediaType
	// Duration in seconds
	Duration  int
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Playable reports whether the rotation engine may show the ad
func (a *Advertisement) Playable() bool {
	return a.Status == StatusActive
}

// CreateParams describes a new advertisement
type CreateParams struct {
	Title     string
	MediaURL  string
	MediaType MediaType
	Duration  int
	Status    Status
}

// New validates params and builds an advertisement. Status defaults to draft.
func New(ownerAdmin string, params CreateParams, now time.Time) (*Advertisement, error) {
	const op = "advertisement.New"

	title := strings.TrimSpace(params.Title)
	if n := utf8.RuneCountInString(title); n < 1 || n > 200 {
		return nil, werrors.Validation(op, "title must be 1-200 characters")
	}
	if strings.TrimSpace(params.MediaURL) == "" {
		return nil, werrors.Validation(op, "media url is required")
	}
	if params.MediaType != MediaImage && params.MediaType != MediaVideo {
		return nil, werrors.Validation(op, "media type must be image or video")
	}
	if err := ValidateDuration(op, params.Duration); err != nil {
		return nil, err
	}
	status := params.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return nil, werrors.Validation(op, "unknown advertisement status")
	}

	return &Advertisement{
		ID:         uuid.New(),
		OwnerAdmin: ownerAdmin,
		Title:      title,
		MediaURL:   strings.TrimSpace(params.MediaURL),
		MediaType:  params.MediaType,
		Duration:   params.Duration,
		Status:     status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ValidateDuration checks the 1-300 second bound
func ValidateDuration(op string, seconds int) error {
	if seconds < MinDuration || seconds > MaxDuration {
		return werrors.Validation(op, "duration must be between 1 and 300 seconds")
	}
	return nil
}

// Repository persists advertisements
type Repository interface {
	Create(ctx context.Context, ad *Advertisement) error
	Save(ctx context.Context, ad *Advertisement) error
	FindByID(ctx context.Context, id uuid.UUID) (*Advertisement, error)
	// FindByIDs returns the advertisements that exist among ids, keyed by id
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Advertisement, error)
	List(ctx context.Context, ownerAdmin string) ([]*Advertisement, error)
}
