// Package loop implements playlists of advertisements assigned to displays
package loop

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/advertisement"
	werrors "github.com/wrale/adsign/internal/adsignd/errors"
)

// RotationType selects how a player advances through a loop
type RotationType string

const (
	RotationSequential RotationType = "sequential"
	RotationRandom     RotationType = "random"
	// RotationScheduled plays in loop order like sequential
	RotationScheduled RotationType = "scheduled"
)

// Valid reports whether r is a known rotation type
func (r RotationType) Valid() bool {
	switch r {
	case RotationSequential, RotationRandom, RotationScheduled:
		return true
	}
	return false
}

// MaxItems bounds the length of a loop
const MaxItems = 500

// Item places an advertisement in a loop. The same ad may appear more than once.
type Item struct {
	AdID  uuid.UUID `json:"adId"`
	Order int       `json:"loopOrder"`
}

// Loop is an ordered advertisement sequence for one display
type Loop struct {
	ID           uuid.UUID
	DisplayID    string
	OwnerAdmin   string
	Name         string
	Items        []Item
	RotationType RotationType
	// TotalDuration is the sum of ad durations when Items was last set. Later
	// changes to an ad's duration are not reflected until the items are set again.
	TotalDuration int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int
}

// New builds an empty loop
func New(displayID, ownerAdmin, name string, rotation RotationType, now time.Time) (*Loop, error) {
	const op = "loop.New"

	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return nil, werrors.Validation(op, "loop name must be 1-100 characters")
	}
	if rotation == "" {
		rotation = RotationSequential
	}
	if !rotation.Valid() {
		return nil, werrors.Validation(op, fmt.Sprintf("unknown rotation type %q", rotation))
	}
	return &Loop{
		ID:           uuid.New(),
		DisplayID:    displayID,
		OwnerAdmin:   ownerAdmin,
		Name:         name,
		Items:        []Item{},
		RotationType: rotation,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}, nil
}

// SetAdvertisements replaces the loop's items in the given order and
// recomputes TotalDuration from ads, which must contain every id
func (l *Loop) SetAdvertisements(adIDs []uuid.UUID, ads map[uuid.UUID]*advertisement.Advertisement, now time.Time) error {
	const op = "Loop.SetAdvertisements"

	if len(adIDs) > MaxItems {
		return werrors.Validation(op, fmt.Sprintf("a loop may hold at most %d advertisements", MaxItems))
	}

	items := make([]Item, 0, len(adIDs))
	total := 0
	for i, id := range adIDs {
		ad, ok := ads[id]
		if !ok {
			return werrors.NotFound(op, fmt.Sprintf("advertisement not found: %s", id))
		}
		items = append(items, Item{AdID: id, Order: i})
		total += ad.Duration
	}

	l.Items = items
	l.TotalDuration = total
	l.UpdatedAt = now
	return nil
}

// AdIDs returns the distinct advertisement ids referenced by the loop
func (l *Loop) AdIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(l.Items))
	ids := make([]uuid.UUID, 0, len(l.Items))
	for _, item := range l.Items {
		if !seen[item.AdID] {
			seen[item.AdID] = true
			ids = append(ids, item.AdID)
		}
	}
	return ids
}

// Repository persists loops
type Repository interface {
	Create(ctx context.Context, l *Loop) error
	// Save persists changes when l.Version matches, then increments it
	Save(ctx context.Context, l *Loop) error
	FindByID(ctx context.Context, id uuid.UUID) (*Loop, error)
	ListByDisplay(ctx context.Context, displayID string) ([]*Loop, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
