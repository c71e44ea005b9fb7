package v1alpha1

import (
	"time"

	"github.com/google/uuid"
)

// RotationType selects how the player advances through a loop
type RotationType string

const (
	RotationSequential RotationType = "sequential"
	RotationRandom     RotationType = "random"
	RotationScheduled  RotationType = "scheduled"
)

// LoopItem places an advertisement in a loop; an ad may appear more than once
type LoopItem struct {
	AdID      uuid.UUID `json:"adId"`
	LoopOrder int       `json:"loopOrder"`
}

// Loop is an ordered advertisement sequence for one display
type Loop struct {
	TypeMeta `json:",inline"`

	ID           uuid.UUID    `json:"id"`
	DisplayID    string       `json:"displayId"`
	Name         string       `json:"name"`
	Items        []LoopItem   `json:"items"`
	RotationType RotationType `json:"rotationType"`
	// TotalDuration is the sum of ad durations when the items were last set
	TotalDuration int       `json:"totalDuration"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Version       int       `json:"version"`
}

// LoopCreateRequest creates a loop for a display
type LoopCreateRequest struct {
	DisplayID      string       `json:"displayId"`
	Name           string       `json:"name"`
	RotationType   RotationType `json:"rotationType,omitempty"`
	Advertisements []uuid.UUID  `json:"advertisements"`
	// Assign makes the new loop the display's current loop
	Assign bool `json:"assign,omitempty"`
}

// LoopUpdateRequest replaces a loop's advertisements and/or rotation. A null
// advertisements list leaves the items unchanged.
type LoopUpdateRequest struct {
	Advertisements []uuid.UUID   `json:"advertisements"`
	RotationType   *RotationType `json:"rotationType,omitempty"`
	Version        int           `json:"version"`
}

// Playlist is the snapshot a player loads into its rotation engine
type Playlist struct {
	LoopID        uuid.UUID      `json:"loopId"`
	RotationType  RotationType   `json:"rotationType"`
	TotalDuration int            `json:"totalDuration"`
	Items         []PlaylistItem `json:"items"`
}

// PlaylistItem is one playable entry of a playlist, in loop order
type PlaylistItem struct {
	AdID      uuid.UUID           `json:"adId"`
	Title     string              `json:"title"`
	Duration  int                 `json:"duration"`
	MediaType MediaType           `json:"mediaType"`
	MediaURL  string              `json:"mediaUrl"`
	Status    AdvertisementStatus `json:"status"`
}
