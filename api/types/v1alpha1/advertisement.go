package v1alpha1

import (
	"time"

	"github.com/google/uuid"
)

// MediaType is the kind of media an advertisement shows
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// AdvertisementStatus controls playback eligibility; only active ads play
type AdvertisementStatus string

const (
	AdActive    AdvertisementStatus = "active"
	AdScheduled AdvertisementStatus = "scheduled"
	AdPaused    AdvertisementStatus = "paused"
	AdExpired   AdvertisementStatus = "expired"
	AdDraft     AdvertisementStatus = "draft"
)

// Advertisement is a playable media item
type Advertisement struct {
	TypeMeta `json:",inline"`

	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	MediaURL  string    `json:"mediaUrl"`
	MediaType MediaType `json:"mediaType"`
	// Duration in seconds, 1-300
	Duration  int                 `json:"duration"`
	Status    AdvertisementStatus `json:"status"`
	CreatedAt time.Time           `json:"createdAt"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// AdvertisementCreateRequest creates an advertisement
type AdvertisementCreateRequest struct {
	Title     string              `json:"title"`
	MediaURL  string              `json:"mediaUrl"`
	MediaType MediaType           `json:"mediaType"`
	Duration  int                 `json:"duration"`
	Status    AdvertisementStatus `json:"status,omitempty"`
}

// AdvertisementStatusUpdate changes an advertisement's status
type AdvertisementStatusUpdate struct {
	Status AdvertisementStatus `json:"status"`
}
