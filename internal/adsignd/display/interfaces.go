package display

import (
	"context"
	"time"
)

// Repository defines the interface for display persistence. Implementations
// report identifier and token collisions as errors.ErrConflict and missing
// rows as errors.ErrNotFound.
type Repository interface {
	// Create inserts a new display
	Create(ctx context.Context, d *Display) error

	// Save persists changes when d.Version matches the stored version, then
	// increments d.Version
	Save(ctx context.Context, d *Display) error

	// FindByID retrieves a display by its display id
	FindByID(ctx context.Context, displayID string) (*Display, error)

	// FindByToken retrieves a display by its connection token
	FindByToken(ctx context.Context, token string) (*Display, error)

	// List retrieves displays matching the given filter
	List(ctx context.Context, filter Filter) ([]*Display, error)

	// RecordHeartbeat applies Display.Heartbeat atomically without a
	// version check and returns the updated display
	RecordHeartbeat(ctx context.Context, token string, reported Status, currentAd string, at time.Time) (*Display, error)

	// Delete removes a display when its version still matches
	Delete(ctx context.Context, displayID string, version int) error
}

// Filter defines criteria for listing displays
type Filter struct {
	// AssignedAdmin restricts to displays managed by this admin
	AssignedAdmin string
	// Unassigned restricts to displays without an admin
	Unassigned bool
	// Statuses filters by stored status
	Statuses []Status
	// CurrentLoop restricts to displays playing this loop
	CurrentLoop string
}

// EventType represents types of display events
type EventType string

const (
	EventRegistered    EventType = "REGISTERED"
	EventApproved      EventType = "APPROVED"
	EventRejected      EventType = "REJECTED"
	EventLoopAssigned  EventType = "LOOP_ASSIGNED"
	EventLoopUpdated   EventType = "LOOP_UPDATED"
	EventStatusChanged EventType = "STATUS_CHANGED"
	EventConfigured    EventType = "CONFIGURED"
	EventDeleted       EventType = "DELETED"
)

// Event represents something that happened to a display
type Event struct {
	Type      EventType
	DisplayID string
	Timestamp time.Time
	Data      map[string]string
}

// EventPublisher delivers display events to interested subscribers
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events
type NopPublisher struct{}

// Publish implements EventPublisher
func (NopPublisher) Publish(context.Context, Event) error { return nil }
