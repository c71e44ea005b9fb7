package v1alpha1

import (
	"time"
)

// DisplayEventType represents types of display-related events
type DisplayEventType string

const (
	// DisplayEventRegistered indicates a new self-registration
	DisplayEventRegistered DisplayEventType = "REGISTERED"
	// DisplayEventApproved indicates the connection request was approved
	DisplayEventApproved DisplayEventType = "APPROVED"
	// DisplayEventRejected indicates the connection request was rejected
	DisplayEventRejected DisplayEventType = "REJECTED"
	// DisplayEventLoopAssigned indicates the display's current loop changed
	DisplayEventLoopAssigned DisplayEventType = "LOOP_ASSIGNED"
	// DisplayEventLoopUpdated indicates the content of the current loop changed
	DisplayEventLoopUpdated DisplayEventType = "LOOP_UPDATED"
	// DisplayEventStatusChanged indicates an admin changed the stored status
	DisplayEventStatusChanged DisplayEventType = "STATUS_CHANGED"
	// DisplayEventConfigured indicates presentation settings changed
	DisplayEventConfigured DisplayEventType = "CONFIGURED"
	// DisplayEventDeleted indicates the display was deleted
	DisplayEventDeleted DisplayEventType = "DELETED"
)

// DisplayEvent is pushed to a display over its websocket
type DisplayEvent struct {
	// TypeMeta describes API version details
	TypeMeta `json:",inline"`
	// Type indicates what kind of event occurred
	Type DisplayEventType `json:"type"`
	// DisplayID identifies which display the event is about
	DisplayID string `json:"displayId"`
	// Timestamp records when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// Data contains event-specific details
	Data map[string]string `json:"data,omitempty"`
}
