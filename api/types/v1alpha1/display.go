package v1alpha1

import (
	"time"
)

// DisplayStatus is the stored or derived status of a display
type DisplayStatus string

const (
	// DisplayStatusOnline indicates a display reporting heartbeats
	DisplayStatusOnline DisplayStatus = "online"
	// DisplayStatusOffline indicates a display that is not reporting
	DisplayStatusOffline DisplayStatus = "offline"
	// DisplayStatusInactive indicates a display an admin has switched off
	DisplayStatusInactive DisplayStatus = "inactive"
)

// Resolution is the pixel size of a display
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DisplayConfiguration holds presentation settings pushed to a display
type DisplayConfiguration struct {
	// Brightness in percent, 0-100
	Brightness int `json:"brightness"`
	// Volume in percent, 0-100
	Volume int `json:"volume"`
	// RefreshRate in seconds between playlist refreshes
	RefreshRate int `json:"refreshRate"`
	// Orientation is landscape or portrait
	Orientation string `json:"orientation"`
}

// Display represents a digital signage display as seen by its admin
type Display struct {
	TypeMeta `json:",inline"`

	DisplayID   string `json:"displayId"`
	DisplayName string `json:"displayName"`
	Location    string `json:"location"`
	// AssignedAdmin is empty while the display awaits approval
	AssignedAdmin string `json:"assignedAdmin,omitempty"`
	// Status is the stored status last written by a heartbeat or an admin
	Status DisplayStatus `json:"status"`
	// ActualStatus applies the staleness rule to Status at read time
	ActualStatus  DisplayStatus        `json:"actualStatus"`
	IsConnected   bool                 `json:"isConnected"`
	LastSeen      *time.Time           `json:"lastSeen,omitempty"`
	Resolution    Resolution           `json:"resolution"`
	Configuration DisplayConfiguration `json:"configuration"`
	CurrentLoop   string               `json:"currentLoop,omitempty"`
	CurrentAd     string               `json:"currentAd,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
	// Version tracks optimistic concurrency control
	Version int `json:"version"`
}

// DisplayRegistrationRequest is sent by a device registering itself
type DisplayRegistrationRequest struct {
	DisplayName string `json:"displayName"`
	Location    string `json:"location"`
	// DisplayID is optional; the server generates one when empty
	DisplayID string `json:"displayId,omitempty"`
	// Password optionally allows recovering the connection token later
	Password   string            `json:"password,omitempty"`
	Resolution Resolution        `json:"resolution"`
	DeviceInfo map[string]string `json:"deviceInfo,omitempty"`
}

// DisplayRegistrationResponse carries the device's credentials
type DisplayRegistrationResponse struct {
	DisplayID           string        `json:"displayId"`
	ConnectionToken     string        `json:"connectionToken"`
	Status              DisplayStatus `json:"status"`
	IsPendingApproval   bool          `json:"isPendingApproval"`
	ConnectionRequestID string        `json:"connectionRequestId"`
}

// DisplayLoginRequest recovers a connection token with a display password
type DisplayLoginRequest struct {
	DisplayID string `json:"displayId"`
	Password  string `json:"password"`
}

// DisplayLoginResponse returns the recovered connection token
type DisplayLoginResponse struct {
	DisplayID       string `json:"displayId"`
	ConnectionToken string `json:"connectionToken"`
}

// DisplayTokenStatus is what a device sees when polling with its token
type DisplayTokenStatus struct {
	DisplayID               string                  `json:"displayId"`
	Status                  DisplayStatus           `json:"status"`
	Configuration           DisplayConfiguration    `json:"configuration"`
	CurrentLoop             string                  `json:"currentLoop,omitempty"`
	AssignedAdmin           string                  `json:"assignedAdmin,omitempty"`
	ConnectionRequestStatus ConnectionRequestStatus `json:"connectionRequestStatus"`
	RejectionReason         string                  `json:"rejectionReason,omitempty"`
}

// StatusReport is a device heartbeat
type StatusReport struct {
	ConnectionToken  string        `json:"connectionToken"`
	Status           DisplayStatus `json:"status,omitempty"`
	CurrentAdPlaying string        `json:"currentAdPlaying,omitempty"`
}

// StatusAck acknowledges a heartbeat
type StatusAck struct {
	Acknowledged bool      `json:"acknowledged"`
	ServerTime   time.Time `json:"serverTime"`
}

// DisplayCreateRequest creates a display already assigned to the caller
type DisplayCreateRequest struct {
	DisplayName   string                `json:"displayName"`
	Location      string                `json:"location"`
	DisplayID     string                `json:"displayId,omitempty"`
	Password      string                `json:"password,omitempty"`
	Resolution    Resolution            `json:"resolution"`
	Configuration *DisplayConfiguration `json:"configuration,omitempty"`
}

// DisplayCreateResponse returns the created display and its token
type DisplayCreateResponse struct {
	Display         Display `json:"display"`
	ConnectionToken string  `json:"connectionToken"`
}

// DisplayUpdateRequest patches presentation fields; nil fields are unchanged
type DisplayUpdateRequest struct {
	DisplayName   *string               `json:"displayName,omitempty"`
	Location      *string               `json:"location,omitempty"`
	Resolution    *Resolution           `json:"resolution,omitempty"`
	Configuration *DisplayConfiguration `json:"configuration,omitempty"`
	// Version must match the stored version
	Version int `json:"version"`
}

// DisplayStatusUpdate sets a display inactive or re-enables it
type DisplayStatusUpdate struct {
	Status DisplayStatus `json:"status"`
}

// LoopAssignment selects the loop a display plays
type LoopAssignment struct {
	LoopID string `json:"loopId"`
}

// DisplaySummary counts an admin's displays by derived status
type DisplaySummary struct {
	Total           int `json:"total"`
	Online          int `json:"online"`
	Offline         int `json:"offline"`
	Inactive        int `json:"inactive"`
	PendingRequests int `json:"pendingRequests"`
}
