// Package approval implements the connection request ledger and the
// registration and approval workflow
package approval

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/display"
)

// Status is the state of a connection request. Approved and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// MaxReasonLength bounds rejection reasons
const MaxReasonLength = 500

// ConnectionRequest is the approval ticket created for each registration
type ConnectionRequest struct {
	ID          uuid.UUID
	DisplayID   string
	Status      Status
	RequestedAt time.Time
	RespondedAt *time.Time
	// RespondedBy is the admin who resolved the request
	RespondedBy     string
	RejectionReason string

	// DisplayName and Location are joined in by List for admin review
	DisplayName string
	Location    string
}

// NewRequest builds a pending request for displayID
func NewRequest(displayID string, now time.Time) *ConnectionRequest {
	return &ConnectionRequest{
		ID:          uuid.New(),
		DisplayID:   displayID,
		Status:      StatusPending,
		RequestedAt: now,
	}
}

// Decision resolves a pending request
type Decision struct {
	Outcome Status
	AdminID string
	Reason  string
	At      time.Time
}

// Filter defines criteria for listing connection requests
type Filter struct {
	// Status filters by request status; empty means all
	Status Status
	// DisplayID restricts to one display's requests
	DisplayID string
}

// Repository persists connection requests. Create reports a second pending
// request for the same display as errors.ErrConflict.
type Repository interface {
	// Create inserts a pending request
	Create(ctx context.Context, req *ConnectionRequest) error

	// FindByID retrieves a request
	FindByID(ctx context.Context, id uuid.UUID) (*ConnectionRequest, error)

	// FindPending retrieves the display's pending request
	FindPending(ctx context.Context, displayID string) (*ConnectionRequest, error)

	// FindLatest retrieves the display's most recent request
	FindLatest(ctx context.Context, displayID string) (*ConnectionRequest, error)

	// List retrieves requests newest first
	List(ctx context.Context, filter Filter) ([]*ConnectionRequest, error)

	// Resolve atomically moves a pending request to the decision's outcome
	// and, on approval, assigns the display to the deciding admin. It fails
	// with errors.ErrInvalidState when the request is no longer pending and
	// leaves both records untouched.
	Resolve(ctx context.Context, id uuid.UUID, decision Decision) (*ConnectionRequest, *display.Display, error)

	// ListExpiredRejections returns ids of unassigned displays whose latest
	// request was rejected before cutoff
	ListExpiredRejections(ctx context.Context, cutoff time.Time) ([]string, error)
}

// PollResult is what a device learns when polling with its token
type PollResult struct {
	Display         *display.Display
	RequestStatus   Status
	RejectionReason string
}

// Registration is the result of a successful self-registration
type Registration struct {
	Display *display.Display
	Request *ConnectionRequest
}

// RegisterParams describes a self-registration attempt
type RegisterParams struct {
	DisplayID  string
	Name       string
	Location   string
	Password   string
	Resolution display.Resolution
	DeviceInfo map[string]string
}

// Workflow is the interface the HTTP layer depends on
type Workflow interface {
	Register(ctx context.Context, params RegisterParams) (*Registration, error)
	Approve(ctx context.Context, requestID uuid.UUID, adminID string) (*ConnectionRequest, *display.Display, error)
	Reject(ctx context.Context, requestID uuid.UUID, adminID, reason string) (*ConnectionRequest, error)
	PollStatus(ctx context.Context, token string) (*PollResult, error)
	List(ctx context.Context, filter Filter) ([]*ConnectionRequest, error)
}
