package display

import (
	"context"
)

// CreateParams describes a display created directly by an admin
type CreateParams struct {
	DisplayID     string
	Name          string
	Location      string
	Password      string
	Resolution    Resolution
	Configuration *Configuration
}

// UpdateParams patches presentation fields; nil fields are left unchanged
type UpdateParams struct {
	Name          *string
	Location      *string
	Resolution    *Resolution
	Configuration *Configuration
	// Version must match the stored version
	Version int
}

// Service defines the registry operations available to admins and devices.
// Admin-scoped operations report displays managed by another admin, or by
// nobody, as not found.
type Service interface {
	// Create registers a display already assigned to adminID
	Create(ctx context.Context, adminID string, params CreateParams) (*Display, error)

	// Get retrieves one of the admin's displays
	Get(ctx context.Context, adminID, displayID string) (*Display, error)

	// List retrieves the admin's displays matching filter
	List(ctx context.Context, adminID string, filter Filter) ([]*Display, error)

	// Update changes presentation fields of one of the admin's displays
	Update(ctx context.Context, adminID, displayID string, params UpdateParams) (*Display, error)

	// SetInactive switches a display to inactive, or back to offline
	SetInactive(ctx context.Context, adminID, displayID string, inactive bool) (*Display, error)

	// Delete removes one of the admin's displays
	Delete(ctx context.Context, adminID, displayID string) error

	// GetByToken retrieves a display by its connection token
	GetByToken(ctx context.Context, token string) (*Display, error)

	// Login checks a display password and returns the display
	Login(ctx context.Context, displayID, password string) (*Display, error)
}
