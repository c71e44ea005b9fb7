package service

import (
	"context"

	"github.com/wrale/adsign/internal/adsignd/display"
)

// SetInactive switches a display to inactive, or back to offline. Inactive
// overrides whatever the device reports until an admin clears it.
func (s *Service) SetInactive(ctx context.Context, adminID, displayID string, inactive bool) (*display.Display, error) {
	const op = "DisplayService.SetInactive"

	d, err := s.owned(ctx, op, adminID, displayID)
	if err != nil {
		return nil, err
	}

	previous := d.Status
	d.SetInactive(inactive, s.now())
	if d.Status == previous {
		return d, nil
	}

	if err := s.save(ctx, op, d); err != nil {
		return nil, err
	}

	s.logger.Info("display status changed",
		"operation", op,
		"displayID", d.DisplayID,
		"from", previous,
		"to", d.Status,
	)
	s.publish(ctx, display.EventStatusChanged, d.DisplayID, map[string]string{
		"status": string(d.Status),
	})
	return d, nil
}
