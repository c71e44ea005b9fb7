package service

import (
	"context"
	"fmt"

	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/errors"
)

// Create registers a display that is assigned to adminID from the start and
// therefore never needs a connection request
func (s *Service) Create(ctx context.Context, adminID string, params display.CreateParams) (*display.Display, error) {
	const op = "DisplayService.Create"

	now := s.now()
	d, err := display.New(params.DisplayID, params.Name, params.Location, now)
	if err != nil {
		return nil, err
	}
	if err := d.Assign(adminID, now); err != nil {
		return nil, err
	}
	d.Resolution = params.Resolution
	if params.Configuration != nil {
		if err := params.Configuration.Validate(op); err != nil {
			return nil, err
		}
		d.Configuration = *params.Configuration
	}
	if params.Password != "" {
		if err := d.SetPassword(params.Password); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, d); err != nil {
		if errors.IsConflict(err) {
			return nil, errors.NewError("CONFLICT", fmt.Sprintf("display id %q is already taken", d.DisplayID), op, err)
		}
		return nil, errors.NewError("SAVE_FAILED", "failed to save display", op, err)
	}

	s.logger.Info("display created",
		"operation", op,
		"displayID", d.DisplayID,
		"adminID", adminID,
	)
	return d, nil
}

// Get retrieves one of the admin's displays
func (s *Service) Get(ctx context.Context, adminID, displayID string) (*display.Display, error) {
	const op = "DisplayService.Get"
	return s.owned(ctx, op, adminID, displayID)
}

// List retrieves the admin's displays; the admin scope always overrides filter
func (s *Service) List(ctx context.Context, adminID string, filter display.Filter) ([]*display.Display, error) {
	const op = "DisplayService.List"

	if adminID == "" {
		return nil, errors.NewError("UNAUTHORIZED", "admin identity required", op, errors.ErrUnauthorized)
	}
	filter.AssignedAdmin = adminID
	filter.Unassigned = false

	displays, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, errors.NewError("LIST_FAILED", "failed to list displays", op, err)
	}
	return displays, nil
}

// Update changes presentation fields
func (s *Service) Update(ctx context.Context, adminID, displayID string, params display.UpdateParams) (*display.Display, error) {
	const op = "DisplayService.Update"

	d, err := s.owned(ctx, op, adminID, displayID)
	if err != nil {
		return nil, err
	}
	if params.Version != 0 && params.Version != d.Version {
		return nil, errors.NewError("VERSION_CONFLICT", "display was modified", op, errors.ErrVersionMismatch)
	}

	if params.Name != nil {
		if err := display.ValidateName(op, *params.Name); err != nil {
			return nil, err
		}
		d.Name = *params.Name
	}
	if params.Location != nil {
		if err := display.ValidateLocation(op, *params.Location); err != nil {
			return nil, err
		}
		d.Location = *params.Location
	}
	if params.Resolution != nil {
		d.Resolution = *params.Resolution
	}
	if params.Configuration != nil {
		if err := params.Configuration.Validate(op); err != nil {
			return nil, err
		}
		d.Configuration = *params.Configuration
	}
	d.UpdatedAt = s.now()

	if err := s.save(ctx, op, d); err != nil {
		return nil, err
	}

	if params.Configuration != nil {
		s.publish(ctx, display.EventConfigured, d.DisplayID, map[string]string{
			"orientation": d.Configuration.Orientation,
		})
	}
	return d, nil
}

// Delete removes one of the admin's displays. Its connection requests are kept.
func (s *Service) Delete(ctx context.Context, adminID, displayID string) error {
	const op = "DisplayService.Delete"

	d, err := s.owned(ctx, op, adminID, displayID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, d.DisplayID, d.Version); err != nil {
		if errors.IsVersionMismatch(err) {
			return errors.NewError("VERSION_CONFLICT", "display was modified", op, err)
		}
		return errors.NewError("DELETE_FAILED", "failed to delete display", op, err)
	}

	s.logger.Info("display deleted",
		"operation", op,
		"displayID", d.DisplayID,
		"adminID", adminID,
	)
	s.publish(ctx, display.EventDeleted, d.DisplayID, nil)
	return nil
}

// owned loads a display and hides it unless adminID manages it
func (s *Service) owned(ctx context.Context, op, adminID, displayID string) (*display.Display, error) {
	d, err := s.repo.FindByID(ctx, displayID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewError("NOT_FOUND", fmt.Sprintf("display not found: %s", displayID), op, err)
		}
		return nil, errors.NewError("LOOKUP_FAILED", "failed to retrieve display", op, err)
	}
	if !d.OwnedBy(adminID) {
		return nil, errors.NewError("NOT_FOUND", fmt.Sprintf("display not found: %s", displayID), op, errors.ErrNotFound)
	}
	return d, nil
}

func (s *Service) save(ctx context.Context, op string, d *display.Display) error {
	if err := s.repo.Save(ctx, d); err != nil {
		if errors.IsVersionMismatch(err) {
			return errors.NewError("VERSION_CONFLICT", "display was modified", op, err)
		}
		if errors.IsNotFound(err) {
			return errors.NewError("NOT_FOUND", "display not found", op, err)
		}
		return errors.NewError("SAVE_FAILED", "failed to save display", op, err)
	}
	return nil
}
