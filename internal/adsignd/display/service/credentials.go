package service

import (
	"context"

	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/errors"
)

// GetByToken retrieves a display by its connection token
func (s *Service) GetByToken(ctx context.Context, token string) (*display.Display, error) {
	const op = "DisplayService.GetByToken"

	if token == "" {
		return nil, errors.Validation(op, "connection token is required")
	}
	d, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewError("NOT_FOUND", "unknown connection token", op, err)
		}
		return nil, errors.NewError("LOOKUP_FAILED", "failed to retrieve display", op, err)
	}
	return d, nil
}

// Login lets a device that lost its credentials recover the connection token
// with the password chosen at registration
func (s *Service) Login(ctx context.Context, displayID, password string) (*display.Display, error) {
	const op = "DisplayService.Login"

	d, err := s.repo.FindByID(ctx, displayID)
	if err != nil && !errors.IsNotFound(err) {
		return nil, errors.NewError("LOOKUP_FAILED", "failed to retrieve display", op, err)
	}
	if d == nil || !d.CheckPassword(password) {
		s.logger.Warn("display login failed",
			"operation", op,
			"displayID", displayID,
		)
		return nil, errors.NewError("UNAUTHORIZED", "invalid display id or password", op, errors.ErrUnauthorized)
	}
	return d, nil
}
