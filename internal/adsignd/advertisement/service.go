package advertisement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/errors"
)

// Service manages an admin's advertisements
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates an advertisement service
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Create validates and stores a new advertisement
func (s *Service) Create(ctx context.Context, adminID string, params CreateParams) (*Advertisement, error) {
	const op = "AdvertisementService.Create"

	if adminID == "" {
		return nil, errors.NewError("UNAUTHORIZED", "admin identity required", op, errors.ErrUnauthorized)
	}
	ad, err := New(adminID, params, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, ad); err != nil {
		return nil, errors.NewError("SAVE_FAILED", "failed to save advertisement", op, err)
	}

	s.logger.Info("advertisement created",
		"operation", op,
		"adID", ad.ID,
		"adminID", adminID,
	)
	return ad, nil
}

// Get retrieves one of the admin's advertisements
func (s *Service) Get(ctx context.Context, adminID string, id uuid.UUID) (*Advertisement, error) {
	const op = "AdvertisementService.Get"

	ad, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewError("NOT_FOUND", fmt.Sprintf("advertisement not found: %s", id), op, err)
		}
		return nil, errors.NewError("LOOKUP_FAILED", "failed to retrieve advertisement", op, err)
	}
	if ad.OwnerAdmin != adminID {
		return nil, errors.NewError("NOT_FOUND", fmt.Sprintf("advertisement not found: %s", id), op, errors.ErrNotFound)
	}
	return ad, nil
}

// List retrieves the admin's advertisements
func (s *Service) List(ctx context.Context, adminID string) ([]*Advertisement, error) {
	const op = "AdvertisementService.List"

	ads, err := s.repo.List(ctx, adminID)
	if err != nil {
		return nil, errors.NewError("LIST_FAILED", "failed to list advertisements", op, err)
	}
	return ads, nil
}

// SetStatus changes playback eligibility. Loops pick the change up on the
// player's next playlist refresh.
func (s *Service) SetStatus(ctx context.Context, adminID string, id uuid.UUID, status Status) (*Advertisement, error) {
	const op = "AdvertisementService.SetStatus"

	if !status.Valid() {
		return nil, errors.Validation(op, fmt.Sprintf("unknown advertisement status %q", status))
	}
	ad, err := s.Get(ctx, adminID, id)
	if err != nil {
		return nil, err
	}
	ad.Status = status
	ad.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, ad); err != nil {
		return nil, errors.NewError("SAVE_FAILED", "failed to save advertisement", op, err)
	}
	return ad, nil
}
