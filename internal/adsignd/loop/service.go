package loop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/advertisement"
	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/errors"
)

// CreateParams describes a new loop
type CreateParams struct {
	DisplayID    string
	Name         string
	RotationType RotationType
	AdIDs        []uuid.UUID
	// Assign makes the new loop the display's current loop
	Assign bool
}

// UpdateParams replaces advertisements and/or rotation; nil fields are unchanged
type UpdateParams struct {
	AdIDs        []uuid.UUID
	RotationType *RotationType
	Version      int
}

// Playlist is the snapshot a device loads into its rotation engine. Ads
// appear in loop order, repeated where the loop repeats them, whatever
// their status.
type Playlist struct {
	LoopID        uuid.UUID
	RotationType  RotationType
	TotalDuration int
	Ads           []*advertisement.Advertisement
}

// Service manages loops and their assignment to displays
type Service struct {
	loops     Repository
	ads       advertisement.Repository
	displays  display.Repository
	publisher display.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a loop service
func NewService(loops Repository, ads advertisement.Repository, displays display.Repository, publisher display.EventPublisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = display.NopPublisher{}
	}
	return &Service{
		loops:     loops,
		ads:       ads,
		displays:  displays,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Create builds a loop for one of the admin's displays
func (s *Service) Create(ctx context.Context, adminID string, params CreateParams) (*Loop, error) {
	const op = "LoopService.Create"

	d, err := s.ownedDisplay(ctx, op, adminID, params.DisplayID)
	if err != nil {
		return nil, err
	}

	l, err := New(d.DisplayID, adminID, params.Name, params.RotationType, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.setAdvertisements(ctx, op, adminID, l, params.AdIDs); err != nil {
		return nil, err
	}
	if err := s.loops.Create(ctx, l); err != nil {
		return nil, errors.NewError("SAVE_FAILED", "failed to save loop", op, err)
	}

	s.logger.Info("loop created",
		"operation", op,
		"loopID", l.ID,
		"displayID", l.DisplayID,
		"items", len(l.Items),
		"totalDuration", l.TotalDuration,
	)

	if params.Assign {
		if _, err := s.assign(ctx, op, d, l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Get retrieves one of the admin's loops
func (s *Service) Get(ctx context.Context, adminID string, id uuid.UUID) (*Loop, error) {
	const op = "LoopService.Get"
	return s.owned(ctx, op, adminID, id)
}

// ListByDisplay retrieves the loops built for one of the admin's displays
func (s *Service) ListByDisplay(ctx context.Context, adminID, displayID string) ([]*Loop, error) {
	const op = "LoopService.ListByDisplay"

	if _, err := s.ownedDisplay(ctx, op, adminID, displayID); err != nil {
		return nil, err
	}
	loops, err := s.loops.ListByDisplay(ctx, displayID)
	if err != nil {
		return nil, errors.NewError("LIST_FAILED", "failed to list loops", op, err)
	}
	return loops, nil
}

// Update replaces a loop's advertisements or rotation type. Setting the
// advertisements recomputes TotalDuration.
func (s *Service) Update(ctx context.Context, adminID string, id uuid.UUID, params UpdateParams) (*Loop, error) {
	const op = "LoopService.Update"

	l, err := s.owned(ctx, op, adminID, id)
	if err != nil {
		return nil, err
	}
	if params.Version != 0 && params.Version != l.Version {
		return nil, errors.NewError("VERSION_CONFLICT", "loop was modified", op, errors.ErrVersionMismatch)
	}

	if params.RotationType != nil {
		if !params.RotationType.Valid() {
			return nil, errors.Validation(op, fmt.Sprintf("unknown rotation type %q", *params.RotationType))
		}
		l.RotationType = *params.RotationType
		l.UpdatedAt = s.now()
	}
	if params.AdIDs != nil {
		if err := s.setAdvertisements(ctx, op, adminID, l, params.AdIDs); err != nil {
			return nil, err
		}
	}

	if err := s.loops.Save(ctx, l); err != nil {
		if errors.IsVersionMismatch(err) {
			return nil, errors.NewError("VERSION_CONFLICT", "loop was modified", op, err)
		}
		return nil, errors.NewError("SAVE_FAILED", "failed to save loop", op, err)
	}

	s.notifyPlaying(ctx, l)
	return l, nil
}

// Delete removes a loop. Displays still pointing at it keep the reference
// and receive no content until another loop is assigned.
func (s *Service) Delete(ctx context.Context, adminID string, id uuid.UUID) error {
	const op = "LoopService.Delete"

	l, err := s.owned(ctx, op, adminID, id)
	if err != nil {
		return err
	}
	if err := s.loops.Delete(ctx, l.ID); err != nil {
		return errors.NewError("DELETE_FAILED", "failed to delete loop", op, err)
	}
	s.notifyPlaying(ctx, l)
	return nil
}

// Assign makes a loop the display's current loop
func (s *Service) Assign(ctx context.Context, adminID, displayID string, loopID uuid.UUID) (*display.Display, error) {
	const op = "LoopService.Assign"

	d, err := s.ownedDisplay(ctx, op, adminID, displayID)
	if err != nil {
		return nil, err
	}
	l, err := s.owned(ctx, op, adminID, loopID)
	if err != nil {
		return nil, err
	}
	if l.DisplayID != d.DisplayID {
		return nil, errors.Validation(op, fmt.Sprintf("loop %s belongs to display %s", l.ID, l.DisplayID))
	}
	return s.assign(ctx, op, d, l)
}

func (s *Service) assign(ctx context.Context, op string, d *display.Display, l *Loop) (*display.Display, error) {
	d.CurrentLoop = l.ID.String()
	d.UpdatedAt = s.now()
	if err := s.displays.Save(ctx, d); err != nil {
		if errors.IsVersionMismatch(err) {
			return nil, errors.NewError("VERSION_CONFLICT", "display was modified", op, err)
		}
		return nil, errors.NewError("SAVE_FAILED", "failed to assign loop", op, err)
	}

	s.logger.Info("loop assigned",
		"operation", op,
		"loopID", l.ID,
		"displayID", d.DisplayID,
	)
	s.publish(ctx, display.EventLoopAssigned, d.DisplayID, map[string]string{"loopId": l.ID.String()})
	return d, nil
}

// Playlist resolves the current loop of the display owning token. Inactive
// displays get an empty playlist.
func (s *Service) Playlist(ctx context.Context, token string) (*Playlist, error) {
	const op = "LoopService.Playlist"

	d, err := s.displays.FindByToken(ctx, token)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewError("NOT_FOUND", "unknown connection token", op, err)
		}
		return nil, errors.NewError("LOOKUP_FAILED", "failed to retrieve display", op, err)
	}
	if d.IsPending() {
		return nil, errors.InvalidState(op, "display is not approved")
	}
	if d.CurrentLoop == "" {
		return nil, errors.NotFound(op, "no loop assigned")
	}
	loopID, err := uuid.Parse(d.CurrentLoop)
	if err != nil {
		return nil, errors.NotFound(op, "no loop assigned")
	}

	l, err := s.loops.FindByID(ctx, loopID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewError("NOT_FOUND", "assigned loop no longer exists", op, err)
		}
		return nil, errors.NewError("LOOKUP_FAILED", "failed to retrieve loop", op, err)
	}

	playlist := &Playlist{
		LoopID:        l.ID,
		RotationType:  l.RotationType,
		TotalDuration: l.TotalDuration,
		Ads:           []*advertisement.Advertisement{},
	}
	if d.Status == display.StatusInactive {
		return playlist, nil
	}

	ads, err := s.ads.FindByIDs(ctx, l.AdIDs())
	if err != nil {
		return nil, errors.NewError("LOOKUP_FAILED", "failed to load advertisements", op, err)
	}
	for _, item := range l.Items {
		// Ads deleted since the loop was built are skipped
		if ad, ok := ads[item.AdID]; ok {
			playlist.Ads = append(playlist.Ads, ad)
		}
	}
	return playlist, nil
}

func (s *Service) setAdvertisements(ctx context.Context, op, adminID string, l *Loop, adIDs []uuid.UUID) error {
	ads, err := s.ads.FindByIDs(ctx, adIDs)
	if err != nil {
		return errors.NewError("LOOKUP_FAILED", "failed to load advertisements", op, err)
	}
	for id, ad := range ads {
		if ad.OwnerAdmin != adminID {
			delete(ads, id)
		}
	}
	return l.SetAdvertisements(adIDs, ads, s.now())
}

func (s *Service) owned(ctx context.Context, op, adminID string, id uuid.UUID) (*Loop, error) {
	l, err := s.loops.FindByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewError("NOT_FOUND", fmt.Sprintf("loop not found: %s", id), op, err)
		}
		return nil, errors.NewError("LOOKUP_FAILED", "failed to retrieve loop", op, err)
	}
	if l.OwnerAdmin != adminID {
		return nil, errors.NewError("NOT_FOUND", fmt.Sprintf("loop not found: %s", id), op, errors.ErrNotFound)
	}
	return l, nil
}

func (s *Service) ownedDisplay(ctx context.Context, op, adminID, displayID string) (*display.Display, error) {
	d, err := s.displays.FindByID(ctx, displayID)
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

// notifyPlaying tells the loop's display to refresh when it is playing l
func (s *Service) notifyPlaying(ctx context.Context, l *Loop) {
	d, err := s.displays.FindByID(ctx, l.DisplayID)
	if err != nil || d.CurrentLoop != l.ID.String() {
		return
	}
	s.publish(ctx, display.EventLoopUpdated, d.DisplayID, map[string]string{"loopId": l.ID.String()})
}

func (s *Service) publish(ctx context.Context, eventType display.EventType, displayID string, data map[string]string) {
	event := display.Event{
		Type:      eventType,
		DisplayID: displayID,
		Timestamp: s.now(),
		Data:      data,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish display event",
			"error", err,
			"type", eventType,
			"displayID", displayID,
		)
	}
}
