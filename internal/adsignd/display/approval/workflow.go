package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wrale/adsign/internal/adsignd/display"
	"github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/metrics"
)

// DefaultMaxAttempts bounds identifier generation retries
const DefaultMaxAttempts = 5

// maxDeviceInfoEntries bounds the free-form device info map
const maxDeviceInfoEntries = 32

// Service implements Workflow over the display registry and the request ledger
type Service struct {
	displays    display.Repository
	requests    Repository
	publisher   display.EventPublisher
	logger      *slog.Logger
	now         func() time.Time
	maxAttempts int
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxAttempts sets how many identifier collisions Register retries
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// NewService creates the approval workflow
func NewService(displays display.Repository, requests Repository, publisher display.EventPublisher, logger *slog.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = display.NopPublisher{}
	}
	s := &Service{
		displays:    displays,
		requests:    requests,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Workflow = (*Service)(nil)

// Register creates an unassigned display and its pending connection request.
// Generated identifiers are retried on collision; a chosen identifier that is
// taken fails with a conflict. A display is never left without a request.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*Registration, error) {
	const op = "ApprovalWorkflow.Register"

	if err := validateRegistration(op, &params); err != nil {
		metrics.Registrations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var passwordHash string
	if params.Password != "" {
		probe := &display.Display{}
		if err := probe.SetPassword(params.Password); err != nil {
			return nil, err
		}
		passwordHash = probe.PasswordHash
	}

	d, err := s.createDisplay(ctx, op, params, passwordHash)
	if err != nil {
		result := "failed"
		if errors.IsConflict(err) {
			result = "conflict"
		}
		metrics.Registrations.WithLabelValues(result).Inc()
		return nil, err
	}

	req, err := s.openRequest(ctx, op, d.DisplayID)
	if err != nil {
		if derr := s.displays.Delete(ctx, d.DisplayID, d.Version); derr != nil {
			s.logger.Error("failed to remove display after request creation failed",
				"operation", op,
				"displayID", d.DisplayID,
				"error", derr,
			)
		}
		metrics.Registrations.WithLabelValues("failed").Inc()
		return nil, err
	}

	metrics.Registrations.WithLabelValues("created").Inc()
	s.logger.Info("display registered",
		"operation", op,
		"displayID", d.DisplayID,
		"requestID", req.ID,
	)
	s.publish(ctx, display.EventRegistered, d.DisplayID, map[string]string{
		"requestId": req.ID.String(),
		"name":      d.Name,
		"location":  d.Location,
	})

	return &Registration{Display: d, Request: req}, nil
}

func validateRegistration(op string, params *RegisterParams) error {
	params.Name = strings.TrimSpace(params.Name)
	params.Location = strings.TrimSpace(params.Location)
	params.DisplayID = strings.TrimSpace(params.DisplayID)

	if err := display.ValidateName(op, params.Name); err != nil {
		return err
	}
	if err := display.ValidateLocation(op, params.Location); err != nil {
		return err
	}
	if params.DisplayID != "" {
		if err := display.ValidateID(op, params.DisplayID); err != nil {
			return err
		}
	}
	if params.Resolution.Width < 0 || params.Resolution.Height < 0 {
		return errors.Validation(op, "resolution must not be negative")
	}
	if len(params.DeviceInfo) > maxDeviceInfoEntries {
		return errors.Validation(op, fmt.Sprintf("device info may have at most %d entries", maxDeviceInfoEntries))
	}
	return nil
}

func (s *Service) createDisplay(ctx context.Context, op string, params RegisterParams, passwordHash string) (*display.Display, error) {
	for attempt := 1; ; attempt++ {
		d, err := display.New(params.DisplayID, params.Name, params.Location, s.now())
		if err != nil {
			return nil, err
		}
		d.PasswordHash = passwordHash
		d.Resolution = params.Resolution
		for k, v := range params.DeviceInfo {
			d.DeviceInfo[k] = v
		}

		err = s.displays.Create(ctx, d)
		if err == nil {
			return d, nil
		}
		if !errors.IsConflict(err) {
			return nil, errors.NewError("SAVE_FAILED", "failed to save display", op, err)
		}

		// A chosen id either is taken, or the random token collided
		if params.DisplayID != "" {
			if _, ferr := s.displays.FindByID(ctx, params.DisplayID); ferr == nil {
				return nil, errors.NewError("CONFLICT", fmt.Sprintf("display id %q is already taken", params.DisplayID), op, errors.ErrConflict)
			}
		}

		if attempt >= s.maxAttempts {
			return nil, errors.NewError("CONFLICT", "could not allocate a unique display identity", op, errors.ErrConflict)
		}
		metrics.RegistrationRetries.Inc()
		s.logger.Warn("display identity collision, retrying",
			"operation", op,
			"attempt", attempt,
		)
	}
}

// openRequest creates the display's pending request, reusing one that
// already exists when the insert loses a uniqueness race
func (s *Service) openRequest(ctx context.Context, op, displayID string) (*ConnectionRequest, error) {
	for attempt := 0; attempt < 2; attempt++ {
		req := NewRequest(displayID, s.now())
		err := s.requests.Create(ctx, req)
		if err == nil {
			return req, nil
		}
		if !errors.IsConflict(err) {
			return nil, errors.NewError("SAVE_FAILED", "failed to save connection request", op, err)
		}

		existing, ferr := s.requests.FindPending(ctx, displayID)
		if ferr == nil {
			s.logger.Info("reusing pending connection request",
				"operation", op,
				"displayID", displayID,
				"requestID", existing.ID,
			)
			return existing, nil
		}
		if !errors.IsNotFound(ferr) {
			return nil, errors.NewError("LOOKUP_FAILED", "failed to load pending request", op, ferr)
		}
	}
	return nil, errors.NewError("CONFLICT", "could not open a connection request", op, errors.ErrConflict)
}

// Approve resolves a pending request and assigns its display to adminID
func (s *Service) Approve(ctx context.Context, requestID uuid.UUID, adminID string) (*ConnectionRequest, *display.Display, error) {
	const op = "ApprovalWorkflow.Approve"

	if adminID == "" {
		return nil, nil, errors.NewError("UNAUTHORIZED", "admin identity required", op, errors.ErrUnauthorized)
	}

	req, d, err := s.requests.Resolve(ctx, requestID, Decision{
		Outcome: StatusApproved,
		AdminID: adminID,
		At:      s.now(),
	})
	if err != nil {
		return nil, nil, s.decisionError(op, requestID, err)
	}

	metrics.Decisions.WithLabelValues(string(StatusApproved)).Inc()
	s.logger.Info("connection request approved",
		"operation", op,
		"requestID", requestID,
		"displayID", req.DisplayID,
		"adminID", adminID,
	)
	s.publish(ctx, display.EventApproved, req.DisplayID, map[string]string{
		"requestId":     req.ID.String(),
		"assignedAdmin": adminID,
	})

	return req, d, nil
}

// Reject resolves a pending request without assigning its display
func (s *Service) Reject(ctx context.Context, requestID uuid.UUID, adminID, reason string) (*ConnectionRequest, error) {
	const op = "ApprovalWorkflow.Reject"

	if adminID == "" {
		return nil, errors.NewError("UNAUTHORIZED", "admin identity required", op, errors.ErrUnauthorized)
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > MaxReasonLength {
		return nil, errors.Validation(op, "rejection reason must be at most 500 characters")
	}

	req, _, err := s.requests.Resolve(ctx, requestID, Decision{
		Outcome: StatusRejected,
		AdminID: adminID,
		Reason:  reason,
		At:      s.now(),
	})
	if err != nil {
		return nil, s.decisionError(op, requestID, err)
	}

	metrics.Decisions.WithLabelValues(string(StatusRejected)).Inc()
	s.logger.Info("connection request rejected",
		"operation", op,
		"requestID", requestID,
		"displayID", req.DisplayID,
		"adminID", adminID,
	)
	s.publish(ctx, display.EventRejected, req.DisplayID, map[string]string{
		"requestId":       req.ID.String(),
		"rejectionReason": reason,
	})

	return req, nil
}

func (s *Service) decisionError(op string, requestID uuid.UUID, err error) error {
	switch {
	case errors.IsNotFound(err):
		return errors.NewError("NOT_FOUND", fmt.Sprintf("connection request not found: %s", requestID), op, err)
	case errors.IsInvalidState(err):
		return errors.NewError("INVALID_STATE", "connection request is not pending", op, err)
	default:
		return errors.NewError("DECISION_FAILED", "failed to resolve connection request", op, err)
	}
}

// PollStatus reports the approval state of the display owning token.
// Displays created directly by an admin have no request and report approved.
func (s *Service) PollStatus(ctx context.Context, token string) (*PollResult, error) {
	const op = "ApprovalWorkflow.PollStatus"

	if token == "" {
		return nil, errors.Validation(op, "connection token is required")
	}
	d, err := s.displays.FindByToken(ctx, token)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewError("NOT_FOUND", "unknown connection token", op, err)
		}
		return nil, errors.NewError("LOOKUP_FAILED", "failed to retrieve display", op, err)
	}

	result := &PollResult{Display: d, RequestStatus: StatusPending}
	req, err := s.requests.FindLatest(ctx, d.DisplayID)
	switch {
	case err == nil:
		result.RequestStatus = req.Status
		result.RejectionReason = req.RejectionReason
	case errors.IsNotFound(err):
		if !d.IsPending() {
			result.RequestStatus = StatusApproved
		}
	default:
		return nil, errors.NewError("LOOKUP_FAILED", "failed to load connection request", op, err)
	}
	return result, nil
}

// List returns connection requests for admin review
func (s *Service) List(ctx context.Context, filter Filter) ([]*ConnectionRequest, error) {
	const op = "ApprovalWorkflow.List"

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.Validation(op, fmt.Sprintf("unknown request status %q", filter.Status))
	}
	reqs, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, errors.NewError("LIST_FAILED", "failed to list connection requests", op, err)
	}
	return reqs, nil
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
