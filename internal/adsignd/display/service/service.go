// Package service implements the display registry business logic
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/wrale/adsign/internal/adsignd/display"
)

// Service implements display.Service
type Service struct {
	repo      display.Repository
	publisher display.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a new display service instance
func New(repo display.Repository, publisher display.EventPublisher, logger *slog.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = display.NopPublisher{}
	}
	s := &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ display.Service = (*Service)(nil)

// publish logs but never fails the operation when delivery fails
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
