package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wrale/adsign/internal/adsignd/config"
)

// Service checks keys against per-type limits, counting in a shared Store
type Service struct {
	store  Store
	logger *slog.Logger

	mu     sync.RWMutex
	limits map[string]Limit
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, limits: map[string]Limit{}}
}

// RegisterLimit sets the limit for a key type, replacing any previous one
func (s *Service) RegisterLimit(keyType string, limit Limit) error {
	if limit.Rate < 1 || limit.Period <= 0 {
		return ErrInvalidLimit
	}
	s.mu.Lock()
	s.limits[keyType] = limit
	s.mu.Unlock()
	return nil
}

// RegisterConfiguredLimits installs the per-minute register and device limits
func (s *Service) RegisterConfiguredLimits(cfg config.RateLimitConfig) error {
	for keyType, perMinute := range map[string]int{
		TypeRegister: cfg.RegisterPerMinute,
		TypeDevice:   cfg.DevicePerMinute,
	} {
		if err := s.RegisterLimit(keyType, Limit{Rate: perMinute, Period: time.Minute}); err != nil {
			return err
		}
	}
	return nil
}

// GetLimit returns the limit for keyType; the zero Limit means unlimited
func (s *Service) GetLimit(keyType string) Limit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits[keyType]
}

// Allow counts one call for key and returns ErrLimitExceeded once the
// window's count passes the limit
func (s *Service) Allow(ctx context.Context, key LimitKey) error {
	if key.Type == "" {
		return ErrInvalidKey
	}
	limit := s.GetLimit(key.Type)
	if limit.Rate == 0 {
		return nil
	}

	n, err := s.store.Increment(ctx, key, limit)
	switch {
	case err != nil:
		s.logger.Error("rate limit counter failed", "error", err, "type", key.Type)
		return err
	case n > limit.Rate:
		return ErrLimitExceeded
	}
	return nil
}

// Reset clears key's counter
func (s *Service) Reset(ctx context.Context, key LimitKey) error {
	if key.Type == "" {
		return ErrInvalidKey
	}
	return s.store.Reset(ctx, key)
}
