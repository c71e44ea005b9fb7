// Package heartbeat reports a display's liveness to the server
package heartbeat

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
)

// Sender delivers one status report
type Sender interface {
	ReportStatus(ctx context.Context, report v1alpha1.StatusReport) (*v1alpha1.StatusAck, error)
}

// Reporter sends a heartbeat on a fixed interval. A failed heartbeat is
// logged and dropped; the next one supersedes it.
type Reporter struct {
	sender    Sender
	token     string
	interval  time.Duration
	timeout   time.Duration
	currentAd func() string
	logger    zerolog.Logger

	// OnResult, when set, observes every attempt
	OnResult func(ack *v1alpha1.StatusAck, err error)
}

// NewReporter creates a reporter for the display owning token. currentAd
// returns the id of the ad on screen, or "" when nothing plays.
func NewReporter(sender Sender, token string, interval time.Duration, currentAd func() string, logger zerolog.Logger) *Reporter {
	if currentAd == nil {
		currentAd = func() string { return "" }
	}
	timeout := interval
	if timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	return &Reporter{
		sender:    sender,
		token:     token,
		interval:  interval,
		timeout:   timeout,
		currentAd: currentAd,
		logger:    logger.With().Str("component", "heartbeat").Logger(),
	}
}

// Run reports immediately and then every interval until ctx is done
func (r *Reporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Beat(ctx)
		}
	}
}

// Beat sends a single heartbeat
func (r *Reporter) Beat(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	report := v1alpha1.StatusReport{
		ConnectionToken:  r.token,
		Status:           v1alpha1.DisplayStatusOnline,
		CurrentAdPlaying: r.currentAd(),
	}
	ack, err := r.sender.ReportStatus(ctx, report)
	if err != nil {
		if ctx.Err() == nil || ctx.Err() == context.DeadlineExceeded {
			r.logger.Warn().Err(err).Msg("heartbeat failed")
		}
	} else {
		r.logger.Debug().
			Str("currentAd", report.CurrentAdPlaying).
			Time("serverTime", ack.ServerTime).
			Msg("heartbeat acknowledged")
	}

	if r.OnResult != nil {
		r.OnResult(ack, err)
	}
}
