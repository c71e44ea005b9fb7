// Package subscribe keeps a websocket open to the server's display event
// stream and hands each event to the player
package subscribe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
)

// Handler receives events in arrival order
type Handler func(v1alpha1.DisplayEvent)

// Subscriber dials the event stream and redials after a dropped connection
type Subscriber struct {
	url        string
	dialer     *websocket.Dialer
	handler    Handler
	logger     zerolog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration

	// OnConnect, when set, runs after every successful dial. The player
	// uses it to catch up on events missed while disconnected.
	OnConnect func()
}

// New creates a subscriber for wsURL
func New(wsURL string, handler Handler, logger zerolog.Logger) *Subscriber {
	return &Subscriber{
		url:        wsURL,
		dialer:     websocket.DefaultDialer,
		handler:    handler,
		logger:     logger.With().Str("component", "events").Logger(),
		minBackoff: time.Second,
		maxBackoff: time.Minute,
	}
}

// WithDialer replaces the websocket dialer, e.g. to set TLS options
func (s *Subscriber) WithDialer(d *websocket.Dialer) *Subscriber {
	s.dialer = d
	return s
}

// Run consumes events until ctx is done. Connection failures are retried
// with exponential backoff; a 401 or 404 handshake means the token is no
// longer valid and ends the subscription.
func (s *Subscriber) Run(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.minBackoff
	policy.MaxInterval = s.maxBackoff
	policy.MaxElapsedTime = 0

	for {
		err := s.session(ctx, policy)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var rejected *HandshakeError
		if errors.As(err, &rejected) && !rejected.Retryable() {
			return err
		}

		wait := policy.NextBackOff()
		s.logger.Warn().Err(err).Dur("retryIn", wait).Msg("event stream disconnected")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// session runs one connection from dial to disconnect
func (s *Subscriber) session(ctx context.Context, policy backoff.BackOff) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			return &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return err
	}
	policy.Reset()
	s.logger.Info().Msg("event stream connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	if s.OnConnect != nil {
		s.OnConnect()
	}

	for {
		var event v1alpha1.DisplayEvent
		if err := conn.ReadJSON(&event); err != nil {
			return err
		}
		s.logger.Debug().Str("type", string(event.Type)).Msg("event received")
		s.handler(event)
	}
}

// HandshakeError is returned when the server refuses the websocket upgrade
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return "event stream handshake rejected: " + http.StatusText(e.StatusCode)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Retryable reports whether redialing could succeed
func (e *HandshakeError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return false
	}
	return true
}
