// Package runner drives a display from registration through approval to
// playback. Ad rotation, heartbeats and playlist refreshes run on separate
// timers so a slow or failing server never stalls what is on screen.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/client"
	"github.com/wrale/adsign/internal/player/credentials"
	"github.com/wrale/adsign/internal/player/heartbeat"
	"github.com/wrale/adsign/internal/player/rotation"
	"github.com/wrale/adsign/internal/player/subscribe"
)

var (
	// ErrQuit is returned after the operator asked the player to exit and
	// forget its credentials
	ErrQuit = errors.New("player stopped by operator")
	// ErrDeleted is returned when the server no longer knows the display
	ErrDeleted = errors.New("display no longer exists on the server")
)

// RejectedError is returned when an admin rejected the connection request
type RejectedError struct {
	DisplayID string
	Reason    string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("registration of display %s was rejected", e.DisplayID)
	}
	return fmt.Sprintf("registration of display %s was rejected: %s", e.DisplayID, e.Reason)
}

// API is the part of the server API a player uses
type API interface {
	Register(ctx context.Context, req v1alpha1.DisplayRegistrationRequest) (*v1alpha1.DisplayRegistrationResponse, error)
	Login(ctx context.Context, displayID, password string) (*v1alpha1.DisplayLoginResponse, error)
	PollStatus(ctx context.Context, token string) (*v1alpha1.DisplayTokenStatus, error)
	GetPlaylist(ctx context.Context, token string) (*v1alpha1.Playlist, error)
	ReportStatus(ctx context.Context, report v1alpha1.StatusReport) (*v1alpha1.StatusAck, error)
}

// SubscribeFunc streams display events to handle until ctx is done.
// onConnect runs after each (re)connection.
type SubscribeFunc func(ctx context.Context, token string, handle subscribe.Handler, onConnect func()) error

// Options configure a Runner
type Options struct {
	Server      string
	DisplayName string
	Location    string
	DisplayID   string
	Password    string
	Resolution  v1alpha1.Resolution
	DeviceInfo  map[string]string

	HeartbeatInterval time.Duration
	PollInterval      time.Duration
	PlaylistRefresh   time.Duration
	// OfflineGrace is how long the last playlist keeps playing while the
	// server cannot be reached
	OfflineGrace   time.Duration
	RequestTimeout time.Duration
	// TickInterval is the rotation clock; one second in production
	TickInterval time.Duration
}

// Runner is the display state machine
type Runner struct {
	api       API
	store     *credentials.Store
	opts      Options
	screen    Screen
	subscribe SubscribeFunc
	engine    *rotation.Engine
	logger    zerolog.Logger
	now       func() time.Time

	// playlist bookkeeping, owned by the operate loop
	loaded    string
	lastFresh time.Time
	noContent bool
}

// New creates a runner
func New(api API, store *credentials.Store, subscribeFn SubscribeFunc, screen Screen, opts Options, logger zerolog.Logger) *Runner {
	if opts.TickInterval == 0 {
		opts.TickInterval = time.Second
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.OfflineGrace == 0 {
		opts.OfflineGrace = 10 * opts.PlaylistRefresh
	}
	r := &Runner{
		api:       api,
		store:     store,
		opts:      opts,
		screen:    screen,
		subscribe: subscribeFn,
		logger:    logger.With().Str("component", "runner").Logger(),
		now:       time.Now,
	}
	r.engine = rotation.New(rotation.OnAdvance(func(s rotation.State) {
		r.screen.Playing(s, r.engine.Len())
	}))
	return r
}

// WebsocketSubscriber returns a SubscribeFunc dialing the events endpoint
// of c. A nil dialer uses the websocket defaults.
func WebsocketSubscriber(c *client.Client, dialer *websocket.Dialer, logger zerolog.Logger) SubscribeFunc {
	return func(ctx context.Context, token string, handle subscribe.Handler, onConnect func()) error {
		s := subscribe.New(c.EventsURL(token), handle, logger)
		if dialer != nil {
			s.WithDialer(dialer)
		}
		s.OnConnect = onConnect
		return s.Run(ctx)
	}
}

// Engine exposes the rotation engine, mainly for status reporting
func (r *Runner) Engine() *rotation.Engine {
	return r.engine
}

// Run registers or resumes the display, waits for approval and then plays
// until ctx is done or quit fires. Quitting clears the saved credentials
// and returns ErrQuit; cancelling ctx keeps them.
func (r *Runner) Run(ctx context.Context, quit <-chan struct{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	creds, err := r.Identify(ctx)
	if err != nil {
		return err
	}
	log := r.logger.With().Str("displayID", creds.DisplayID).Logger()

	events := make(chan v1alpha1.DisplayEvent, 16)
	resync := make(chan struct{}, 1)
	if r.subscribe != nil {
		go func() {
			err := r.subscribe(ctx, creds.ConnectionToken, func(e v1alpha1.DisplayEvent) {
				select {
				case events <- e:
				default:
					// A full queue only loses detail; a resync covers it
					nudge(resync)
				}
			}, func() { nudge(resync) })
			if err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("event stream stopped; relying on polling")
			}
		}()
	}

	status, err := r.awaitApproval(ctx, creds, events, resync, quit)
	if err != nil {
		return r.finish(err)
	}
	log.Info().Str("admin", status.AssignedAdmin).Msg("display approved")

	return r.finish(r.operate(ctx, creds, events, resync, quit))
}

// finish clears credentials when the operator quit
func (r *Runner) finish(err error) error {
	if errors.Is(err, ErrQuit) {
		if clearErr := r.store.Clear(); clearErr != nil {
			return errors.Join(err, clearErr)
		}
		r.logger.Info().Msg("credentials cleared")
	}
	return err
}

// Identify returns saved credentials, or recovers them with the display
// password, or registers a new display and saves the result
func (r *Runner) Identify(ctx context.Context) (*credentials.Credentials, error) {
	creds, err := r.store.Load()
	switch {
	case err == nil:
		if creds.Server != "" && creds.Server != r.opts.Server {
			return nil, fmt.Errorf("saved credentials belong to %s; forget them to register with %s", creds.Server, r.opts.Server)
		}
		r.logger.Info().Str("displayID", creds.DisplayID).Msg("resuming saved display")
		return creds, nil
	case !errors.Is(err, credentials.ErrNotFound):
		return nil, err
	}

	if r.opts.DisplayID != "" && r.opts.Password != "" {
		creds, err := r.login(ctx)
		if err == nil {
			return creds, nil
		}
		if !client.IsNotFound(err) {
			return nil, err
		}
	}
	return r.register(ctx)
}

func (r *Runner) login(ctx context.Context) (*credentials.Credentials, error) {
	resp, err := r.api.Login(ctx, r.opts.DisplayID, r.opts.Password)
	if err != nil {
		return nil, err
	}
	creds := r.newCredentials(resp.DisplayID, resp.ConnectionToken)
	if err := r.store.Save(creds); err != nil {
		return nil, err
	}
	r.logger.Info().Str("displayID", creds.DisplayID).Msg("recovered connection token with password")
	return creds, nil
}

func (r *Runner) register(ctx context.Context) (*credentials.Credentials, error) {
	resp, err := r.api.Register(ctx, v1alpha1.DisplayRegistrationRequest{
		DisplayName: r.opts.DisplayName,
		Location:    r.opts.Location,
		DisplayID:   r.opts.DisplayID,
		Password:    r.opts.Password,
		Resolution:  r.opts.Resolution,
		DeviceInfo:  r.opts.DeviceInfo,
	})
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	creds := r.newCredentials(resp.DisplayID, resp.ConnectionToken)
	if err := r.store.Save(creds); err != nil {
		return nil, err
	}
	r.logger.Info().
		Str("displayID", resp.DisplayID).
		Str("requestID", resp.ConnectionRequestID).
		Msg("display registered")
	return creds, nil
}

func (r *Runner) newCredentials(displayID, token string) *credentials.Credentials {
	return &credentials.Credentials{
		Server:          r.opts.Server,
		DisplayID:       displayID,
		ConnectionToken: token,
		DisplayName:     r.opts.DisplayName,
		Location:        r.opts.Location,
	}
}

// awaitApproval polls until the connection request leaves pending
func (r *Runner) awaitApproval(ctx context.Context, creds *credentials.Credentials, events <-chan v1alpha1.DisplayEvent, resync <-chan struct{}, quit <-chan struct{}) (*v1alpha1.DisplayTokenStatus, error) {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		status, err := r.poll(ctx, creds.ConnectionToken)
		switch {
		case err != nil && (client.IsNotFound(err) || client.IsUnauthorized(err)):
			return nil, ErrDeleted
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn().Err(err).Msg("approval poll failed")
			r.screen.Waiting("waiting for server")
		case status.ConnectionRequestStatus == v1alpha1.ConnectionRequestRejected:
			r.screen.NoContent("registration rejected")
			return nil, &RejectedError{DisplayID: creds.DisplayID, Reason: status.RejectionReason}
		case status.ConnectionRequestStatus != v1alpha1.ConnectionRequestPending:
			return status, nil
		default:
			r.screen.Waiting(fmt.Sprintf("display %s is waiting for approval", creds.DisplayID))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-quit:
			return nil, ErrQuit
		case <-ticker.C:
		case <-resync:
		case e := <-events:
			if e.Type != v1alpha1.DisplayEventApproved && e.Type != v1alpha1.DisplayEventRejected {
				// Nothing else changes approval; wait for the next poll
				r.logger.Debug().Str("type", string(e.Type)).Msg("event ignored while pending")
			}
		}
	}
}

func (r *Runner) poll(ctx context.Context, token string) (*v1alpha1.DisplayTokenStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout())
	defer cancel()
	return r.api.PollStatus(ctx, token)
}

// operate plays content until ctx is done, the operator quits or the
// display disappears
func (r *Runner) operate(ctx context.Context, creds *credentials.Credentials, events <-chan v1alpha1.DisplayEvent, resync <-chan struct{}, quit <-chan struct{}) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reporter := heartbeat.NewReporter(r.api, creds.ConnectionToken, r.opts.HeartbeatInterval, r.currentAd, r.logger)
	go reporter.Run(ctx)
	go r.engine.Run(ctx, r.opts.TickInterval)
	defer r.engine.Clear()

	refresh := time.NewTicker(r.opts.PlaylistRefresh)
	defer refresh.Stop()

	r.lastFresh = r.now()
	if err := r.refresh(ctx, creds.ConnectionToken); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-quit:
			return ErrQuit
		case <-refresh.C:
		case <-resync:
		case e := <-events:
			if e.Type == v1alpha1.DisplayEventDeleted {
				r.screen.NoContent("display deleted")
				return ErrDeleted
			}
			r.logger.Info().Str("type", string(e.Type)).Msg("reloading playlist")
		}
		if err := r.refresh(ctx, creds.ConnectionToken); err != nil {
			return err
		}
	}
}

// refresh fetches the playlist and reloads the engine when it changed.
// Network failures keep the current playlist until OfflineGrace passes.
func (r *Runner) refresh(ctx context.Context, token string) error {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout())
	defer cancel()

	playlist, err := r.api.GetPlaylist(callCtx, token)
	if err == nil {
		r.lastFresh = r.now()
		r.load(playlist)
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}

	if client.IsNotFound(err) {
		// Either no loop is assigned or the token is gone
		if _, pollErr := r.poll(ctx, token); client.IsNotFound(pollErr) {
			r.screen.NoContent("display deleted")
			return ErrDeleted
		}
		r.lastFresh = r.now()
		r.clear("no loop assigned")
		return nil
	}

	stale := r.now().Sub(r.lastFresh)
	r.logger.Warn().Err(err).Dur("stale", stale).Msg("playlist refresh failed")
	if stale > r.opts.OfflineGrace {
		r.clear("offline")
	}
	return nil
}

func (r *Runner) load(playlist *v1alpha1.Playlist) {
	key := playlistKey(playlist)
	if key == r.loaded && !r.noContent {
		return
	}
	r.loaded = key

	ads := make([]rotation.Ad, 0, len(playlist.Items))
	for _, item := range playlist.Items {
		ads = append(ads, rotation.Ad{
			ID:        item.AdID.String(),
			Title:     item.Title,
			MediaURL:  item.MediaURL,
			MediaType: string(item.MediaType),
			Duration:  item.Duration,
			Status:    string(item.Status),
		})
	}

	err := r.engine.LoadPlaylist(ads, rotation.Rotation(playlist.RotationType))
	if errors.Is(err, rotation.ErrEmptyPlaylist) {
		r.noContent = true
		r.screen.NoContent("no active advertisements")
		return
	}
	r.noContent = false
	r.logger.Info().
		Str("loopID", playlist.LoopID.String()).
		Str("rotation", string(playlist.RotationType)).
		Int("ads", r.engine.Len()).
		Msg("playlist loaded")
}

func (r *Runner) clear(reason string) {
	r.engine.Clear()
	r.loaded = ""
	r.noContent = true
	r.screen.NoContent(reason)
}

func (r *Runner) currentAd() string {
	state := r.engine.Current()
	if !state.Playing {
		return ""
	}
	return state.Ad.ID
}

func (r *Runner) callTimeout() time.Duration {
	return r.opts.RequestTimeout
}

// playlistKey identifies the playable content of a playlist
func playlistKey(p *v1alpha1.Playlist) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s", p.LoopID, p.RotationType)
	for _, item := range p.Items {
		fmt.Fprintf(&b, "|%s:%d:%s:%s", item.AdID, item.Duration, item.Status, item.MediaURL)
	}
	return b.String()
}

func nudge(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// WatchQuit closes the returned channel when the operator enters q on in
func WatchQuit(in io.Reader) <-chan struct{} {
	quit := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if strings.EqualFold(strings.TrimSpace(scanner.Text()), "q") {
				close(quit)
				return
			}
		}
	}()
	return quit
}
