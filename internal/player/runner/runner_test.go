package runner

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/client"
	"github.com/wrale/adsign/internal/player/credentials"
	"github.com/wrale/adsign/internal/player/rotation"
	"github.com/wrale/adsign/internal/player/subscribe"
)

const server = "http://signs.test"

type fakeAPI struct {
	mu            sync.Mutex
	registrations []v1alpha1.DisplayRegistrationRequest
	logins        int
	loginErr      error
	request       v1alpha1.ConnectionRequestStatus
	reason        string
	deleted       bool
	playlist      *v1alpha1.Playlist
	playlistErr   error
	playlistCalls int
	heartbeats    []v1alpha1.StatusReport
}

func notFound() error {
	return &client.APIError{StatusCode: http.StatusNotFound, Code: "NOT_FOUND"}
}

func (f *fakeAPI) Register(ctx context.Context, req v1alpha1.DisplayRegistrationRequest) (*v1alpha1.DisplayRegistrationResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations = append(f.registrations, req)
	return &v1alpha1.DisplayRegistrationResponse{
		DisplayID:         "lobby-1",
		ConnectionToken:   "tok-lobby",
		Status:            v1alpha1.DisplayStatusOffline,
		IsPendingApproval: true,
	}, nil
}

func (f *fakeAPI) Login(ctx context.Context, displayID, password string) (*v1alpha1.DisplayLoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &v1alpha1.DisplayLoginResponse{DisplayID: displayID, ConnectionToken: "tok-recovered"}, nil
}

func (f *fakeAPI) PollStatus(ctx context.Context, token string) (*v1alpha1.DisplayTokenStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleted {
		return nil, notFound()
	}
	status := &v1alpha1.DisplayTokenStatus{
		DisplayID:               "lobby-1",
		ConnectionRequestStatus: f.request,
		RejectionReason:         f.reason,
	}
	if f.request == v1alpha1.ConnectionRequestApproved {
		status.AssignedAdmin = "admin-1"
	}
	return status, nil
}

func (f *fakeAPI) GetPlaylist(ctx context.Context, token string) (*v1alpha1.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playlistCalls++
	if f.playlistErr != nil {
		return nil, f.playlistErr
	}
	if f.playlist == nil {
		return nil, notFound()
	}
	return f.playlist, nil
}

func (f *fakeAPI) ReportStatus(ctx context.Context, report v1alpha1.StatusReport) (*v1alpha1.StatusAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, report)
	return &v1alpha1.StatusAck{Acknowledged: true, ServerTime: time.Now()}, nil
}

func (f *fakeAPI) set(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) read(fn func(f *fakeAPI) bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(f)
}

type recordingScreen struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingScreen) add(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *recordingScreen) Waiting(message string) { s.add("waiting: " + message) }
func (s *recordingScreen) Playing(state rotation.State, total int) {
	s.add("playing: " + state.Ad.Title)
}
func (s *recordingScreen) NoContent(reason string) { s.add("no content: " + reason) }

func (s *recordingScreen) has(prefix string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, line := range s.lines {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// eventFeed captures the handler a runner subscribes with
type eventFeed struct {
	mu     sync.Mutex
	handle subscribe.Handler
}

func (e *eventFeed) subscribe(ctx context.Context, token string, handle subscribe.Handler, onConnect func()) error {
	e.mu.Lock()
	e.handle = handle
	e.mu.Unlock()
	onConnect()
	<-ctx.Done()
	return ctx.Err()
}

func (e *eventFeed) send(t *testing.T, eventType v1alpha1.DisplayEventType) {
	t.Helper()
	require.Eventually(t, func() bool {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.handle != nil
	}, time.Second, 5*time.Millisecond)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handle(v1alpha1.DisplayEvent{Type: eventType, DisplayID: "lobby-1"})
}

func testPlaylist(titles ...string) *v1alpha1.Playlist {
	p := &v1alpha1.Playlist{LoopID: uuid.New(), RotationType: v1alpha1.RotationSequential}
	for _, title := range titles {
		p.Items = append(p.Items, v1alpha1.PlaylistItem{
			AdID:     uuid.New(),
			Title:    title,
			Duration: 1,
			Status:   v1alpha1.AdActive,
		})
	}
	return p
}

type harness struct {
	api    *fakeAPI
	store  *credentials.Store
	screen *recordingScreen
	feed   *eventFeed
	runner *Runner
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		api:    &fakeAPI{request: v1alpha1.ConnectionRequestPending},
		store:  credentials.NewStore(filepath.Join(t.TempDir(), "credentials.yaml")),
		screen: &recordingScreen{},
		feed:   &eventFeed{},
	}
	opts.Server = server
	if opts.DisplayName == "" {
		opts.DisplayName = "Lobby"
	}
	opts.HeartbeatInterval = 10 * time.Millisecond
	opts.PollInterval = 10 * time.Millisecond
	opts.TickInterval = 10 * time.Millisecond
	if opts.PlaylistRefresh == 0 {
		opts.PlaylistRefresh = time.Hour
	}
	h.runner = New(h.api, h.store, h.feed.subscribe, h.screen, opts, zerolog.Nop())
	return h
}

func (h *harness) start(t *testing.T) (chan struct{}, <-chan error, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan struct{})
	errCh := make(chan error, 1)
	go func() { errCh <- h.runner.Run(ctx, quit) }()
	t.Cleanup(cancel)
	return quit, errCh, cancel
}

func wait(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
		return nil
	}
}

func TestRegisterApprovePlayAndQuit(t *testing.T) {
	h := newHarness(t, Options{Location: "Main entrance"})
	h.api.playlist = testPlaylist("Spring sale", "Opening hours")
	quit, errCh, _ := h.start(t)

	require.Eventually(t, func() bool { return h.screen.has("waiting: display lobby-1") }, time.Second, 5*time.Millisecond)
	creds, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-lobby", creds.ConnectionToken)
	assert.Equal(t, server, creds.Server)

	h.api.set(func(f *fakeAPI) { f.request = v1alpha1.ConnectionRequestApproved })

	require.Eventually(t, func() bool { return h.screen.has("playing: Opening hours") }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return h.api.read(func(f *fakeAPI) bool {
			for _, hb := range f.heartbeats {
				if hb.CurrentAdPlaying != "" && hb.ConnectionToken == "tok-lobby" {
					return true
				}
			}
			return false
		})
	}, time.Second, 5*time.Millisecond)

	close(quit)
	assert.ErrorIs(t, wait(t, errCh), ErrQuit)

	_, err = h.store.Load()
	assert.ErrorIs(t, err, credentials.ErrNotFound)
	require.Len(t, h.api.registrations, 1)
	assert.Equal(t, "Main entrance", h.api.registrations[0].Location)
}

func TestCancelKeepsCredentials(t *testing.T) {
	h := newHarness(t, Options{})
	_, errCh, cancel := h.start(t)

	require.Eventually(t, func() bool { return h.screen.has("waiting:") }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, wait(t, errCh), context.Canceled)

	_, err := h.store.Load()
	assert.NoError(t, err)
}

func TestResumeSkipsRegistration(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.Save(&credentials.Credentials{
		Server: server, DisplayID: "lobby-1", ConnectionToken: "tok-saved",
	}))
	h.api.request = v1alpha1.ConnectionRequestApproved
	h.api.playlist = testPlaylist("Welcome")
	_, errCh, cancel := h.start(t)

	require.Eventually(t, func() bool { return h.screen.has("playing: Welcome") }, time.Second, 5*time.Millisecond)
	cancel()
	wait(t, errCh)
	assert.Empty(t, h.api.registrations)
}

func TestSavedCredentialsForAnotherServer(t *testing.T) {
	h := newHarness(t, Options{})
	require.NoError(t, h.store.Save(&credentials.Credentials{
		Server: "http://elsewhere", DisplayID: "lobby-1", ConnectionToken: "tok",
	}))
	_, errCh, _ := h.start(t)
	err := wait(t, errCh)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "elsewhere")
}

func TestLoginRecoversToken(t *testing.T) {
	h := newHarness(t, Options{DisplayID: "lobby-1", Password: "s3cret"})
	_, err := h.runner.Identify(context.Background())
	require.NoError(t, err)

	creds, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-recovered", creds.ConnectionToken)
	assert.Empty(t, h.api.registrations)
}

func TestLoginFallsBackToRegistration(t *testing.T) {
	h := newHarness(t, Options{DisplayID: "lobby-1", Password: "s3cret"})
	h.api.loginErr = notFound()

	creds, err := h.runner.Identify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-lobby", creds.ConnectionToken)
	require.Len(t, h.api.registrations, 1)
	assert.Equal(t, "s3cret", h.api.registrations[0].Password)
}

func TestWrongPasswordIsNotRegistration(t *testing.T) {
	h := newHarness(t, Options{DisplayID: "lobby-1", Password: "wrong"})
	h.api.loginErr = &client.APIError{StatusCode: http.StatusUnauthorized}

	_, err := h.runner.Identify(context.Background())
	assert.True(t, client.IsUnauthorized(err))
	assert.Empty(t, h.api.registrations)
}

func TestRejectedRegistration(t *testing.T) {
	h := newHarness(t, Options{})
	h.api.request = v1alpha1.ConnectionRequestRejected
	h.api.reason = "unknown device"
	_, errCh, _ := h.start(t)

	err := wait(t, errCh)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "unknown device", rejected.Reason)

	_, err = h.store.Load()
	assert.NoError(t, err, "only the operator clears credentials")
}

func TestLoopEventsReloadPlaylist(t *testing.T) {
	h := newHarness(t, Options{})
	h.api.request = v1alpha1.ConnectionRequestApproved
	_, errCh, cancel := h.start(t)

	require.Eventually(t, func() bool { return h.screen.has("no content: no loop assigned") }, time.Second, 5*time.Millisecond)

	h.api.set(func(f *fakeAPI) { f.playlist = testPlaylist("Assigned") })
	h.feed.send(t, v1alpha1.DisplayEventLoopAssigned)
	require.Eventually(t, func() bool { return h.screen.has("playing: Assigned") }, time.Second, 5*time.Millisecond)

	h.api.set(func(f *fakeAPI) {
		f.playlist = testPlaylist("Draft only")
		f.playlist.Items[0].Status = v1alpha1.AdDraft
	})
	h.feed.send(t, v1alpha1.DisplayEventLoopUpdated)
	require.Eventually(t, func() bool { return h.screen.has("no content: no active advertisements") }, time.Second, 5*time.Millisecond)

	cancel()
	wait(t, errCh)
}

func TestDeletedEventStopsPlayer(t *testing.T) {
	h := newHarness(t, Options{})
	h.api.request = v1alpha1.ConnectionRequestApproved
	h.api.playlist = testPlaylist("Welcome")
	_, errCh, _ := h.start(t)

	require.Eventually(t, func() bool { return h.screen.has("playing: Welcome") }, time.Second, 5*time.Millisecond)
	h.feed.send(t, v1alpha1.DisplayEventDeleted)
	assert.ErrorIs(t, wait(t, errCh), ErrDeleted)
}

func TestOfflineKeepsPlayingThenShowsNoContent(t *testing.T) {
	h := newHarness(t, Options{PlaylistRefresh: 10 * time.Millisecond, OfflineGrace: 200 * time.Millisecond})
	h.api.request = v1alpha1.ConnectionRequestApproved
	h.api.playlist = testPlaylist("Welcome")
	_, errCh, cancel := h.start(t)

	require.Eventually(t, func() bool { return h.screen.has("playing: Welcome") }, time.Second, 5*time.Millisecond)

	h.api.set(func(f *fakeAPI) { f.playlistErr = errors.New("connection refused") })
	require.Eventually(t, func() bool {
		return h.api.read(func(f *fakeAPI) bool { return f.playlistCalls > 3 })
	}, time.Second, 5*time.Millisecond)
	assert.False(t, h.screen.has("no content: offline"), "grace period keeps the last playlist")
	assert.True(t, h.runner.Engine().Current().Playing)

	require.Eventually(t, func() bool { return h.screen.has("no content: offline") }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, h.runner.Engine().Current().Playing)

	h.api.set(func(f *fakeAPI) { f.playlistErr = nil })
	require.Eventually(t, func() bool { return h.runner.Engine().Current().Playing }, time.Second, 5*time.Millisecond)

	cancel()
	wait(t, errCh)
}

func TestUnchangedPlaylistKeepsPosition(t *testing.T) {
	h := newHarness(t, Options{})
	p := testPlaylist("One", "Two", "Three")
	p.Items[0].Duration = 100

	h.runner.load(p)
	h.runner.engine.Tick()
	before := h.runner.engine.Current()
	h.runner.load(p)
	assert.Equal(t, before, h.runner.engine.Current())
}

func TestWatchQuit(t *testing.T) {
	quit := WatchQuit(strings.NewReader("hello\n  Q \n"))
	select {
	case <-quit:
	case <-time.After(time.Second):
		t.Fatal("q was not detected")
	}

	quit = WatchQuit(strings.NewReader("quit\n"))
	select {
	case <-quit:
		t.Fatal("only q quits")
	case <-time.After(50 * time.Millisecond):
	}
}
