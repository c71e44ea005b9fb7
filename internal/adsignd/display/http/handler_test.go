package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/auth"
	"github.com/wrale/adsign/internal/adsignd/config"
	"github.com/wrale/adsign/internal/adsignd/display/approval"
	displayhttp "github.com/wrale/adsign/internal/adsignd/display/http"
	"github.com/wrale/adsign/internal/adsignd/display/service"
	"github.com/wrale/adsign/internal/adsignd/liveness"
	"github.com/wrale/adsign/internal/adsignd/loop"
	"github.com/wrale/adsign/internal/adsignd/ratelimit"
	"github.com/wrale/adsign/internal/adsignd/store/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type noEvents struct{}

func (noEvents) Serve(w http.ResponseWriter, r *http.Request, displayID string) {
	w.WriteHeader(http.StatusNotImplemented)
}

type testEnv struct {
	t      *testing.T
	router chi.Router
	clock  *clock
	tokens *auth.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	clk := &clock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}

	tokens := auth.NewJWTService(config.AuthConfig{
		TokenSigningKey: "test-signing-key-with-enough-bytes",
		TokenExpiry:     time.Hour,
		Issuer:          "adsignd",
	})

	displays := service.New(store.Displays(), nil, logger, service.WithClock(clk.Now))
	workflow := approval.NewService(store.Displays(), store.Requests(), nil, logger, approval.WithClock(clk.Now))
	tracker := liveness.NewTracker(store.Displays(), store.Requests(), logger, liveness.WithClock(clk.Now))
	loops := loop.NewService(store.Loops(), store.Advertisements(), store.Displays(), nil, logger)
	limiters := ratelimit.NewLimiters(config.RateLimitConfig{RegisterPerMinute: 1000, DevicePerMinute: 1000}, nil, logger)

	h := displayhttp.NewHandler(displays, workflow, tracker, loops, noEvents{}, tokens, limiters, logger)
	r := chi.NewRouter()
	r.Route("/api/v1alpha1", h.Mount)

	return &testEnv{t: t, router: r, clock: clk, tokens: tokens}
}

func (e *testEnv) adminToken(adminID string) string {
	token, _, err := e.tokens.IssueToken(context.Background(), adminID)
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, "/api/v1alpha1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func (e *testEnv) register(name string) v1alpha1.DisplayRegistrationResponse {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/displays/register", "", v1alpha1.DisplayRegistrationRequest{
		DisplayName: name,
		Location:    "Main Hall",
		Resolution:  v1alpha1.Resolution{Width: 1920, Height: 1080},
	})
	require.Equal(e.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[v1alpha1.DisplayRegistrationResponse](e.t, rec)
}

func TestRegistrationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken("admin-1")

	reg := env.register("Lobby Screen")
	assert.Regexp(t, `^DSP-[0-9A-F]{8}$`, reg.DisplayID)
	assert.Len(t, reg.ConnectionToken, 64)
	assert.True(t, reg.IsPendingApproval)
	assert.Equal(t, v1alpha1.DisplayStatusOffline, reg.Status)

	rec := env.do(http.MethodGet, "/displays/token/"+reg.ConnectionToken, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	poll := decode[v1alpha1.DisplayTokenStatus](t, rec)
	assert.Equal(t, v1alpha1.ConnectionRequestPending, poll.ConnectionRequestStatus)
	assert.Empty(t, poll.AssignedAdmin)

	// Pending displays are invisible to admin listings
	rec = env.do(http.MethodGet, "/displays", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[v1alpha1.ListResponse[v1alpha1.Display]](t, rec).TotalCount)

	rec = env.do(http.MethodGet, "/connection-requests?status=pending", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	requests := decode[v1alpha1.ListResponse[v1alpha1.ConnectionRequest]](t, rec)
	require.Len(t, requests.Items, 1)
	assert.Equal(t, reg.DisplayID, requests.Items[0].DisplayID)
	assert.Equal(t, "Lobby Screen", requests.Items[0].DisplayName)
	assert.Equal(t, reg.ConnectionRequestID, requests.Items[0].ID.String())

	rec = env.do(http.MethodPost, "/connection-requests/"+reg.ConnectionRequestID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	approved := decode[v1alpha1.Display](t, rec)
	assert.Equal(t, "admin-1", approved.AssignedAdmin)
	assert.Equal(t, v1alpha1.DisplayStatusOffline, approved.Status)

	rec = env.do(http.MethodGet, "/displays/token/"+reg.ConnectionToken, "", nil)
	poll = decode[v1alpha1.DisplayTokenStatus](t, rec)
	assert.Equal(t, v1alpha1.ConnectionRequestApproved, poll.ConnectionRequestStatus)
	assert.Equal(t, "admin-1", poll.AssignedAdmin)

	rec = env.do(http.MethodPost, "/displays/status", "", v1alpha1.StatusReport{
		ConnectionToken:  reg.ConnectionToken,
		CurrentAdPlaying: "welcome",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[v1alpha1.StatusAck](t, rec).Acknowledged)

	rec = env.do(http.MethodGet, "/displays/"+reg.DisplayID, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[v1alpha1.Display](t, rec)
	assert.Equal(t, v1alpha1.DisplayStatusOnline, got.ActualStatus)
	assert.Equal(t, "welcome", got.CurrentAd)

	env.clock.Advance(3 * time.Hour)

	rec = env.do(http.MethodGet, "/displays/"+reg.DisplayID, admin, nil)
	got = decode[v1alpha1.Display](t, rec)
	assert.Equal(t, v1alpha1.DisplayStatusOnline, got.Status)
	assert.Equal(t, v1alpha1.DisplayStatusOffline, got.ActualStatus)

	rec = env.do(http.MethodGet, "/displays/summary", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, v1alpha1.DisplaySummary{Total: 1, Offline: 1}, decode[v1alpha1.DisplaySummary](t, rec))
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	other := auth.NewJWTService(config.AuthConfig{
		TokenSigningKey: "a-different-signing-key-entirely",
		TokenExpiry:     time.Hour,
		Issuer:          "adsignd",
	})
	forged, _, err := other.IssueToken(context.Background(), "admin-1")
	require.NoError(t, err)

	for _, bearer := range []string{"", "garbage", forged} {
		rec := env.do(http.MethodGet, "/displays", bearer, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHORIZED", decode[v1alpha1.ErrorResponse](t, rec).Code)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	}

	rec := env.do(http.MethodGet, "/connection-requests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken("admin-1")
	reg := env.register("Kiosk")

	rec := env.do(http.MethodPost, "/connection-requests/"+reg.ConnectionRequestID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name       string
		method     string
		path       string
		bearer     string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "second approval",
			method:     http.MethodPost,
			path:       "/connection-requests/" + reg.ConnectionRequestID + "/approve",
			bearer:     admin,
			wantStatus: http.StatusConflict,
			wantCode:   "INVALID_STATE",
		},
		{
			name:       "reject after approval",
			method:     http.MethodPost,
			path:       "/connection-requests/" + reg.ConnectionRequestID + "/reject",
			bearer:     admin,
			wantStatus: http.StatusConflict,
			wantCode:   "INVALID_STATE",
		},
		{
			name:       "unknown request",
			method:     http.MethodPost,
			path:       "/connection-requests/" + uuid.NewString() + "/approve",
			bearer:     admin,
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "malformed request id",
			method:     http.MethodPost,
			path:       "/connection-requests/not-a-uuid/approve",
			bearer:     admin,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "invalid registration",
			method:     http.MethodPost,
			path:       "/displays/register",
			body:       v1alpha1.DisplayRegistrationRequest{DisplayName: "", Location: "x"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "unknown token",
			method:     http.MethodGet,
			path:       "/displays/token/unknown",
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "heartbeat for unknown token",
			method:     http.MethodPost,
			path:       "/displays/status",
			body:       v1alpha1.StatusReport{ConnectionToken: "unknown"},
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "another admin's display",
			method:     http.MethodGet,
			path:       "/displays/" + reg.DisplayID,
			bearer:     env.adminToken("admin-2"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
		{
			name:       "unknown status value",
			method:     http.MethodPut,
			path:       "/displays/" + reg.DisplayID + "/status",
			bearer:     admin,
			body:       v1alpha1.DisplayStatusUpdate{Status: "broken"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "stale version",
			method:     http.MethodPatch,
			path:       "/displays/" + reg.DisplayID,
			bearer:     admin,
			body:       map[string]any{"displayName": "Renamed", "version": 99},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(tt.method, tt.path, tt.bearer, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode[v1alpha1.ErrorResponse](t, rec).Code)
			}
		})
	}
}

func TestRejectWithoutBody(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken("admin-1")
	reg := env.register("Window")

	rec := env.do(http.MethodPost, "/connection-requests/"+reg.ConnectionRequestID+"/reject", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, v1alpha1.ConnectionRequestRejected, decode[v1alpha1.ConnectionRequest](t, rec).Status)

	rec = env.do(http.MethodGet, "/displays/token/"+reg.ConnectionToken, "", nil)
	poll := decode[v1alpha1.DisplayTokenStatus](t, rec)
	assert.Equal(t, v1alpha1.ConnectionRequestRejected, poll.ConnectionRequestStatus)
	assert.Empty(t, poll.AssignedAdmin)
}

func TestAdminCreatedDisplay(t *testing.T) {
	env := newTestEnv(t)
	admin := env.adminToken("admin-1")

	rec := env.do(http.MethodPost, "/displays", admin, v1alpha1.DisplayCreateRequest{
		DisplayID:   "foyer-01",
		DisplayName: "Foyer",
		Location:    "Ground floor",
		Password:    "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[v1alpha1.DisplayCreateResponse](t, rec)
	assert.Equal(t, "admin-1", created.Display.AssignedAdmin)
	assert.Equal(t, "/api/v1alpha1/displays/foyer-01", rec.Header().Get("Location"))

	rec = env.do(http.MethodPost, "/displays/login", "", v1alpha1.DisplayLoginRequest{DisplayID: "foyer-01", Password: "s3cret-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ConnectionToken, decode[v1alpha1.DisplayLoginResponse](t, rec).ConnectionToken)

	rec = env.do(http.MethodPost, "/displays/login", "", v1alpha1.DisplayLoginRequest{DisplayID: "foyer-01", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/displays/token/"+created.ConnectionToken, "", nil)
	assert.Equal(t, v1alpha1.ConnectionRequestApproved, decode[v1alpha1.DisplayTokenStatus](t, rec).ConnectionRequestStatus)

	rec = env.do(http.MethodGet, "/displays/token/"+created.ConnectionToken+"/playlist", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(http.MethodPut, "/displays/foyer-01/status", admin, v1alpha1.DisplayStatusUpdate{Status: v1alpha1.DisplayStatusInactive})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, v1alpha1.DisplayStatusInactive, decode[v1alpha1.Display](t, rec).ActualStatus)

	rec = env.do(http.MethodPost, "/displays/status", "", v1alpha1.StatusReport{ConnectionToken: created.ConnectionToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/displays?status=inactive", admin, nil)
	list := decode[v1alpha1.ListResponse[v1alpha1.Display]](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, v1alpha1.DisplayStatusInactive, list.Items[0].Status)

	rec = env.do(http.MethodPut, "/displays/foyer-01/status", admin, v1alpha1.DisplayStatusUpdate{Status: v1alpha1.DisplayStatusOffline})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, v1alpha1.DisplayStatusOffline, decode[v1alpha1.Display](t, rec).Status)

	rec = env.do(http.MethodDelete, "/displays/foyer-01", admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/displays/foyer-01", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
