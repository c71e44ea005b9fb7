package http_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/auth"
	"github.com/wrale/adsign/internal/adsignd/config"
	werrors "github.com/wrale/adsign/internal/adsignd/errors"
	"github.com/wrale/adsign/internal/adsignd/loop"
	loophttp "github.com/wrale/adsign/internal/adsignd/loop/http"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Create(ctx context.Context, adminID string, params loop.CreateParams) (*loop.Loop, error) {
	args := m.Called(ctx, adminID, params)
	if l := args.Get(0); l != nil {
		return l.(*loop.Loop), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) Get(ctx context.Context, adminID string, id uuid.UUID) (*loop.Loop, error) {
	args := m.Called(ctx, adminID, id)
	if l := args.Get(0); l != nil {
		return l.(*loop.Loop), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) ListByDisplay(ctx context.Context, adminID, displayID string) ([]*loop.Loop, error) {
	args := m.Called(ctx, adminID, displayID)
	if l := args.Get(0); l != nil {
		return l.([]*loop.Loop), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) Update(ctx context.Context, adminID string, id uuid.UUID, params loop.UpdateParams) (*loop.Loop, error) {
	args := m.Called(ctx, adminID, id, params)
	if l := args.Get(0); l != nil {
		return l.(*loop.Loop), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockService) Delete(ctx context.Context, adminID string, id uuid.UUID) error {
	args := m.Called(ctx, adminID, id)
	return args.Error(0)
}

type testHandler struct {
	t       *testing.T
	service *mockService
	router  chi.Router
	bearer  string
}

func newTestHandler(t *testing.T) *testHandler {
	t.Helper()

	tokens := auth.NewJWTService(config.AuthConfig{
		TokenSigningKey: "loop-handler-test-signing-key",
		TokenExpiry:     time.Hour,
		Issuer:          "adsignd",
	})
	bearer, _, err := tokens.IssueToken(context.Background(), "admin-1")
	require.NoError(t, err)

	svc := new(mockService)
	r := chi.NewRouter()
	r.Route("/api/v1alpha1", loophttp.NewHandler(svc, tokens, slog.New(slog.NewTextHandler(io.Discard, nil))).Mount)

	t.Cleanup(func() { svc.AssertExpectations(t) })
	return &testHandler{t: t, service: svc, router: r, bearer: bearer}
}

func (th *testHandler) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api/v1alpha1"+path, reader)
	req.Header.Set("Authorization", "Bearer "+th.bearer)
	rec := httptest.NewRecorder()
	th.router.ServeHTTP(rec, req)
	return rec
}

func sampleLoop() *loop.Loop {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	ad := uuid.New()
	return &loop.Loop{
		ID:        uuid.New(),
		DisplayID: "lobby-1",
		Name:      "Morning",
		Items: []loop.Item{
			{AdID: ad, Order: 0},
			{AdID: ad, Order: 1},
		},
		RotationType:  loop.RotationSequential,
		TotalDuration: 20,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
}

func TestCreateLoop(t *testing.T) {
	th := newTestHandler(t)
	l := sampleLoop()
	adID := l.Items[0].AdID

	th.service.On("Create", mock.Anything, "admin-1", loop.CreateParams{
		DisplayID:    "lobby-1",
		Name:         "Morning",
		RotationType: loop.RotationSequential,
		AdIDs:        []uuid.UUID{adID, adID},
		Assign:       true,
	}).Return(l, nil).Once()

	rec := th.do(http.MethodPost, "/loops", `{
		"displayId": "lobby-1",
		"name": "Morning",
		"rotationType": "sequential",
		"advertisements": ["`+adID.String()+`", "`+adID.String()+`"],
		"assign": true
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got v1alpha1.Loop
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, 20, got.TotalDuration)
	require.Len(t, got.Items, 2)
	assert.Equal(t, 1, got.Items[1].LoopOrder)
	assert.Equal(t, "Loop", got.Kind)
}

func TestUpdateLoop(t *testing.T) {
	th := newTestHandler(t)
	l := sampleLoop()
	random := loop.RotationRandom

	th.service.On("Update", mock.Anything, "admin-1", l.ID, loop.UpdateParams{
		RotationType: &random,
		Version:      1,
	}).Return(l, nil).Once()

	rec := th.do(http.MethodPatch, "/loops/"+l.ID.String(), `{"rotationType":"random","advertisements":null,"version":1}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	th.service.On("Update", mock.Anything, "admin-1", l.ID, loop.UpdateParams{
		AdIDs:   []uuid.UUID{},
		Version: 2,
	}).Return(nil, werrors.NewError("VERSION_CONFLICT", "loop was modified", "test", werrors.ErrVersionMismatch)).Once()

	rec = th.do(http.MethodPatch, "/loops/"+l.ID.String(), `{"advertisements":[],"version":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoopErrors(t *testing.T) {
	th := newTestHandler(t)
	missing := uuid.New()

	th.service.On("Get", mock.Anything, "admin-1", missing).
		Return(nil, werrors.NotFound("test", "loop not found")).Once()
	th.service.On("ListByDisplay", mock.Anything, "admin-1", "lobby-1").
		Return([]*loop.Loop(nil), nil).Once()
	th.service.On("Delete", mock.Anything, "admin-1", missing).
		Return(werrors.NotFound("test", "loop not found")).Once()

	assert.Equal(t, http.StatusNotFound, th.do(http.MethodGet, "/loops/"+missing.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, th.do(http.MethodGet, "/loops/nope", "").Code)
	assert.Equal(t, http.StatusBadRequest, th.do(http.MethodGet, "/loops", "").Code)
	assert.Equal(t, http.StatusNotFound, th.do(http.MethodDelete, "/loops/"+missing.String(), "").Code)
	assert.Equal(t, http.StatusBadRequest, th.do(http.MethodPost, "/loops", `{"unknownField":1}`).Code)

	rec := th.do(http.MethodGet, "/loops?display=lobby-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"totalCount":0}`, rec.Body.String())
}
