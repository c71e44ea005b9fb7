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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1alpha1 "github.com/wrale/adsign/api/types/v1alpha1"
	"github.com/wrale/adsign/internal/adsignd/advertisement"
	adhttp "github.com/wrale/adsign/internal/adsignd/advertisement/http"
	"github.com/wrale/adsign/internal/adsignd/auth"
	"github.com/wrale/adsign/internal/adsignd/config"
	"github.com/wrale/adsign/internal/adsignd/store/memory"
)

func setup(t *testing.T) (chi.Router, func(adminID string) string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens := auth.NewJWTService(config.AuthConfig{
		TokenSigningKey: "advertisement-handler-test-key",
		TokenExpiry:     time.Hour,
		Issuer:          "adsignd",
	})

	svc := advertisement.NewService(memory.New().Advertisements(), logger)
	r := chi.NewRouter()
	r.Route("/api/v1alpha1", adhttp.NewHandler(svc, tokens, logger).Mount)

	issue := func(adminID string) string {
		token, _, err := tokens.IssueToken(context.Background(), adminID)
		require.NoError(t, err)
		return token
	}
	return r, issue
}

func request(r http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/api/v1alpha1"+path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAdvertisementRoutes(t *testing.T) {
	r, issue := setup(t)
	owner := issue("admin-1")

	rec := request(r, http.MethodPost, "/advertisements", owner,
		`{"title":"Spring Sale","mediaUrl":"https://cdn.example.com/sale.mp4","mediaType":"video","duration":15}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ad v1alpha1.Advertisement
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ad))
	assert.Equal(t, v1alpha1.AdDraft, ad.Status)
	assert.Equal(t, 15, ad.Duration)

	rec = request(r, http.MethodPut, "/advertisements/"+ad.ID.String()+"/status", owner, `{"status":"active"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ad))
	assert.Equal(t, v1alpha1.AdActive, ad.Status)

	rec = request(r, http.MethodGet, "/advertisements", owner, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list v1alpha1.ListResponse[v1alpha1.Advertisement]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.TotalCount)

	// Other admins cannot see the ad
	rec = request(r, http.MethodGet, "/advertisements/"+ad.ID.String(), issue("admin-2"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdvertisementValidation(t *testing.T) {
	r, issue := setup(t)
	owner := issue("admin-1")

	tests := []struct {
		name string
		body string
	}{
		{"zero duration", `{"title":"x","mediaUrl":"u","mediaType":"image","duration":0}`},
		{"too long", `{"title":"x","mediaUrl":"u","mediaType":"image","duration":301}`},
		{"bad media type", `{"title":"x","mediaUrl":"u","mediaType":"audio","duration":5}`},
		{"missing title", `{"mediaUrl":"u","mediaType":"image","duration":5}`},
		{"malformed json", `{"title":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := request(r, http.MethodPost, "/advertisements", owner, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, http.StatusUnauthorized, request(r, http.MethodGet, "/advertisements", "", "").Code)
}
