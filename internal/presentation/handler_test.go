package presentation

import (
	"context"
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
	"go.uber.org/mock/gomock"

	"vcrelay/internal/correlation/models"
	"vcrelay/internal/correlation/store"
)

func newTestRouter(t *testing.T) (chi.Router, *store.InMemoryStore) {
	t.Helper()

	ctrl := gomock.NewController(t)
	st := store.NewInMemory(15 * time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := New(testTemplate(), NewMockRequestClient(ctrl), staticTokens{token: "tok-1"}, st,
		testAuthority, testAPIKey, FaceCheckConfig{SourceClaim: "photo", Threshold: 70}, nil, logger)

	r := chi.NewRouter()
	NewHandler(service, logger).Register(r)
	return r, st
}

func TestB2CRespondsConflictBeforePresentation(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/verifier/presentation-response-b2c",
		strings.NewReader(`{"id":"abc123"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t,
		`{"version":"1.0.0","status":400,"userMessage":"Verifiable Credentials not presented"}`,
		rec.Body.String())
}

func TestB2CReturnsClaimsOnce(t *testing.T) {
	router, st := newTestRouter(t)

	require.NoError(t, st.Put(context.Background(), "abc123", &models.Record{
		Token:   "abc123",
		Status:  models.StatusPresentationVerified,
		Subject: "did:ion:EiAbc",
		PresentationResponse: map[string]any{
			"verifiedCredentialsData": []any{
				map[string]any{
					"authority": "did:web:verifiedid.contoso.com",
					"claims":    map[string]any{"firstName": "Megan"},
				},
			},
		},
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/verifier/presentation-response-b2c",
		strings.NewReader(`{"id":"abc123"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"firstName":"Megan"`)
	assert.Contains(t, rec.Body.String(), `"vcKey":"did.ion.EiAbc"`)

	// Second read finds the record consumed.
	req = httptest.NewRequest(http.MethodPost, "/api/verifier/presentation-response-b2c",
		strings.NewReader(`{"id":"abc123"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStatusEndpointRedacts(t *testing.T) {
	router, st := newTestRouter(t)

	require.NoError(t, st.Put(context.Background(), "abc123", &models.Record{
		Token:                "abc123",
		Status:               models.StatusPresentationVerified,
		Message:              "Presentation received",
		PresentationResponse: map[string]any{"requestStatus": "presentation_verified"},
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/presentation-response?id=abc123", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"presentation_verified"`)
	assert.NotContains(t, rec.Body.String(), "presentationResponse")
}

func TestDetailsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/verifier/get-presentation-details", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"VerifiedCredentialExpert"`)
}
