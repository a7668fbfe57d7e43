package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vcrelay/internal/callback"
	"vcrelay/internal/correlation/store"
	"vcrelay/internal/entra"
	"vcrelay/internal/issuance"
	"vcrelay/internal/platform/config"
	"vcrelay/internal/presentation"
)

const relayAPIKey = "f47ac10b-58cc-4372-a567-0e02b2c3d479"

type staticTokens struct{}

func (staticTokens) AccessToken(context.Context) (string, error) { return "tok-1", nil }

// RouterSuite runs the whole HTTP surface against an in-memory store and a
// fake request service, exercising the create/callback/poll loop end to end.
type RouterSuite struct {
	suite.Suite
	upstream *httptest.Server
	router   http.Handler
	store    *store.InMemoryStore
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"requestId": "r1",
			"url":       "openid-vc://?request_uri=...",
			"expiry":    1700000300,
		})
	}))
	s.T().Cleanup(s.upstream.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = store.NewInMemory(15 * time.Minute)

	client := entra.NewClient(s.upstream.URL+"/v1.0/", staticTokens{}, 5*time.Second,
		entra.WithHTTPClient(s.upstream.Client()))

	publicDir := s.T().TempDir()
	s.Require().NoError(os.WriteFile(filepath.Join(publicDir, "index.html"), []byte("<html>relay</html>"), 0o600))

	cfg := config.Config{
		ClientID:           "client-1",
		IssuerAuthority:    "did:web:verifiedid.contoso.com",
		VerifierAuthority:  "did:web:verifiedid.contoso.com",
		CredentialManifest: "https://verifiedid.did.msidentity.com/v1.0/tenants/t1/verifiableCredentials/contracts/c1/manifest",
		PublicDir:          publicDir,
	}

	issuerService := issuance.New(
		&entra.IssuanceRequest{
			Registration: entra.Registration{ClientName: "test issuer"},
			Type:         "VerifiedCredentialExpert",
			Pin:          &entra.Pin{Length: 4},
		},
		client, staticTokens{}, s.store,
		cfg.IssuerAuthority, cfg.CredentialManifest, relayAPIKey, nil, logger,
	)
	verifierService := presentation.New(
		&entra.PresentationRequest{
			IncludeReceipt: true,
			Registration:   entra.Registration{ClientName: "test verifier"},
			RequestedCredentials: []entra.RequestedCredential{{
				Type: "VerifiedCredentialExpert",
			}},
		},
		client, staticTokens{}, s.store,
		cfg.VerifierAuthority, relayAPIKey,
		presentation.FaceCheckConfig{SourceClaim: "photo", Threshold: 70}, nil, logger,
	)
	callbackService := callback.New(s.store, callback.NewGate(relayAPIKey), logger, nil, nil)

	s.router = NewRouter(Deps{
		Config:   cfg,
		Logger:   logger,
		Issuer:   issuance.NewHandler(issuerService, nil, logger),
		Verifier: presentation.NewHandler(verifierService, logger),
		Callback: callback.NewHandler(callbackService, logger),
	})
}

func (s *RouterSuite) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) TestIssuanceLifecycle() {
	rec := s.do(http.MethodGet, "/api/issuer/issuance-request?id=abc123", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var created map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.Equal("abc123", created["id"])
	s.Equal("r1", created["requestId"])
	s.Len(created["pin"], 4)

	// The wallet scanned the QR code.
	rec = s.do(http.MethodPost, "/api/issuer/issuance-request-callback",
		`{"requestStatus":"request_retrieved","state":"abc123"}`,
		map[string]string{"api-key": relayAPIKey})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/issuer/issuance-response?id=abc123", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"request_retrieved"`)
	s.Contains(rec.Body.String(), "QR Code is scanned. Waiting for validation...")

	// The credential landed in the wallet.
	rec = s.do(http.MethodPost, "/api/issuer/issuance-request-callback",
		`{"requestStatus":"issuance_successful","state":"abc123"}`,
		map[string]string{"api-key": relayAPIKey})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/issuer/issuance-response?id=abc123", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"issuance_successful"`)
	s.Contains(rec.Body.String(), "Credential successfully issued")
}

func (s *RouterSuite) TestUnknownTokenPoll() {
	rec := s.do(http.MethodGet, "/api/issuer/issuance-response?id=zzz", "", nil)
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.JSONEq(`{"error":"Unknown state: zzz"}`, rec.Body.String())
}

func (s *RouterSuite) TestWrongSecretCallbackLeavesRecordPending() {
	rec := s.do(http.MethodGet, "/api/verifier/presentation-request?id=abc123", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/api/verifier/presentation-request-callback",
		`{"requestStatus":"presentation_verified","state":"abc123"}`,
		map[string]string{"api-key": "wrong"})
	s.Require().Equal(http.StatusUnauthorized, rec.Code)
	s.JSONEq(`{"error":"api-key wrong or missing"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/verifier/presentation-response?id=abc123", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"request_created"`)
}

func (s *RouterSuite) TestEchoAndStatic() {
	rec := s.do(http.MethodGet, "/echo", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"clientId":"client-1"`)

	rec = s.do(http.MethodGet, "/index.html", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "relay")
}

func (s *RouterSuite) TestCORSPreflight() {
	rec := s.do(http.MethodOptions, "/api/issuer/issuance-request", "",
		map[string]string{"Origin": "https://example.com"})
	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
}
