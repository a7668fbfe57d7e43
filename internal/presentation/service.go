// Package presentation drives the verifier half of the relay: register a
// presentation request, relay the QR payload, serve the polling loop, and
// hand verified claims to the B2C federation bridge.
package presentation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"vcrelay/internal/correlation/models"
	"vcrelay/internal/correlation/store"
	"vcrelay/internal/entra"
	"vcrelay/internal/platform/metrics"
	derrors "vcrelay/pkg/domain-errors"
	"vcrelay/pkg/platform/sentinel"
)

// RequestClient is the slice of the Verified ID client this flow needs.
type RequestClient interface {
	CreatePresentationRequest(ctx context.Context, accessToken string, payload *entra.PresentationRequest) (map[string]any, error)
}

// FaceCheckConfig carries the defaults applied when a request opts into
// face check.
type FaceCheckConfig struct {
	SourceClaim string
	Threshold   int
}

// Service orchestrates presentation request creation and result consumption.
type Service struct {
	template  *entra.PresentationRequest
	client    RequestClient
	tokens    entra.TokenProvider
	store     store.Store
	authority string
	apiKey    string
	faceCheck FaceCheckConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds the presentation service around a loaded template.
func New(
	template *entra.PresentationRequest,
	client RequestClient,
	tokens entra.TokenProvider,
	st store.Store,
	authority string,
	apiKey string,
	faceCheck FaceCheckConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		template:  template,
		client:    client,
		tokens:    tokens,
		store:     st,
		authority: authority,
		apiKey:    apiKey,
		faceCheck: faceCheck,
		metrics:   m,
		logger:    logger,
	}
}

// RequestInput captures the request-scoped values the orchestration needs.
type RequestInput struct {
	ID        string
	Host      string
	FaceCheck bool
}

// CreateRequest runs the full orchestration and returns the platform's
// response augmented with the correlation id.
func (s *Service) CreateRequest(ctx context.Context, in RequestInput) (map[string]any, error) {
	token := in.ID
	if token == "" {
		token = uuid.NewString()
	}

	accessToken, err := s.tokens.AccessToken(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "token acquisition failed", "error", err)
		return nil, derrors.New(derrors.CodeUnauthorized, "could not acquire access token to call the request service")
	}

	payload := s.template.Clone()
	payload.Authority = s.authority
	payload.Callback.URL = fmt.Sprintf("https://%s/api/verifier/presentation-request-callback", in.Host)
	payload.Callback.State = token
	if payload.Callback.Headers == nil {
		payload.Callback.Headers = map[string]string{}
	}
	payload.Callback.Headers["api-key"] = s.apiKey

	if in.FaceCheck {
		rc := &payload.RequestedCredentials[0]
		if rc.Configuration == nil {
			rc.Configuration = &entra.Configuration{}
		}
		rc.Configuration.Validation.FaceCheck = &entra.FaceCheck{
			SourcePhotoClaimName:     s.faceCheck.SourceClaim,
			MatchConfidenceThreshold: s.faceCheck.Threshold,
		}
	}

	resp, err := s.client.CreatePresentationRequest(ctx, accessToken, payload)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, token, models.Pending(token)); err != nil {
		return nil, fmt.Errorf("seed correlation record: %w", err)
	}
	s.metrics.IncRequestCreated("presentation")

	resp["id"] = token
	return resp, nil
}

// Status returns the record for the polling loop, stripped of the raw
// platform response on verified presentations.
func (s *Service) Status(ctx context.Context, token string) (*models.Record, error) {
	record, err := s.store.Get(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.New(derrors.CodeBadRequest, fmt.Sprintf("Unknown state: %s", token))
	}
	if err != nil {
		return nil, fmt.Errorf("load correlation record: %w", err)
	}
	redacted := record.Redacted()
	return &redacted, nil
}

// ErrNotVerified signals the B2C bridge asked for claims before the wallet
// presented, or for a token already consumed.
var ErrNotVerified = errors.New("presentation not verified")

// VerifiedClaims is the one-shot read for the federation bridge: the
// flattened claims of the first verified credential merged with derived
// fields, after which the record is cleared.
func (s *Service) VerifiedClaims(ctx context.Context, token string) (map[string]any, error) {
	record, err := s.store.Get(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, ErrNotVerified
	}
	if err != nil {
		return nil, fmt.Errorf("load correlation record: %w", err)
	}
	if record.Status != models.StatusPresentationVerified {
		return nil, ErrNotVerified
	}

	claims, authority := firstCredential(record.PresentationResponse)
	if claims == nil {
		return nil, ErrNotVerified
	}

	response := map[string]any{
		"vcType": s.template.RequestedCredentials[0].Type,
		"vcIss":  authority,
		"vcSub":  record.Subject,
		"vcKey":  subjectKey(record.Subject),
	}
	for k, v := range claims {
		response[k] = v
	}

	// The bridge reads a result exactly once; clear it so a replayed call
	// cannot mint a second login from the same presentation.
	if err := s.store.Delete(ctx, token); err != nil {
		s.logger.WarnContext(ctx, "clear consumed record failed", "state", token, "error", err)
	}
	return response, nil
}

// Details describes the configured presentation request for the UI.
func (s *Service) Details() map[string]any {
	rc := s.template.RequestedCredentials[0]
	return map[string]any{
		"clientName":        s.template.Registration.ClientName,
		"purpose":           s.template.Registration.Purpose,
		"VerifierAuthority": s.authority,
		"type":              rc.Type,
		"acceptedIssuers":   rc.AcceptedIssuers,
	}
}

// firstCredential digs the first verified credential's claims and authority
// out of the stored platform response.
func firstCredential(presentationResponse map[string]any) (map[string]any, string) {
	data, _ := presentationResponse["verifiedCredentialsData"].([]any)
	if len(data) == 0 {
		return nil, ""
	}
	first, _ := data[0].(map[string]any)
	if first == nil {
		return nil, ""
	}
	claims, _ := first["claims"].(map[string]any)
	authority, _ := first["authority"].(string)
	return claims, authority
}

// subjectKey derives a storage-safe key from the subject DID: colons are
// swapped out of the method prefix and everything after the first remaining
// colon is dropped.
func subjectKey(subject string) string {
	return strings.SplitN(strings.Replace(subject, "did:ion:", "did.ion.", 1), ":", 2)[0]
}
