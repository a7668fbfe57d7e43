// Package issuance drives the issuance half of the relay: build a request
// payload from the configured template, register it with the request
// service, seed the correlation store, and hand the QR payload back to the
// browser.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"vcrelay/internal/correlation/models"
	"vcrelay/internal/correlation/store"
	"vcrelay/internal/entra"
	"vcrelay/internal/platform/metrics"
	derrors "vcrelay/pkg/domain-errors"
	"vcrelay/pkg/platform/sentinel"
)

// Demo claim overrides stamped into templates that carry those claims, so
// the sample issues a recognizable credential out of the box.
const (
	demoGivenName  = "Megan"
	demoFamilyName = "Bowen"
)

// RequestClient is the slice of the Verified ID client this flow needs.
type RequestClient interface {
	CreateIssuanceRequest(ctx context.Context, accessToken string, payload *entra.IssuanceRequest) (map[string]any, error)
}

// Service orchestrates issuance request creation.
type Service struct {
	template  *entra.IssuanceRequest
	client    RequestClient
	tokens    entra.TokenProvider
	store     store.Store
	authority string
	manifest  string
	apiKey    string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds the issuance service around a loaded template.
func New(
	template *entra.IssuanceRequest,
	client RequestClient,
	tokens entra.TokenProvider,
	st store.Store,
	authority string,
	manifestURL string,
	apiKey string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		template:  template,
		client:    client,
		tokens:    tokens,
		store:     st,
		authority: authority,
		manifest:  manifestURL,
		apiKey:    apiKey,
		metrics:   m,
		logger:    logger,
	}
}

// RequestInput captures the request-scoped values the orchestration needs.
type RequestInput struct {
	// ID is the caller-chosen correlation token; empty means mint one.
	ID string
	// Host is the inbound request's host, used to derive the callback URL
	// so tunnelled deployments (ngrok and friends) need no reconfiguration.
	Host string
	// UserAgent decides whether a pin makes sense: on the wallet's own
	// device there is no second screen to read it from.
	UserAgent string
}

// CreateRequest runs the full orchestration. On success the returned map is
// the platform's response body augmented with the correlation id and, when
// a pin was generated, its plaintext value for the browser to display.
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
	payload.Manifest = s.manifest
	payload.Callback.URL = fmt.Sprintf("https://%s/api/issuer/issuance-request-callback", in.Host)
	payload.Callback.State = token
	if payload.Callback.Headers == nil {
		payload.Callback.Headers = map[string]string{}
	}
	payload.Callback.Headers["api-key"] = s.apiKey

	if payload.Pin != nil {
		if isMobile(in.UserAgent) {
			// The pin input flow is meaningless on the wallet's own device.
			payload.Pin = nil
		} else {
			pin, err := GeneratePin(payload.Pin.Length)
			if err != nil {
				return nil, fmt.Errorf("generate pin: %w", err)
			}
			payload.Pin.Value = pin
		}
	}

	s.applyClaimOverrides(ctx, payload, token)

	resp, err := s.client.CreateIssuanceRequest(ctx, accessToken, payload)
	if err != nil {
		return nil, err
	}

	if err := s.store.Put(ctx, token, models.Pending(token)); err != nil {
		return nil, fmt.Errorf("seed correlation record: %w", err)
	}
	s.metrics.IncRequestCreated("issuance")

	resp["id"] = token
	if payload.Pin != nil {
		resp["pin"] = payload.Pin.Value
	}
	return resp, nil
}

// applyClaimOverrides substitutes demo claim values into templates that
// include them. A photo claim is filled from a selfie captured earlier in
// the same session, when one exists.
func (s *Service) applyClaimOverrides(ctx context.Context, payload *entra.IssuanceRequest, token string) {
	if payload.Claims == nil {
		return
	}
	if _, ok := payload.Claims["given_name"]; ok {
		payload.Claims["given_name"] = demoGivenName
	}
	if _, ok := payload.Claims["family_name"]; ok {
		payload.Claims["family_name"] = demoFamilyName
	}
	if _, ok := payload.Claims["photo"]; ok {
		record, err := s.store.Get(ctx, token)
		if err == nil && record.Photo != "" {
			payload.Claims["photo"] = record.Photo
		}
	}
}

// Status returns the current record for the browser's polling loop.
func (s *Service) Status(ctx context.Context, token string) (*models.Record, error) {
	record, err := s.store.Get(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, derrors.New(derrors.CodeBadRequest, fmt.Sprintf("Unknown state: %s", token))
	}
	if err != nil {
		return nil, fmt.Errorf("load correlation record: %w", err)
	}
	return record, nil
}

// StoreSelfie records a selfie taken in the browser so a later issuance
// request in the same session can use it as the photo claim.
func (s *Service) StoreSelfie(ctx context.Context, token, photo string) error {
	if token == "" || photo == "" {
		return derrors.New(derrors.CodeBadRequest, "id and photo are required")
	}
	record, err := s.store.Get(ctx, token)
	if errors.Is(err, sentinel.ErrNotFound) {
		record = &models.Record{Token: token}
	} else if err != nil {
		return fmt.Errorf("load correlation record: %w", err)
	}
	record.Status = models.StatusSelfieTaken
	record.Message = "Selfie taken"
	record.Photo = photo
	if err := s.store.Put(ctx, token, record); err != nil {
		return fmt.Errorf("store selfie: %w", err)
	}
	return nil
}

func isMobile(ua string) bool {
	return useragent.New(ua).Mobile()
}
