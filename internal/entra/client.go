// Package entra talks to the Microsoft Entra Verified ID request service:
// client-credential token acquisition, createIssuanceRequest and
// createPresentationRequest calls, and credential manifest retrieval.
// Verification of credentials themselves is entirely the platform's job;
// this package only relays requests and results.
package entra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vcrelay/internal/platform/metrics"
	derrors "vcrelay/pkg/domain-errors"
)

const (
	issuanceEndpoint     = "verifiableCredentials/createIssuanceRequest"
	presentationEndpoint = "verifiableCredentials/createPresentationRequest"
)

// Client calls the Verified ID request service with bearer auth and an
// explicit per-call timeout.
type Client struct {
	httpClient *http.Client
	apiBase    string
	tokens     TokenProvider
	timeout    time.Duration
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests point it at a
// fake request service).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMetrics attaches outbound-call latency metrics.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a request service client rooted at apiBase (the v1.0
// host; the beta variant is derived when a payload needs it).
func NewClient(apiBase string, tokens TokenProvider, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		apiBase:    apiBase,
		tokens:     tokens,
		timeout:    timeout,
		metrics:    nil,
		tracer:     otel.Tracer("vcrelay/internal/entra"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// CreateIssuanceRequest registers an issuance request upstream and returns
// the raw response body (requestId, url, expiry, optional qrCode) so the
// handler can augment and relay it to the browser untouched.
func (c *Client) CreateIssuanceRequest(ctx context.Context, accessToken string, payload *IssuanceRequest) (map[string]any, error) {
	return c.createRequest(ctx, accessToken, c.apiBase+issuanceEndpoint, "createIssuanceRequest", payload)
}

// CreatePresentationRequest registers a presentation request upstream.
// Payloads that opt into face check target the beta endpoint variant.
func (c *Client) CreatePresentationRequest(ctx context.Context, accessToken string, payload *PresentationRequest) (map[string]any, error) {
	base := c.apiBase
	if payload.UsesFaceCheck() {
		base = strings.Replace(base, "/v1.0/", "/beta/", 1)
	}
	return c.createRequest(ctx, accessToken, base+presentationEndpoint, "createPresentationRequest", payload)
}

func (c *Client) createRequest(ctx context.Context, accessToken, endpoint, name string, payload any) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, name)
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.ObserveUpstream(name, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	defer res.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", name, err)
	}

	if res.StatusCode >= 300 {
		return nil, relayError(raw, res.StatusCode)
	}

	var resp map[string]any
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", name, err)
	}
	return resp, nil
}

// upstreamError mirrors the request service's nested error body.
type upstreamError struct {
	Error struct {
		Code       string `json:"code"`
		Message    string `json:"message"`
		InnerError *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"innererror"`
	} `json:"error"`
}

// relayError flattens the nested code/message fields the platform returned
// into one caller-visible message.
func relayError(raw []byte, status int) error {
	var ue upstreamError
	if err := json.Unmarshal(raw, &ue); err != nil || ue.Error.Code == "" {
		return derrors.New(derrors.CodeUpstream, fmt.Sprintf("request service returned %d: %s", status, strings.TrimSpace(string(raw))))
	}
	msg := ue.Error.Code + ": " + ue.Error.Message
	if ue.Error.InnerError != nil {
		msg += " (" + ue.Error.InnerError.Code + ": " + ue.Error.InnerError.Message + ")"
	}
	return derrors.New(derrors.CodeUpstream, msg)
}
