package entra

import (
	"encoding/json"
	"fmt"
	"os"
)

// Request payload shapes for the Verified ID request service. Field names
// follow the wire format of createIssuanceRequest / createPresentationRequest.

// Registration describes the relying party shown in the wallet.
type Registration struct {
	ClientName string `json:"clientName"`
	Purpose    string `json:"purpose,omitempty"`
}

// Callback tells the request service where to post status webhooks. The
// api-key header is the shared secret the callback gate checks.
type Callback struct {
	URL     string            `json:"url"`
	State   string            `json:"state"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Pin is the one-time code displayed in the browser and typed in the wallet.
type Pin struct {
	Value  string `json:"value,omitempty"`
	Length int    `json:"length"`
}

// FaceCheck configures liveness matching against a photo claim. Only valid
// on presentation requests, and only on the beta API surface.
type FaceCheck struct {
	SourcePhotoClaimName     string `json:"sourcePhotoClaimName"`
	MatchConfidenceThreshold int    `json:"matchConfidenceThreshold"`
}

// Validation tunes how the request service checks a presented credential.
type Validation struct {
	AllowRevoked         bool       `json:"allowRevoked"`
	ValidateLinkedDomain bool       `json:"validateLinkedDomain"`
	FaceCheck            *FaceCheck `json:"faceCheck,omitempty"`
}

// Configuration wraps per-credential validation settings.
type Configuration struct {
	Validation Validation `json:"validation"`
}

// RequestedCredential names a credential type the verifier will accept.
type RequestedCredential struct {
	Type            string         `json:"type"`
	Purpose         string         `json:"purpose,omitempty"`
	AcceptedIssuers []string       `json:"acceptedIssuers,omitempty"`
	Configuration   *Configuration `json:"configuration,omitempty"`
}

// IssuanceRequest is the createIssuanceRequest payload.
type IssuanceRequest struct {
	Authority     string            `json:"authority"`
	IncludeQRCode bool              `json:"includeQRCode"`
	Registration  Registration      `json:"registration"`
	Callback      Callback          `json:"callback"`
	Type          string            `json:"type"`
	Manifest      string            `json:"manifest"`
	Pin           *Pin              `json:"pin,omitempty"`
	Claims        map[string]string `json:"claims,omitempty"`
}

// PresentationRequest is the createPresentationRequest payload.
type PresentationRequest struct {
	Authority            string                `json:"authority"`
	IncludeQRCode        bool                  `json:"includeQRCode"`
	IncludeReceipt       bool                  `json:"includeReceipt"`
	Registration         Registration          `json:"registration"`
	Callback             Callback              `json:"callback"`
	RequestedCredentials []RequestedCredential `json:"requestedCredentials"`
}

// UsesFaceCheck reports whether any requested credential opts into face
// check, which forces the call onto the beta endpoint.
func (p *PresentationRequest) UsesFaceCheck() bool {
	for _, rc := range p.RequestedCredentials {
		if rc.Configuration != nil && rc.Configuration.Validation.FaceCheck != nil {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so per-request mutation (state, pin, claims)
// never touches the shared template.
func (p *IssuanceRequest) Clone() *IssuanceRequest {
	copied := *p
	copied.Callback.Headers = cloneStringMap(p.Callback.Headers)
	copied.Claims = cloneStringMap(p.Claims)
	if p.Pin != nil {
		pin := *p.Pin
		copied.Pin = &pin
	}
	return &copied
}

// Clone returns a deep copy so per-request mutation never touches the
// shared template.
func (p *PresentationRequest) Clone() *PresentationRequest {
	copied := *p
	copied.Callback.Headers = cloneStringMap(p.Callback.Headers)
	copied.RequestedCredentials = make([]RequestedCredential, len(p.RequestedCredentials))
	for i, rc := range p.RequestedCredentials {
		copied.RequestedCredentials[i] = rc
		copied.RequestedCredentials[i].AcceptedIssuers = append([]string(nil), rc.AcceptedIssuers...)
		if rc.Configuration != nil {
			conf := *rc.Configuration
			if conf.Validation.FaceCheck != nil {
				fc := *conf.Validation.FaceCheck
				conf.Validation.FaceCheck = &fc
			}
			copied.RequestedCredentials[i].Configuration = &conf
		}
	}
	return &copied
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// LoadIssuanceTemplate reads and normalizes an issuance payload template.
// A pin entry with zero length really shouldn't be there and is dropped.
func LoadIssuanceTemplate(path string) (*IssuanceRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read issuance template: %w", err)
	}
	var tmpl IssuanceRequest
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, fmt.Errorf("parse issuance template %s: %w", path, err)
	}
	if tmpl.Pin != nil && tmpl.Pin.Length == 0 {
		tmpl.Pin = nil
	}
	if tmpl.Registration.ClientName == "" {
		tmpl.Registration.ClientName = "vcrelay Verified ID sample"
	}
	return &tmpl, nil
}

// LoadPresentationTemplate reads and normalizes a presentation payload
// template.
func LoadPresentationTemplate(path string) (*PresentationRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presentation template: %w", err)
	}
	var tmpl PresentationRequest
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, fmt.Errorf("parse presentation template %s: %w", path, err)
	}
	if len(tmpl.RequestedCredentials) == 0 {
		return nil, fmt.Errorf("presentation template %s has no requestedCredentials", path)
	}
	if tmpl.Registration.ClientName == "" {
		tmpl.Registration.ClientName = "vcrelay Verified ID sample"
	}
	return &tmpl, nil
}
