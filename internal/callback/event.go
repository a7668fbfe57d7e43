package callback

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Event is the webhook body the request service posts on every status
// change. Older payload shapes reported the status under "code" instead of
// "requestStatus".
type Event struct {
	RequestStatus           string       `json:"requestStatus"`
	Code                    string       `json:"code"`
	State                   string       `json:"state"`
	Subject                 string       `json:"subject"`
	Error                   *EventError  `json:"error"`
	VerifiedCredentialsData []Credential `json:"verifiedCredentialsData"`
	Receipt                 *Receipt     `json:"receipt"`
}

// EventError carries the platform's failure detail on error callbacks.
type EventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Credential is one verified credential as reported by the platform.
type Credential struct {
	Issuer    string         `json:"issuer,omitempty"`
	Authority string         `json:"authority,omitempty"`
	Type      []string       `json:"type,omitempty"`
	Claims    map[string]any `json:"claims,omitempty"`
}

// Receipt wraps the raw vp_token, which the platform sends either as a
// single compact token or as an array of them.
type Receipt struct {
	VPToken json.RawMessage `json:"vp_token"`
}

// Status returns the reported status tag, falling back to the legacy field.
func (e *Event) Status() string {
	if e.RequestStatus != "" {
		return e.RequestStatus
	}
	return e.Code
}

// FirstVPToken returns the single vp_token, or the first element when the
// platform sent an array.
func (r *Receipt) FirstVPToken() (string, error) {
	if r == nil || len(r.VPToken) == 0 {
		return "", nil
	}
	var single string
	if err := json.Unmarshal(r.VPToken, &single); err == nil {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(r.VPToken, &many); err != nil {
		return "", fmt.Errorf("decode vp_token: %w", err)
	}
	if len(many) == 0 {
		return "", nil
	}
	return many[0], nil
}

// CredentialDetails is the identity and validity window of the presented
// credential, extracted from the receipt without signature verification —
// the platform already verified the presentation before calling back.
type CredentialDetails struct {
	JTI string
	IAT int64
	EXP int64
}

// DecodeReceipt digs the inner verifiable-credential token out of the
// vp_token chain: decode the vp_token payload, take
// vp.verifiableCredential[0], decode that payload, and read jti/iat/exp.
func DecodeReceipt(receipt *Receipt) (*CredentialDetails, error) {
	vpToken, err := receipt.FirstVPToken()
	if err != nil || vpToken == "" {
		return nil, err
	}

	vpClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(vpToken, vpClaims); err != nil {
		return nil, fmt.Errorf("decode vp_token payload: %w", err)
	}
	vp, _ := vpClaims["vp"].(map[string]any)
	creds, _ := vp["verifiableCredential"].([]any)
	if len(creds) == 0 {
		return nil, nil
	}
	vcToken, _ := creds[0].(string)
	if vcToken == "" {
		return nil, nil
	}

	vcClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(vcToken, vcClaims); err != nil {
		return nil, fmt.Errorf("decode verifiable credential payload: %w", err)
	}

	details := &CredentialDetails{}
	details.JTI, _ = vcClaims["jti"].(string)
	if iat, ok := vcClaims["iat"].(float64); ok {
		details.IAT = int64(iat)
	}
	if exp, ok := vcClaims["exp"].(float64); ok {
		details.EXP = int64(exp)
	}
	return details, nil
}
