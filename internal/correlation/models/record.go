// Package models defines the session record correlating a Verified ID
// request with its asynchronous callback and the browser's polling loop.
package models

// Status is the closed set of states a correlation record moves through.
// The strings are wire-level: the request service reports them verbatim in
// callbacks and the browser UI matches on them.
type Status string

const (
	StatusRequestCreated       Status = "request_created"
	StatusRequestRetrieved     Status = "request_retrieved"
	StatusSelfieTaken          Status = "selfie_taken"
	StatusIssuanceSuccessful   Status = "issuance_successful"
	StatusIssuanceError        Status = "issuance_error"
	StatusPresentationVerified Status = "presentation_verified"
	StatusPresentationError    Status = "presentation_error"
)

// Terminal reports whether no further callback is expected for this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusIssuanceSuccessful, StatusIssuanceError,
		StatusPresentationVerified, StatusPresentationError:
		return true
	}
	return false
}

// Record is the mutable result slot stored under a correlation token. It is
// created by a flow orchestrator in the pending state, overwritten by the
// callback endpoint, and read (partially redacted) by the status poller.
type Record struct {
	Token   string `json:"-"`
	Status  Status `json:"status"`
	Message string `json:"message"`

	// Payload carries error codes on failures and the verified credential
	// data on presentation_verified.
	Payload any    `json:"payload,omitempty"`
	Subject string `json:"subject,omitempty"`

	// Credential identity and validity window, extracted from the embedded
	// vp_token on presentation_verified.
	JTI string `json:"jti,omitempty"`
	IAT int64  `json:"iat,omitempty"`
	EXP int64  `json:"exp,omitempty"`

	// Photo holds a selfie data URL captured earlier in the session, used
	// as a claim override on a later issuance request.
	Photo string `json:"photo,omitempty"`

	// PresentationResponse retains the full callback event for server-side
	// consumers (the B2C bridge). Stripped before polling responses.
	PresentationResponse map[string]any `json:"presentationResponse,omitempty"`
}

// Redacted returns a copy safe for the browser: the raw platform response is
// only used server-side to derive claims.
func (r Record) Redacted() Record {
	if r.Status == StatusPresentationVerified {
		r.PresentationResponse = nil
	}
	return r
}

// Pending returns the initial record a flow orchestrator stores right after
// registering a request upstream.
func Pending(token string) *Record {
	return &Record{
		Token:   token,
		Status:  StatusRequestCreated,
		Message: "Waiting for QR code to be scanned",
	}
}
