package callback

// APIKeyHeader is the header the request service echoes back on every
// callback, carrying the shared secret we registered with the request.
const APIKeyHeader = "api-key"

// Gate is the only authentication on the callback path: a per-process
// shared-secret replay guard, not signature verification. The secret is
// generated at startup, sent to the platform inside the callback
// registration, and must come back verbatim.
type Gate struct {
	apiKey string
}

// NewGate builds a gate around the process api-key.
func NewGate(apiKey string) *Gate {
	return &Gate{apiKey: apiKey}
}

// Authorize reports whether the presented secret matches exactly.
func (g *Gate) Authorize(presented string) bool {
	return presented == g.apiKey
}
