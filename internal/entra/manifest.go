package entra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// Manifest is the decoded credential manifest: the payload of the signed
// token the manifest URL serves. Claims keeps the full document for the
// get-manifest diagnostic endpoint.
type Manifest struct {
	Issuer string
	Claims map[string]any
}

// FetchManifest downloads the credential manifest and decodes its token
// payload. No signature verification happens here; the manifest is only
// used to default authorities and for diagnostics.
func FetchManifest(ctx context.Context, hc *http.Client, url string) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build manifest request: %w", err)
	}
	res, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	defer res.Body.Close()

	var envelope struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode manifest envelope: %w", err)
	}
	if envelope.Token == "" {
		return nil, fmt.Errorf("could not retrieve manifest from %s", url)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(envelope.Token, claims); err != nil {
		return nil, fmt.Errorf("decode manifest token: %w", err)
	}
	iss, _ := claims["iss"].(string)
	return &Manifest{Issuer: iss, Claims: claims}, nil
}
