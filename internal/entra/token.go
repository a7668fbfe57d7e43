package entra

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2/clientcredentials"
)

// RequestServiceScope is the fixed application scope of the Verified ID
// request service.
const RequestServiceScope = "3db474b9-6a0c-4840-96ac-1fceb342124f/.default"

// RequiredRole must appear in the access token for create-request calls to
// succeed; a missing role means the app registration lacks the Verified ID
// service permission grant.
const RequiredRole = "VerifiableCredential.Create.All"

// TokenProvider supplies bearer tokens for outbound request service calls.
type TokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// ClientCredentialsProvider acquires tokens via the OAuth2 client-credential
// flow against the tenant's token endpoint. The underlying token source
// caches tokens until expiry.
type ClientCredentialsProvider struct {
	conf *clientcredentials.Config
}

// NewClientCredentialsProvider builds a provider for the given tenant and
// confidential client.
func NewClientCredentialsProvider(tenantID, clientID, clientSecret string) *ClientCredentialsProvider {
	return &ClientCredentialsProvider{
		conf: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
			Scopes:       []string{RequestServiceScope},
		},
	}
}

func (p *ClientCredentialsProvider) AccessToken(ctx context.Context) (string, error) {
	token, err := p.conf.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire access token: %w", err)
	}
	return token.AccessToken, nil
}

// VerifyRoles decodes the access token without signature verification and
// checks that the Verified ID create-request role was granted. Run once at
// startup so a misconfigured app registration fails loudly instead of as a
// 401 on the first user request.
func VerifyRoles(accessToken string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return fmt.Errorf("decode access token: %w", err)
	}
	roles, _ := claims["roles"].([]any)
	for _, role := range roles {
		if role == RequiredRole {
			return nil
		}
	}
	return fmt.Errorf("access token is missing the %q role", RequiredRole)
}
