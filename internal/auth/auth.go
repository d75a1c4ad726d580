package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultTokenURL is the APS 2-legged token endpoint.
const DefaultTokenURL = "https://developer.api.autodesk.com/authentication/v2/token"

// ScopeDataRead grants read access to design data.
const ScopeDataRead = "data:read"

// ErrNoCredentials is returned when neither a token nor a client id/secret pair is configured.
var ErrNoCredentials = errors.New("no access token or client credentials configured")

// Provider hands out access tokens for read-scoped metadata calls.
type Provider interface {
	AccessToken(ctx context.Context) (string, error)
}

// ClientCredentials obtains 2-legged tokens and caches them until shortly before expiry.
type ClientCredentials struct {
	source oauth2.TokenSource
}

// NewClientCredentials builds a provider for the given client. An empty tokenURL
// selects DefaultTokenURL; ctx carries an optional *http.Client under
// oauth2.HTTPClient for the token requests.
func NewClientCredentials(ctx context.Context, clientID, clientSecret, tokenURL string) (*ClientCredentials, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrNoCredentials
	}
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{ScopeDataRead},
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return &ClientCredentials{source: cfg.TokenSource(ctx)}, nil
}

// AccessToken returns a valid token, fetching a new one when the cached token expired.
func (c *ClientCredentials) AccessToken(_ context.Context) (string, error) {
	tok, err := c.source.Token()
	if err != nil {
		return "", fmt.Errorf("get access token: %w", err)
	}
	return tok.AccessToken, nil
}

// Static is a fixed token, e.g. one handed in by the caller.
type Static string

// AccessToken returns the token itself.
func (s Static) AccessToken(context.Context) (string, error) {
	tok := strings.TrimSpace(string(s))
	if tok == "" {
		return "", ErrNoCredentials
	}
	return tok, nil
}

// New picks a Static provider when token is set, else client credentials.
func New(ctx context.Context, token, clientID, clientSecret, tokenURL string) (Provider, error) {
	if strings.TrimSpace(token) != "" {
		return Static(token), nil
	}
	return NewClientCredentials(ctx, clientID, clientSecret, tokenURL)
}
