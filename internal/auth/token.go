// Package auth supplies bearer tokens and session state to the chat client.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNoToken is returned when no token source is configured or it yields
// an empty token.
var ErrNoToken = errors.New("no access token available")

// TokenProvider returns the bearer token for the next request. It is
// consulted on every request so rotated tokens take effect immediately.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticToken always returns the same token.
type StaticToken string

// Token implements TokenProvider.
func (s StaticToken) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// FileToken reads the token from a file on every call.
type FileToken struct {
	Path string
}

// Token implements TokenProvider.
func (f FileToken) Token(context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// OAuth2Provider adapts an oauth2.TokenSource. The source caches and refreshes
// tokens itself.
type OAuth2Provider struct {
	source oauth2.TokenSource
}

// NewOAuth2Provider wraps an existing token source.
func NewOAuth2Provider(source oauth2.TokenSource) *OAuth2Provider {
	return &OAuth2Provider{source: oauth2.ReuseTokenSource(nil, source)}
}

// ClientCredentials describes an OAuth 2.0 client-credentials grant.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	// Audience is sent as the "audience" parameter (Auth0 style APIs).
	Audience string
}

// NewClientCredentialsProvider builds a provider using the client-credentials
// grant.
func NewClientCredentialsProvider(ctx context.Context, cc ClientCredentials) (*OAuth2Provider, error) {
	if cc.ClientID == "" || cc.TokenURL == "" {
		return nil, errors.New("client id and token url are required")
	}
	cfg := clientcredentials.Config{
		ClientID:     cc.ClientID,
		ClientSecret: cc.ClientSecret,
		TokenURL:     cc.TokenURL,
	}
	if cc.Audience != "" {
		cfg.EndpointParams = map[string][]string{"audience": {cc.Audience}}
	}
	return NewOAuth2Provider(cfg.TokenSource(ctx)), nil
}

// Token implements TokenProvider.
func (p *OAuth2Provider) Token(context.Context) (string, error) {
	tok, err := p.source.Token()
	if err != nil {
		return "", fmt.Errorf("oauth2 token: %w", err)
	}
	if tok == nil || tok.AccessToken == "" {
		return "", ErrNoToken
	}
	return tok.AccessToken, nil
}
