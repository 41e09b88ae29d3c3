package github

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// AppAuth provides GitHub App installation authentication for mirrors of
// private forks
type AppAuth struct {
	transport *ghinstallation.Transport
}

// NewAppAuth creates a new GitHub App authenticator
func NewAppAuth(appID int64, privateKey []byte, installationID int64) (*AppAuth, error) {
	tr, err := ghinstallation.New(
		http.DefaultTransport,
		appID,
		installationID,
		privateKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}

	return &AppAuth{transport: tr}, nil
}

// AuthMethod returns basic auth carrying a fresh installation token.
// ghinstallation refreshes expired tokens.
func (a *AppAuth) AuthMethod(ctx context.Context) (transport.AuthMethod, error) {
	token, err := a.transport.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get installation token: %w", err)
	}

	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: token,
	}, nil
}

// TokenAuth authenticates with a static personal access token
type TokenAuth struct {
	Token string
}

// AuthMethod returns basic auth for the token
func (a TokenAuth) AuthMethod(context.Context) (transport.AuthMethod, error) {
	return &githttp.BasicAuth{
		Username: "x-access-token",
		Password: a.Token,
	}, nil
}

// FromCredentials picks an authenticator: a GitHub App when an app ID is
// set, a static token when one is given, otherwise none.
// The returned value is nil when no credentials are configured.
func FromCredentials(token string, appID int64, privateKey []byte, installationID int64) (*Provider, error) {
	switch {
	case appID != 0:
		app, err := NewAppAuth(appID, privateKey, installationID)
		if err != nil {
			return nil, err
		}
		return &Provider{source: app}, nil
	case token != "":
		return &Provider{source: TokenAuth{Token: token}}, nil
	default:
		return nil, nil
	}
}

// Provider wraps the selected authenticator
type Provider struct {
	source interface {
		AuthMethod(ctx context.Context) (transport.AuthMethod, error)
	}
}

// AuthMethod returns credentials from the selected authenticator
func (p *Provider) AuthMethod(ctx context.Context) (transport.AuthMethod, error) {
	return p.source.AuthMethod(ctx)
}
