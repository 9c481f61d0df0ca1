// Package auth wraps the opaque bearer token handed over by the sign-in flow: it builds
// authorized HTTP clients, probes whether the token is still accepted and revokes it.
package auth

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/httpclient"
	"github.com/AMEND09/ID-Scanner/internal/logger"
)

// DefaultRevokeURL is Google's token revocation endpoint.
const DefaultRevokeURL = "https://oauth2.googleapis.com/revoke"

var (
	ErrEmptyToken   = errors.NewStd("empty access token")
	ErrTokenInvalid = errors.NewStd("access token invalid or expired")
)

// GetLogger returns the auth module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("auth")
}

// Provider creates credentials sharing one HTTP client.
type Provider struct {
	http         *httpclient.Client
	revokeURL    string
	probeTimeout time.Duration
	endpoint     string
}

// NewProvider returns a provider. endpoint overrides the Google API root when non-empty.
func NewProvider(client *httpclient.Client, settings *conf.AuthSettings, endpoint string) *Provider {
	if client == nil {
		client = httpclient.New(nil)
	}
	p := &Provider{
		http:         client,
		revokeURL:    DefaultRevokeURL,
		probeTimeout: 10 * time.Second,
		endpoint:     endpoint,
	}
	if settings != nil {
		if settings.RevokeURL != "" {
			p.revokeURL = settings.RevokeURL
		}
		if settings.ProbeTimeout > 0 {
			p.probeTimeout = settings.ProbeTimeout
		}
	}
	return p
}

// Credential wraps token. An empty token is rejected.
func (p *Provider) Credential(token string) (*Credential, error) {
	if token == "" {
		return nil, errors.New(ErrEmptyToken).
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return &Credential{
		token:    token,
		source:   src,
		provider: p,
		client: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: p.http.Transport()},
		},
	}, nil
}

// Credential is one signed-in user's bearer token.
type Credential struct {
	token    string
	source   oauth2.TokenSource
	provider *Provider
	client   *http.Client
}

// Token returns the raw bearer token.
func (c *Credential) Token() string {
	return c.token
}

// TokenSource returns a source yielding the bearer token.
func (c *Credential) TokenSource() oauth2.TokenSource {
	return c.source
}

// HTTPClient returns a client that authorizes every request with the token.
func (c *Credential) HTTPClient() *http.Client {
	return c.client
}

// Probe lists a single Drive file. ErrTokenInvalid means the token was rejected; any other
// error says nothing about the token.
func (c *Credential) Probe(ctx context.Context) error {
	opts := []option.ClientOption{option.WithHTTPClient(c.client)}
	if c.provider.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.provider.endpoint+"/drive/v3/"))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return errors.New(err).
			Component("auth").
			Category(errors.CategoryIntegration).
			Context("operation", "probe").
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, c.provider.probeTimeout)
	defer cancel()

	start := time.Now()
	_, err = svc.Files.List().PageSize(1).Fields("files(id)").Context(ctx).Do()
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
		return errors.New(ErrTokenInvalid).
			Component("auth").
			Category(errors.CategoryAuth).
			Context("status", gerr.Code).
			Build()
	}
	return errors.New(err).
		Component("auth").
		Category(errors.CategoryNetwork).
		Timing("probe", time.Since(start)).
		Build()
}

// ProbeValidity reports whether the token is currently accepted.
func (c *Credential) ProbeValidity(ctx context.Context) bool {
	err := c.Probe(ctx)
	if err != nil {
		GetLogger().Debug("token probe failed", logger.Error(err))
	}
	return err == nil
}

// Revoke invalidates the token at the provider. A token the provider no longer knows is
// treated as revoked.
func (c *Credential) Revoke(ctx context.Context) error {
	resp, err := c.provider.http.PostForm(ctx, c.provider.revokeURL, url.Values{"token": {c.token}})
	if err != nil {
		return errors.New(err).
			Component("auth").
			Category(errors.CategoryNetwork).
			NetworkContext(c.provider.revokeURL, c.provider.probeTimeout).
			Context("operation", "revoke").
			Build()
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			GetLogger().Debug("failed to close revoke response body", logger.Error(cerr))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		GetLogger().Debug("token already invalid at revoke")
		return nil
	default:
		return errors.Newf("token revoke failed with status %d", resp.StatusCode).
			Component("auth").
			Category(errors.CategoryHTTP).
			Context("status", resp.StatusCode).
			Context("operation", "revoke").
			Build()
	}
}
