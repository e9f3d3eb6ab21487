// Package oidcprovider implements identity.Provider against an OpenID
// Connect issuer using the client-credentials grant. Tokens are refreshed
// ahead of expiry; every refresh that changes the token publishes a new
// identity snapshot.
package oidcprovider

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/shulebook/shulebook-go/identity"
)

const (
	defaultRefreshLeeway = 30 * time.Second
	defaultRetryInterval = 30 * time.Second
)

type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string

	// RefreshLeeway is how long before token expiry a refresh starts.
	RefreshLeeway time.Duration

	// RetryInterval is the wait after a failed token fetch.
	RetryInterval time.Duration
}

type Provider struct {
	*identity.Broadcaster

	source   oauth2.TokenSource
	verifier *oidc.IDTokenVerifier
	log      zerolog.Logger
	leeway   time.Duration
	retry    time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

var _ identity.Provider = (*Provider)(nil)

type Option func(*Provider)

func WithLogger(log zerolog.Logger) Option {
	return func(p *Provider) { p.log = log }
}

// New discovers the issuer, starts the token refresh loop and returns the
// provider. The initial snapshot is loading until the first token arrives.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("[oidcprovider New] issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("[oidcprovider New] client ID is required")
	}

	oidcProvider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcprovider New] issuer discovery")
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     oidcProvider.Endpoint().TokenURL,
		Scopes:       cfg.Scopes,
	}

	p := &Provider{
		Broadcaster: identity.NewBroadcaster(identity.Snapshot{Loading: true}),
		source:      cc.TokenSource(ctx),
		verifier:    oidcProvider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		log:         zerolog.Nop(),
		leeway:      cfg.RefreshLeeway,
		retry:       cfg.RetryInterval,
		done:        make(chan struct{}),
	}
	if p.leeway <= 0 {
		p.leeway = defaultRefreshLeeway
	}
	if p.retry <= 0 {
		p.retry = defaultRetryInterval
	}
	for _, opt := range opts {
		opt(p)
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(runCtx)

	return p, nil
}

// Close stops the refresh loop and waits for it to exit.
func (p *Provider) Close() {
	p.cancel()
	<-p.done
}

func (p *Provider) run(ctx context.Context) {
	defer close(p.done)

	for {
		tok, err := p.source.Token()
		if err != nil {
			p.log.Warn().Err(err).Msg("token fetch failed")
			p.Publish(identity.Snapshot{})
			if !sleep(ctx, p.retry) {
				return
			}
			continue
		}

		p.Publish(p.snapshotFromToken(ctx, tok))

		if tok.Expiry.IsZero() {
			// non-expiring token, nothing left to refresh
			<-ctx.Done()
			return
		}

		wait := time.Until(tok.Expiry) - p.leeway
		if wait < time.Second {
			wait = time.Second
		}
		if !sleep(ctx, wait) {
			return
		}
	}
}

func (p *Provider) snapshotFromToken(ctx context.Context, tok *oauth2.Token) identity.Snapshot {
	session := &identity.Session{AccessToken: tok.AccessToken, ExpiresAt: tok.Expiry}

	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err == nil {
			var claims struct {
				Sub   string `json:"sub"`
				Email string `json:"email"`
			}
			if err := idToken.Claims(&claims); err == nil && claims.Sub != "" {
				return identity.Snapshot{
					User:    &identity.User{ID: claims.Sub, Email: claims.Email},
					Session: session,
				}
			}
		}
		p.log.Warn().Err(err).Msg("ID token rejected, falling back to access token claims")
	}

	user, _, err := identity.FromAccessToken(tok.AccessToken)
	if err != nil {
		p.log.Warn().Err(err).Msg("access token carries no usable identity")
		return identity.Snapshot{}
	}
	return identity.Snapshot{User: user, Session: session}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
