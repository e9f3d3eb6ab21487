// Package staticprovider supplies an identity.Provider whose snapshot is set
// directly by the caller. It backs token-from-environment CLI sessions and
// doubles as the provider used throughout the test suites.
package staticprovider

import (
	"github.com/shulebook/shulebook-go/identity"
)

type Provider struct {
	*identity.Broadcaster
}

var _ identity.Provider = (*Provider)(nil)

// New starts with a loading snapshot; callers publish the real identity once
// it is established.
func New() *Provider {
	return &Provider{Broadcaster: identity.NewBroadcaster(identity.Snapshot{Loading: true})}
}

// FromToken builds a provider whose identity is derived from the access
// token's claims.
func FromToken(accessToken string) (*Provider, error) {
	user, session, err := identity.FromAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	p := &Provider{Broadcaster: identity.NewBroadcaster(identity.Snapshot{})}
	p.Set(user, session)
	return p, nil
}

// Set publishes a new identity tuple.
func (p *Provider) Set(user *identity.User, session *identity.Session) {
	p.Publish(identity.Snapshot{User: user, Session: session})
}

// SetLoading publishes a loading snapshot, as emitted while a login or token
// refresh is underway.
func (p *Provider) SetLoading() {
	p.Publish(identity.Snapshot{Loading: true})
}

// Clear publishes a logged-out snapshot.
func (p *Provider) Clear() {
	p.Publish(identity.Snapshot{})
}
