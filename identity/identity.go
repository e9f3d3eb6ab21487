package identity

import (
	"time"
)

// User is the authenticated identity as reported by the identity provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Session is one authenticated identity window. A change of token value is a
// new Session for sync purposes, even when the same user is attached.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time // zero when the provider does not report expiry
}

// Snapshot is the (user, session, loading) tuple an auth provider exposes.
// Loading is true while the provider is still establishing the identity;
// consumers must treat a loading snapshot as "not ready" rather than
// "logged out".
type Snapshot struct {
	User    *User
	Session *Session
	Loading bool
}

// Ready reports whether the snapshot carries a usable authenticated identity.
func (s Snapshot) Ready() bool {
	return !s.Loading && s.User != nil && s.User.ID != "" && s.AccessToken() != ""
}

// AccessToken returns the session token, or "" when no session is present.
func (s Snapshot) AccessToken() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.AccessToken
}

// Equal compares the identity tuple (user id, access token, loading) that
// drives change notifications. Other fields do not trigger re-notification.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.userID() == other.userID() &&
		s.AccessToken() == other.AccessToken() &&
		s.Loading == other.Loading
}

func (s Snapshot) userID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// Provider supplies the current identity snapshot and notifies observers
// whenever the (user id, access token, loading) tuple changes.
type Provider interface {
	// Current returns the latest identity snapshot.
	Current() Snapshot

	// OnChange registers an observer called on every tuple change. The
	// returned function cancels the registration.
	OnChange(func(Snapshot)) (cancel func())
}
