// Package authsync reports the authenticated identity to the backend so its
// record of the user stays current. Each distinct (user id, access token)
// pair is synced exactly once per client session; duplicate triggers and
// remounts collapse into a single POST. Syncing is best-effort telemetry:
// failures are logged and swallowed, never surfaced and never retried on a
// timer — the next natural identity change re-attempts.
package authsync

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/shulebook/shulebook-go/apiclient"
	"github.com/shulebook/shulebook-go/identity"
	"github.com/shulebook/shulebook-go/internal/metrics"
	"github.com/shulebook/shulebook-go/syncstate"
	"github.com/shulebook/shulebook-go/tenant"
)

// Endpoint is the backend sync endpoint path.
const Endpoint = "/api/auth/sync"

// Outcome reports what a Reconcile call did. Reconcile never returns an
// error; the outcome lets callers and tests observe the decision.
type Outcome int

const (
	// OutcomeNotReady means auth was still loading, or no user/token was
	// present. Preconditions failed, nothing was attempted.
	OutcomeNotReady Outcome = iota

	// OutcomeAlreadySynced means this (user, token) pair was synced earlier
	// in the session.
	OutcomeAlreadySynced

	// OutcomeInFlight means another reconcile on this controller was mid-POST.
	OutcomeInFlight

	// OutcomeSynced means the backend confirmed the sync.
	OutcomeSynced

	// OutcomeFailed means the attempt failed; the pair stays eligible for the
	// next trigger.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotReady:
		return "not_ready"
	case OutcomeAlreadySynced:
		return "already_synced"
	case OutcomeInFlight:
		return "in_flight"
	case OutcomeSynced:
		return "synced"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SyncedUser is the backend's view of the user after a successful sync.
type SyncedUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
}

type syncResponse struct {
	User SyncedUser `json:"user"`
}

// Controller reconciles the auth provider's identity with the backend.
type Controller struct {
	api                 *apiclient.Client
	store               syncstate.Store
	tenants             tenant.Resolver
	log                 zerolog.Logger
	metrics             *metrics.Collector
	includeTenantHeader bool

	mu       sync.Mutex
	inFlight bool
}

type Option func(*Controller)

// WithTenantResolver supplies the tenant discriminator attached to sync
// requests.
func WithTenantResolver(r tenant.Resolver) Option {
	return func(c *Controller) { c.tenants = r }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithoutTenantHeader drops the x-tenant-id header from sync requests, for
// deployments whose sync endpoint derives the tenant from the token instead.
func WithoutTenantHeader() Option {
	return func(c *Controller) { c.includeTenantHeader = false }
}

func NewController(api *apiclient.Client, store syncstate.Store, opts ...Option) (*Controller, error) {
	if api == nil {
		return nil, errors.New("[authsync NewController] api client is required")
	}
	if store == nil {
		return nil, errors.New("[authsync NewController] sync record store is required")
	}

	c := &Controller{
		api:                 api,
		store:               store,
		log:                 zerolog.Nop(),
		includeTenantHeader: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Reconcile syncs the snapshot's identity with the backend if it has not been
// synced yet this session. Safe to call repeatedly with identical inputs:
// the session store suppresses re-syncs of a confirmed pair and the in-flight
// guard collapses concurrent invocations into one POST.
func (c *Controller) Reconcile(ctx context.Context, snap identity.Snapshot) Outcome {
	if snap.Loading || snap.User == nil || snap.User.ID == "" || snap.AccessToken() == "" {
		return OutcomeNotReady
	}

	userID := snap.User.ID
	token := snap.AccessToken()
	key := syncstate.Key(userID)

	if last, ok := c.store.Get(key); ok && last == token {
		return OutcomeAlreadySynced
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return OutcomeInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	outcome := c.sync(ctx, key, userID, token)
	c.metrics.SyncAttempt(outcome.String())
	return outcome
}

func (c *Controller) sync(ctx context.Context, key, userID, token string) Outcome {
	var tenantID string
	if c.includeTenantHeader && c.tenants != nil {
		tenantID = c.tenants.Resolve()
	}

	body, err := c.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   Endpoint,
		Token:  token,
		Tenant: tenantID,
	})
	if err != nil {
		c.log.Warn().Err(syncFailure(err)).Str("userId", userID).Msg("user sync failed")
		return OutcomeFailed
	}

	var resp syncResponse
	if err := apiclient.DecodeJSON(body, &resp); err != nil {
		c.log.Warn().Err(err).Str("userId", userID).Msg("user sync response unreadable")
		return OutcomeFailed
	}

	// only a confirmed sync suppresses future attempts for this pair
	c.store.Set(key, token)

	c.log.Info().
		Str("userId", resp.User.ID).
		Str("email", resp.User.Email).
		Str("tenantId", resp.User.TenantID).
		Msg("user synced with backend")
	return OutcomeSynced
}

// Bind reconciles the provider's current snapshot immediately and on every
// subsequent identity change. The returned function stops the binding.
func (c *Controller) Bind(ctx context.Context, provider identity.Provider) (stop func()) {
	c.Reconcile(ctx, provider.Current())
	return provider.OnChange(func(snap identity.Snapshot) {
		c.Reconcile(ctx, snap)
	})
}

// syncFailure synthesizes a stable message for failures without a
// backend-provided one.
func syncFailure(err error) error {
	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Kind == apiclient.KindHTTP && apiErr.Message == "" {
		return fmt.Errorf("sync failed with status %d", apiErr.Status)
	}
	return err
}
