package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shulebook/shulebook-go/apiclient"
	errs "github.com/shulebook/shulebook-go/internal/errors"
)

type options struct {
	retry               int
	retryDelay          time.Duration
	enabled             bool
	includeTenantHeader bool
	onSuccess           func(json.RawMessage)
	onError             func(error)
}

// Option configures one subscription.
type Option func(*options)

// WithRetry sets the number of additional attempts after the first; the worst
// case issues retry+1 network attempts.
func WithRetry(retry int) Option {
	return func(o *options) {
		if retry >= 0 {
			o.retry = retry
		}
	}
}

// WithRetryDelay sets the base retry delay. The delay before retry n
// (0-indexed) is delay * (n+1): strictly increasing with the attempt number.
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

// Disabled gates the subscription off: triggers become no-ops until the
// caller re-subscribes with the gate open.
func Disabled() Option {
	return func(o *options) { o.enabled = false }
}

// WithTenantHeader attaches the resolved tenant discriminator to every
// attempt. Off by default: generic resource endpoints encode the tenant in
// their path.
func WithTenantHeader() Option {
	return func(o *options) { o.includeTenantHeader = true }
}

// OnSuccess registers a side effect invoked exactly once per successful
// fetch cycle with the response body.
func OnSuccess(fn func(json.RawMessage)) Option {
	return func(o *options) { o.onSuccess = fn }
}

// OnError registers a side effect invoked exactly once per exhausted fetch
// cycle with the terminal error.
func OnError(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// Subscription is one logical subscription to a resource endpoint. All its
// state is owned by the subscription; nothing is shared across subscriptions.
type Subscription struct {
	id       string
	client   *Client
	endpoint string
	opts     options
	log      zerolog.Logger

	mu      sync.Mutex
	state   State
	data    json.RawMessage
	err     error
	gen     uint64 // bumped on refetch and teardown; stale attempts check it before mutating
	timer   *time.Timer
	closed  bool
	waiters []chan Snapshot
}

// Subscribe creates a subscription for endpoint. It starts Idle; call Trigger
// once the identity is ready.
func (c *Client) Subscribe(endpoint string, opts ...Option) *Subscription {
	o := options{
		retry:      DefaultRetry,
		retryDelay: DefaultRetryDelay,
		enabled:    true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	return &Subscription{
		id:       id,
		client:   c,
		endpoint: endpoint,
		opts:     o,
		log:      c.log.With().Str("subscription", id).Str("endpoint", endpoint).Logger(),
	}
}

// Snapshot returns the current caller-visible state.
func (s *Subscription) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Trigger starts a fetch cycle if the subscription is enabled, the identity
// is ready and nothing is already loading. A trigger while Loading is a
// no-op, which de-duplicates near-simultaneous triggers. Returns whether a
// cycle started.
func (s *Subscription) Trigger(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.opts.enabled || s.state == Loading {
		return false
	}
	if !s.client.provider.Current().Ready() {
		return false
	}
	s.beginLocked(ctx)
	return true
}

// Refetch starts a fresh fetch cycle from any state, resetting the attempt
// counter. A cycle already in flight is invalidated: its eventual result is
// discarded. Returns whether a cycle started.
func (s *Subscription) Refetch(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.opts.enabled {
		return false
	}
	if !s.client.provider.Current().Ready() {
		return false
	}
	s.beginLocked(ctx)
	return true
}

// Close tears the subscription down: pending retry timers stop, in-flight
// results are discarded, and no state mutation happens afterwards.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.stopTimerLocked()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// Wait blocks until the current cycle reaches Success or Errored, or ctx is
// done. A subscription that was never triggered blocks until ctx expires.
func (s *Subscription) Wait(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, errs.ErrSubscriptionClosed
	}
	if s.state == Success || s.state == Errored {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	ch := make(chan Snapshot, 1)
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case snap, ok := <-ch:
		if !ok {
			return Snapshot{}, errs.ErrSubscriptionClosed
		}
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Subscription) beginLocked(ctx context.Context) {
	s.stopTimerLocked()
	s.gen++
	s.state = Loading
	s.err = nil
	go s.attempt(ctx, s.gen, 0)
}

func (s *Subscription) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Subscription) snapshotLocked() Snapshot {
	return Snapshot{State: s.state, Data: s.data, Err: s.err}
}

func (s *Subscription) notifyWaitersLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.waiters {
		ch <- snap
	}
	s.waiters = nil
}

// attempt issues network attempt n (0-indexed) of generation gen. The
// generation check at the mutation point guarantees that only the most
// recent cycle's result touches visible state.
func (s *Subscription) attempt(ctx context.Context, gen uint64, n int) {
	ident := s.client.provider.Current()

	var tenantID string
	if s.opts.includeTenantHeader && s.client.tenants != nil {
		tenantID = s.client.tenants.Resolve()
	}

	s.client.metrics.FetchAttempt(n > 0)
	body, err := s.client.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   s.endpoint,
		Token:  ident.AccessToken(),
		Tenant: tenantID,
	})

	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}

	if err == nil {
		s.state = Success
		s.data = body
		s.err = nil
		onSuccess := s.opts.onSuccess
		s.notifyWaitersLocked()
		s.mu.Unlock()

		s.client.metrics.FetchOutcome("success")
		s.log.Debug().Int("attempt", n).Msg("fetch succeeded")
		if onSuccess != nil {
			onSuccess(body)
		}
		return
	}

	if n < s.opts.retry && !apiclient.IsUnauthorized(err) {
		delay := s.opts.retryDelay * time.Duration(n+1)
		s.timer = time.AfterFunc(delay, func() {
			s.mu.Lock()
			stale := s.closed || gen != s.gen
			s.mu.Unlock()
			if stale {
				return
			}
			s.attempt(ctx, gen, n+1)
		})
		s.mu.Unlock()

		s.log.Debug().Err(err).Int("attempt", n).Dur("retryIn", delay).Msg("fetch failed, retry scheduled")
		return
	}

	s.state = Errored
	s.err = err
	onError := s.opts.onError
	s.notifyWaitersLocked()
	s.mu.Unlock()

	s.client.metrics.FetchOutcome("error")
	s.log.Warn().Err(err).Int("attempts", n+1).Msg("fetch failed")
	s.client.notifier.Notify(err, map[string]any{
		"endpoint":     s.endpoint,
		"attempts":     n + 1,
		"subscription": s.id,
	})
	if onError != nil {
		onError(err)
	}
}
