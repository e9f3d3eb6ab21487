// Package fetch pulls authenticated resources from the backend and exposes
// per-subscription {data, loading, error} state. Transient failures are
// retried a bounded number of times with increasing delay; authorization
// rejections are never retried.
package fetch

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/shulebook/shulebook-go/apiclient"
	"github.com/shulebook/shulebook-go/identity"
	"github.com/shulebook/shulebook-go/internal/metrics"
	"github.com/shulebook/shulebook-go/report"
	"github.com/shulebook/shulebook-go/tenant"
)

const (
	// DefaultRetry is the number of additional attempts after the first.
	DefaultRetry = 1

	// DefaultRetryDelay is the base retry delay; the delay before retry n
	// (0-indexed) is DefaultRetryDelay * (n+1).
	DefaultRetryDelay = time.Second
)

// State is the subscription life-cycle position.
type State int

const (
	Idle State = iota
	Loading
	Success
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Errored:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is the caller-visible subscription state. Data holds the last
// successful response body and survives a reload in progress.
type Snapshot struct {
	State State
	Data  json.RawMessage
	Err   error
}

func (s Snapshot) IsLoading() bool { return s.State == Loading }

// Decode unmarshals the snapshot data into v.
func (s Snapshot) Decode(v any) error {
	if s.Data == nil {
		return errors.New("fetch: no data to decode")
	}
	return apiclient.DecodeJSON(s.Data, v)
}

// Client builds resource subscriptions against one backend, sharing the
// identity provider and the optional tenant resolver, error notifier and
// metrics collector.
type Client struct {
	api      *apiclient.Client
	provider identity.Provider
	tenants  tenant.Resolver
	notifier report.Notifier
	metrics  *metrics.Collector
	log      zerolog.Logger
}

type ClientOption func(*Client)

func WithTenantResolver(r tenant.Resolver) ClientOption {
	return func(c *Client) { c.tenants = r }
}

func WithNotifier(n report.Notifier) ClientOption {
	return func(c *Client) { c.notifier = n }
}

func WithMetrics(m *metrics.Collector) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

func NewClient(api *apiclient.Client, provider identity.Provider, opts ...ClientOption) (*Client, error) {
	if api == nil {
		return nil, errors.New("[fetch NewClient] api client is required")
	}
	if provider == nil {
		return nil, errors.New("[fetch NewClient] identity provider is required")
	}

	c := &Client{
		api:      api,
		provider: provider,
		notifier: report.Nop{},
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
