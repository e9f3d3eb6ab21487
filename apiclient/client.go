// Package apiclient is the HTTP boundary to the Shulebook backend. It attaches
// authentication and tenant headers, normalizes every failure path into a
// typed Error, and optionally guards outbound traffic with a rate limiter and
// a circuit breaker.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:3001"

const (
	headerAuthorization = "Authorization"
	headerTenantID      = "x-tenant-id"
	headerRequestID     = "x-request-id"
	headerContentType   = "Content-Type"

	contentTypeJSON = "application/json"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[*response]
	log        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithRateLimit caps outbound requests at rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithCircuitBreaker trips the client open after repeated backend failures,
// failing fast instead of piling requests onto a struggling backend.
func WithCircuitBreaker(name string) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{Name: name})
	}
}

// New builds a client for the given base URL; "" selects DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Request describes one backend call. Token and Tenant are attached as
// headers when non-empty; Body is JSON-encoded when non-nil.
type Request struct {
	Method string
	Path   string
	Token  string
	Tenant string
	Body   any
}

type response struct {
	status int
	body   []byte
}

// Do executes the request and returns the raw response body on 2xx. Every
// failure is a *Error: KindNetwork when no response arrived, KindHTTP for
// non-2xx statuses (with the backend's message parsed out of the body when
// present).
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindNetwork, cause: err}
		}
	}

	var bodyReader io.Reader
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Kind: KindParse, cause: err}
		}
		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, cause: err}
	}
	if req.Body != nil {
		httpReq.Header.Set(headerContentType, contentTypeJSON)
	}
	if req.Token != "" {
		httpReq.Header.Set(headerAuthorization, "Bearer "+req.Token)
	}
	if req.Tenant != "" {
		httpReq.Header.Set(headerTenantID, req.Tenant)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set(headerRequestID, requestID)

	resp, err := c.execute(httpReq)
	if err != nil {
		c.log.Debug().Err(err).Str("method", req.Method).Str("path", req.Path).Str("requestId", requestID).Msg("request failed before response")
		return nil, &Error{Kind: KindNetwork, cause: err}
	}

	if resp.status < 200 || resp.status > 299 {
		apiErr := &Error{Kind: KindHTTP, Status: resp.status, Message: errorMessage(resp.body)}
		c.log.Debug().Int("status", resp.status).Str("method", req.Method).Str("path", req.Path).Str("requestId", requestID).Msg("request rejected")
		return nil, apiErr
	}

	return resp.body, nil
}

func (c *Client) execute(httpReq *http.Request) (*response, error) {
	send := func() (*response, error) {
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		return &response{status: resp.StatusCode, body: body}, nil
	}

	if c.breaker != nil {
		return c.breaker.Execute(send)
	}
	return send()
}

// DecodeJSON unmarshals a response body, normalizing failures to KindParse.
func DecodeJSON(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &Error{Kind: KindParse, cause: err}
	}
	return nil
}

// errorMessage pulls the backend's error message out of a failure body.
// Bodies are parsed opportunistically; anything unparseable yields "".
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Message
}

func asError(err error, target **Error) bool {
	return stderrors.As(err, target)
}
