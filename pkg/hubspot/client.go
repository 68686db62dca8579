// Package hubspot provides a client for the HubSpot CRM v3 and legacy
// engagements APIs, covering the objects the report jobs read: deals, owners,
// engagements and contacts.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/prozo/dealpulse/internal/resilience"
)

// Client defines the HubSpot operations used by the report jobs.
type Client interface {
	// SearchDeals pages through the deal search endpoint, returning every
	// deal matching the filter with the requested properties.
	SearchDeals(ctx context.Context, req SearchRequest) ([]Deal, error)
	// ListDeals pages through the plain deal listing with the given
	// properties (used by the weekly job, which wants all deals).
	ListDeals(ctx context.Context, properties []string) ([]Deal, error)
	// OwnerEmail resolves an owner ID to an email address.
	OwnerEmail(ctx context.Context, ownerID string) (string, error)
	// OwnerEmails returns the full owner ID to email map.
	OwnerEmails(ctx context.Context) (map[string]string, error)
	// DealTypeHistory returns the recorded changes of the deal-type
	// property for one deal, oldest first as HubSpot returns them.
	DealTypeHistory(ctx context.Context, dealID string) ([]TypeChange, error)
	// Engagements returns all engagement timestamps for a deal (epoch
	// milliseconds, sorted ascending) and the text of the latest note.
	Engagements(ctx context.Context, dealID string) (*EngagementSummary, error)
	// AssociatedContacts returns the contacts associated with a deal.
	AssociatedContacts(ctx context.Context, dealID string) ([]Contact, error)
}

// Deal is a raw deal record: an ID plus the requested property values.
type Deal struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
}

// Property returns a property value, or fallback when absent/empty.
func (d Deal) Property(name, fallback string) string {
	if v := d.Properties[name]; v != "" {
		return v
	}
	return fallback
}

// TypeChange is one historical value of the deal-type property.
type TypeChange struct {
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
}

// EngagementSummary is the digest of a deal's engagement feed.
type EngagementSummary struct {
	// Timestamps holds every engagement instant in epoch milliseconds,
	// sorted ascending.
	Timestamps []int64
	// LastNote is the plain text of the most recent NOTE engagement, or
	// "N/A" when the deal has none.
	LastNote string
}

// Contact is an associated contact's identity properties.
type Contact struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	JobTitle  string `json:"jobtitle"`
}

// Filter is a single search filter clause.
type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

// SearchRequest describes a deal search.
type SearchRequest struct {
	Filters    []Filter
	Properties []string
	PageSize   int
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the default request rate (4 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetryConfig overrides the default retry behavior.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

// WithCircuitBreaker guards all calls with the given breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *httpClient) { c.breaker = cb }
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a HubSpot client authenticated with a private-app token.
// Calls are throttled to 4 req/s by default (HubSpot's burst guidance) and
// retried on 429/5xx responses.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://api.hubapi.com",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(4, 4),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doJSON issues one API request with rate limiting, retry and (optionally)
// circuit breaking, decoding the response body into out when out is non-nil.
func (c *httpClient) doJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return eris.Wrap(err, "hubspot: marshal request")
		}
		payload = b
	}

	call := func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return eris.Wrap(err, "hubspot: rate limit")
			}
		}

		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return eris.Wrapf(err, "hubspot: build request %s", path)
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return resilience.NewTransientError(eris.Wrapf(err, "hubspot: %s %s", method, path), 0)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return resilience.NewTransientError(eris.Wrap(err, "hubspot: read response"), 0)
		}

		if resp.StatusCode != http.StatusOK {
			err := eris.New(fmt.Sprintf("hubspot: %s %s returned %d: %s",
				method, path, resp.StatusCode, truncate(string(data), 200)))
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return resilience.NewTransientError(err, resp.StatusCode)
			}
			return err
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return eris.Wrapf(err, "hubspot: decode %s response", path)
			}
		}
		return nil
	}

	retryCfg := c.retry
	retryCfg.OnRetry = resilience.RetryLogger("hubspot", method+" "+path)

	run := func(ctx context.Context) error {
		return resilience.Do(ctx, retryCfg, call)
	}
	if c.breaker != nil {
		return c.breaker.Execute(ctx, run)
	}
	return run(ctx)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
