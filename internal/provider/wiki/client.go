package wiki

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"osrsprices/internal/httpx"
	"osrsprices/internal/provider"
	"osrsprices/internal/provider/cache"
	"osrsprices/internal/provider/ratelimit"
)

const (
	// DefaultBaseURL is the root of the OSRS wiki real-time prices API.
	DefaultBaseURL = "https://prices.runescape.wiki/api/v1/osrs"
	// DefaultUserAgent identifies us to the wiki when nothing else is configured.
	// https://prices.runescape.wiki/ asks for a descriptive agent with contact details.
	DefaultUserAgent = "OSRS-Merch-Bot/1.3 (contact: you@example.com)"

	DefaultMaxRetries  = 4
	DefaultBaseBackoff = 750 * time.Millisecond
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=wiki_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the wiki price API.
// All requests, whichever accessor issues them, pass through one rate gate
// and share one retry policy. Upstream failures never surface as errors.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP client.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// gate spaces out every attempt, retries included.
	gate *ratelimit.Gate

	maxRetries  int
	baseBackoff time.Duration
	sleep       Sleeper

	log logrus.FieldLogger

	mapping cache.Memo[[]provider.Item]
}

var _ provider.Source = (*Client)(nil)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ClientOption is a configuration option for the wiki client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the identifying User-Agent sent with every request.
// An empty value keeps the default.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		if userAgent != "" {
			c.header.Set("User-Agent", userAgent)
		}
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithGate replaces the process-wide rate gate.
func WithGate(gate *ratelimit.Gate) ClientOption {
	return func(c *Client) {
		if gate != nil {
			c.gate = gate
		}
	}
}

// WithRetry sets how many times a transient failure is retried and the
// delay before the first retry; each further retry doubles it.
func WithRetry(maxRetries int, baseBackoff time.Duration) ClientOption {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if baseBackoff >= 0 {
			c.baseBackoff = baseBackoff
		}
	}
}

// WithSleeper replaces how the client waits between retries.
func WithSleeper(sleep Sleeper) ClientOption {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogger sets the logger used for retry and degradation events.
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// NewClient creates a new wiki API client.
func NewClient(options ...ClientOption) (*Client, error) {
	hc := httpx.New(httpx.DefaultTimeout)
	hc.UserAgent = DefaultUserAgent

	var client = &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  hc,
		header:      http.Header{},
		gate:        ratelimit.Shared(),
		maxRetries:  DefaultMaxRetries,
		baseBackoff: DefaultBaseBackoff,
		sleep:       sleepContext,
		log:         logrus.StandardLogger(),
	}
	client.header.Set("User-Agent", DefaultUserAgent)
	client.header.Set("Accept", "application/json")
	for _, option := range options {
		option(client)
	}

	u, err := url.Parse(client.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", client.baseURL)
	}
	client.log = client.log.WithField("component", "wiki")
	return client, nil
}

// ClearMappingCache forgets the memoized item mapping so the next
// GetMapping goes back to the network.
func (c *Client) ClearMappingCache() {
	c.mapping.Reset()
}

// endpoint joins path to the base URL and appends query, if any.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
