// Package spotify is the metadata collaborator: a small Spotify Web API
// client with response caching and retries, and a resolver that turns
// queries into songs.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/RobertvdLeeuw/spotdl-lean/internal/models"
)

const (
	DefaultBaseURL  = "https://api.spotify.com/v1"
	DefaultTokenURL = "https://accounts.spotify.com/api/token"
)

var (
	// ErrMissingCredentials is returned when neither a client nor a client
	// id and secret pair was supplied.
	ErrMissingCredentials = errors.New("spotify client id and secret, or an authenticated client, are required")
	ErrNotFound           = errors.New("spotify resource not found")
	ErrNoResults          = errors.New("no search results")
)

// StatusError is an unexpected HTTP status from the Web API.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spotify: %s returned %d: %s", e.URL, e.Code, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Options configures a Client. HTTPClient takes precedence over the client
// credentials pair and must already add authorization to its requests.
type Options struct {
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	MaxRetries   int
	RetryBackoff time.Duration
	NoCache      bool
	CacheTTL     time.Duration
	Proxy        string

	BaseURL  string
	TokenURL string
	Logger   *log.Logger
}

// Client performs cached GET requests against the Spotify Web API.
type Client struct {
	http       *http.Client
	baseURL    string
	maxRetries int
	backoff    time.Duration
	cache      *responseCache // nil when caching is disabled
	logger     *log.Logger
}

// New builds a client from opts.
func New(opts Options) (*Client, error) {
	l := opts.Logger
	if l == nil {
		l = log.Default()
	}
	l = l.WithPrefix("spotify")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		if opts.ClientID == "" || opts.ClientSecret == "" {
			return nil, ErrMissingCredentials
		}
		transport, err := NewTransport(opts.Proxy)
		if err != nil {
			return nil, err
		}
		tokenURL := opts.TokenURL
		if tokenURL == "" {
			tokenURL = DefaultTokenURL
		}
		creds := &clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     tokenURL,
		}
		base := &http.Client{Transport: transport, Timeout: 30 * time.Second}
		httpClient = creds.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	}

	c := &Client{
		http:       httpClient,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
		logger:     l,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	if c.backoff <= 0 {
		c.backoff = 500 * time.Millisecond
	}
	if !opts.NoCache {
		cache, err := newResponseCache(opts.CacheTTL, l)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}
	return c, nil
}

// CacheEntries returns the cached single-track responses, which are the
// only ones worth persisting between runs.
func (c *Client) CacheEntries() map[string]models.CacheEntry {
	if c.cache == nil {
		return map[string]models.CacheEntry{}
	}
	return c.cache.entries()
}

// LoadCache seeds the response cache with previously persisted entries.
// Entries already older than the cache ttl are ignored.
func (c *Client) LoadCache(entries map[string]models.CacheEntry) {
	if c.cache == nil {
		return
	}
	c.cache.load(entries)
	c.logger.Debug("loaded metadata cache", "entries", len(entries))
}

// Close releases the response cache.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.close()
	}
}

func (c *Client) requestURL(endpoint string, params url.Values) string {
	u := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		u = c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	}
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + params.Encode()
	}
	return u
}

// get fetches endpoint (relative to the base URL, or absolute for paging
// links) and returns the raw body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := c.requestURL(endpoint, params)
	if c.cache == nil {
		return c.fetchWithRetry(ctx, u)
	}
	return c.cache.getOrFetch(u, func() ([]byte, error) {
		return c.fetchWithRetry(ctx, u)
	})
}

func (c *Client) fetchWithRetry(ctx context.Context, u string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, err := c.fetch(ctx, u)
		if err == nil {
			return body, nil
		}
		if attempt >= c.maxRetries || !c.shouldRetry(ctx, err) {
			return nil, err
		}
		c.logger.Debug("retrying request", "url", u, "attempt", attempt, "err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
}

func (c *Client) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.retryable()
	}
	return !errors.Is(err, ErrNotFound)
}

func (c *Client) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &StatusError{Code: resp.StatusCode, URL: u, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
