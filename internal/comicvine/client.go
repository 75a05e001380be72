package comicvine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"comicshelf/internal/logging"
)

// StatusRateLimited is Comic Vine's "hourly limit reached" response code.
const StatusRateLimited = 420

// Client performs single GET calls against the Comic Vine API. Every failure
// is logged and reported as false; nothing is retried.
type Client struct {
	apiKey     string
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *Breaker
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger used for call failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUserAgent sets the User-Agent header. Comic Vine rejects empty agents.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRequestsPerSecond paces outgoing calls. Zero or less disables pacing.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithBreaker shares a rate-limit latch between clients.
func WithBreaker(b *Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

// New creates a Comic Vine client.
func New(apiKey, baseURL string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("comic vine api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("comic vine base url required")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  "comicshelf/1.0",
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Inf, 1),
		breaker:    &Breaker{},
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "comicvine"))
	return c, nil
}

// Breaker exposes the client's rate-limit latch.
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Call GETs endpoint (a path below the base URL, e.g. "/search/") with params
// plus the api key and format, and decodes the JSON body into out. It reports
// false when the breaker is tripped (no request is made), on transport errors,
// non-200 responses, undecodable bodies, or an error status in the envelope.
// A 420 response trips the breaker.
func (c *Client) Call(ctx context.Context, endpoint string, params url.Values, out any) bool {
	logger := c.logger.With(slog.String("endpoint", endpoint))

	if c.breaker.Tripped() {
		logger.Warn("comic vine rate limit reached; skipping call")
		return false
	}
	if err := c.limiter.Wait(ctx); err != nil {
		logger.Warn("comic vine call abandoned", slog.Any("error", err))
		return false
	}

	q := url.Values{}
	maps.Copy(q, params)
	q.Set("api_key", c.apiKey)
	q.Set("format", "json")

	endpointURL, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		logger.Error("comic vine url invalid", slog.Any("error", err))
		return false
	}
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		logger.Error("build comic vine request", slog.Any("error", err))
		return false
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	logger.Debug("comic vine request", slog.String("query", redacted(q)))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		logger.Warn("comic vine request failed", slog.Duration("latency", latency), slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case StatusRateLimited:
		if c.breaker.Trip() {
			logger.Error("comic vine hourly limit reached; stopping further calls")
		}
		return false
	default:
		logger.Warn("comic vine returned error status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("latency", latency))
		return false
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		logger.Warn("decode comic vine response", slog.Any("error", err))
		return false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Warn("decode comic vine envelope", slog.Any("error", err))
		return false
	}
	if !env.ok() {
		logger.Warn("comic vine reported an error",
			slog.Int("status_code", env.StatusCode),
			slog.String("error", env.Error))
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logger.Warn("decode comic vine results", slog.Any("error", err))
		return false
	}
	return true
}

func redacted(q url.Values) string {
	cp := url.Values{}
	maps.Copy(cp, q)
	if cp.Has("api_key") {
		cp.Set("api_key", "REDACTED")
	}
	return cp.Encode()
}
