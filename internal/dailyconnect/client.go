package dailyconnect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://www.dailyconnect.com"
	defaultTimeout = 30 * time.Second

	// DailyConnect serves a different (reduced) login page to clients it
	// does not recognize as browsers.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"
)

// Config holds client configuration.
type Config struct {
	Email    string
	Password string
	BaseURL  string        // defaults to the production site
	Timeout  time.Duration // per-request, defaults to 30s
	Logger   *slog.Logger

	// Retry policy for the request executor. Zero values mean 3 attempts
	// with a 2s exponential base (2s, 4s between attempts).
	MaxAttempts int
	RetryBase   time.Duration
}

// Client talks to DailyConnect's form-based login and its undocumented JSON
// endpoints. It owns the HTTP transport (connection pool, cookie jar,
// timeouts) but no session state: sessions are created by Login and passed
// back in by callers, so concurrent refresh cycles stay testable.
type Client struct {
	http     *http.Client
	baseURL  string
	email    string
	password string
	logger   *slog.Logger

	// Retry policy for the request executor. Overridable in tests.
	maxAttempts int
	retryBase   time.Duration
}

// Session is opaque authenticated state: the anti-forgery token extracted at
// login, with the matching cookies held in the client's jar. It is shared
// read-only across concurrent fetches; only Login creates or replaces it.
type Session struct {
	Token   string
	Created time.Time
}

// Valid reports whether the session can be used for fetches.
func (s *Session) Valid() bool {
	return s != nil && s.Token != ""
}

// New creates a Client. It returns an error only if the cookie jar cannot
// be constructed.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
			// Redirects are classified, not followed: a redirect to the
			// login page means the session expired.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		email:       cfg.Email,
		password:    cfg.Password,
		logger:      cfg.Logger,
		maxAttempts: cfg.MaxAttempts,
		retryBase:   cfg.RetryBase,
	}, nil
}

// formRequest builds a POST with a URL-encoded form body and browser-style
// headers. Each retry attempt builds a fresh request so the body is never
// consumed twice.
func (c *Client) formRequest(ctx context.Context, path string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return req, nil
}

// getRequest builds a GET with browser-style headers.
func (c *Client) getRequest(ctx context.Context, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// drain releases a response so its connection returns to the pool.
func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()
}
