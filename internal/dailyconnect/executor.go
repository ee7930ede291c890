package dailyconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultMaxAttempts = 3
	defaultRetryBase   = 2 * time.Second
)

// payload is a fully read and validated response. The body is read exactly
// once off the wire; every consumer of the same request sees these bytes,
// never a drained stream.
type payload struct {
	Status int
	Header http.Header
	Body   []byte
}

// newBackoff returns the executor's retry schedule: exponential delays
// starting at base (2s, 4s, 8s, ...), with maxAttempts-1 retries after the
// first attempt.
func newBackoff(base time.Duration, maxAttempts int) retry.Backoff {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(base))
}

// do executes one logical request with retry and response validation.
// build is called once per attempt so each try gets a fresh request body.
//
// Transient failures (network errors, 5xx) are retried with backoff.
// A 401 or a redirect back to the login page is surfaced as ErrSessionExpired
// without retrying: the coordinator decides whether to re-authenticate.
// Other non-success statuses and empty bodies fail immediately.
func (c *Client) do(ctx context.Context, op string, build func(context.Context) (*http.Request, error)) (*payload, error) {
	var p *payload
	attempt := 0

	err := retry.Do(ctx, newBackoff(c.retryBase, c.maxAttempts), func(ctx context.Context) error {
		attempt++

		req, err := build(ctx)
		if err != nil {
			return fmt.Errorf("%s: build request: %w", op, err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("request failed", "op", op, "attempt", attempt, "error", err)
			return retry.RetryableError(fmt.Errorf("%s: %w", op, err))
		}

		if expired := classifySessionExpiry(resp); expired {
			drain(resp)
			return ErrSessionExpired
		}

		if resp.StatusCode >= 500 {
			drain(resp)
			c.logger.Warn("server error", "op", op, "attempt", attempt, "status", resp.StatusCode)
			return retry.RetryableError(&StatusError{Op: op, Code: resp.StatusCode})
		}
		if resp.StatusCode != http.StatusOK {
			drain(resp)
			return &StatusError{Op: op, Code: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%s: read body: %w", op, err))
		}
		if len(bytes.TrimSpace(body)) == 0 {
			return &ValidationError{Op: op, Reason: "empty response body"}
		}

		p = &payload{Status: resp.StatusCode, Header: resp.Header, Body: body}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// classifySessionExpiry reports whether a response means the session is no
// longer valid: an explicit 401, or a redirect back to the login page.
func classifySessionExpiry(resp *http.Response) bool {
	if resp.StatusCode == http.StatusUnauthorized {
		return true
	}
	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		loc := strings.ToLower(resp.Header.Get("Location"))
		return strings.Contains(loc, "login") || strings.Contains(loc, "signin")
	}
	return false
}

// decodeJSON parses a payload into v, converting decode failures into
// ValidationError so malformed bodies surface as a single resource's
// failure rather than a crash.
func decodeJSON(op string, p *payload, v any) error {
	if err := json.Unmarshal(p.Body, v); err != nil {
		return &ValidationError{Op: op, Reason: "malformed JSON: " + err.Error()}
	}
	return nil
}
