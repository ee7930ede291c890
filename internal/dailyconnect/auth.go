package dailyconnect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// tokenRe matches the anti-forgery token the site embeds as a script
// variable in the post-login page. This is the single documented extraction
// strategy; if the markup changes, only this pattern moves.
var tokenRe = regexp.MustCompile(`var\s+__srf_token__\s*=\s*'([^']+)'`)

// Markers of a rejected login. The site answers 200 with an error page
// rather than a distinct status, so classification is by body content.
var (
	credentialMarkers = []string{"invalid email or password", "incorrect password", "unknown user", "invalid login"}
	lockoutMarkers    = []string{"captcha", "account locked", "too many attempts", "temporarily disabled"}
)

// Login submits the credentials as a form POST and extracts the anti-forgery
// token from the response HTML. Session cookies are captured by the client's
// jar as a side effect of the request.
//
// Transient failures (network errors, 5xx, missing token on an otherwise
// healthy page) are retried with the executor's backoff; credential
// rejections and lockouts fail immediately since retrying cannot help.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	form := url.Values{
		"username": {c.email},
		"password": {c.password},
	}

	var sess *Session
	err := retry.Do(ctx, newBackoff(c.retryBase, c.maxAttempts), func(ctx context.Context) error {
		req, err := c.formRequest(ctx, "/Cmd?cmd=UserAuth", form)
		if err != nil {
			return fmt.Errorf("login: build request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("login request failed", "error", err)
			return retry.RetryableError(fmt.Errorf("login: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(&StatusError{Op: "login", Code: resp.StatusCode})
		}
		// The site answers 200 or a redirect on success depending on the
		// account's landing page setting.
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
			io.Copy(io.Discard, resp.Body)
			return &StatusError{Op: "login", Code: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("login: read body: %w", err))
		}

		if err := classifyLoginFailure(body); err != nil {
			return err
		}

		token := extractToken(body)
		if token == "" {
			// Could be a transient half-rendered page or changed markup;
			// worth one more look before surfacing.
			return retry.RetryableError(&TokenError{Preview: sanitizePreview(body)})
		}

		sess = &Session{Token: token, Created: time.Now()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("login succeeded", "session_created", sess.Created)
	return sess, nil
}

// extractToken pulls the anti-forgery token out of the login response HTML.
// Returns "" when the marker is absent.
func extractToken(body []byte) string {
	// Flatten line endings so the marker matches regardless of how the
	// page is wrapped.
	flat := strings.ReplaceAll(string(body), "\r\n", " ")
	m := tokenRe.FindStringSubmatch(flat)
	if m == nil {
		return ""
	}
	return m[1]
}

// classifyLoginFailure scans the response body for known rejection markers.
// Returns nil when none are present.
func classifyLoginFailure(body []byte) error {
	lower := strings.ToLower(string(body))
	for _, marker := range credentialMarkers {
		if strings.Contains(lower, marker) {
			return ErrInvalidCredentials
		}
	}
	for _, marker := range lockoutMarkers {
		if strings.Contains(lower, marker) {
			return ErrAccountLocked
		}
	}
	return nil
}
