package dailyconnect

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrInvalidCredentials means the site rejected the email/password pair.
	// Retrying without new credentials is pointless.
	ErrInvalidCredentials = errors.New("dailyconnect: invalid credentials")

	// ErrAccountLocked means the login page showed a lockout or challenge
	// marker (CAPTCHA, too many attempts) instead of a normal response.
	ErrAccountLocked = errors.New("dailyconnect: account locked or challenge required")

	// ErrSessionExpired means the server answered with a 401 or a redirect
	// back to the login page. The caller should re-authenticate once and
	// retry; the executor never retries this itself.
	ErrSessionExpired = errors.New("dailyconnect: session expired")

	// ErrNotAuthenticated means a fetcher was called without a valid session.
	ErrNotAuthenticated = errors.New("dailyconnect: not authenticated")

	// ErrNotFound means the requested resource (e.g. a photo ID) does not exist.
	ErrNotFound = errors.New("dailyconnect: not found")
)

// TokenError reports that the login response did not contain the expected
// anti-forgery token marker. Preview holds a sanitized slice of the response
// body for diagnosis; it never contains credentials.
type TokenError struct {
	Preview string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("dailyconnect: anti-forgery token not found in login response (preview: %q)", e.Preview)
}

// ValidationError reports a response that arrived but failed shape checks:
// empty body, malformed JSON, or a payload missing required fields. It is
// scoped to a single resource and never aborts a whole refresh cycle.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dailyconnect: %s: invalid response: %s", e.Op, e.Reason)
}

// StatusError reports a non-success HTTP status not otherwise classified.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dailyconnect: %s: unexpected status %d", e.Op, e.Code)
}

const previewLimit = 200

// sanitizePreview collapses a response body into a short single-line preview
// safe to log: control characters removed, whitespace collapsed, truncated.
func sanitizePreview(body []byte) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range string(body) {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
		if b.Len() >= previewLimit {
			break
		}
	}
	return strings.TrimSpace(b.String())
}
