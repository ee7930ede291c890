package dailyconnect

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{
		Email:    "parent@example.com",
		Password: "hunter2",
		BaseURL:  baseURL,
		Timeout:  2 * time.Second,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// Keep tests fast; the schedule shape is covered separately.
	c.retryBase = time.Millisecond
	return c
}

func getReq(c *Client, path string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return c.getRequest(ctx, path, nil)
	}
}

func TestBackoffSchedule(t *testing.T) {
	b := newBackoff(2*time.Second, 3)

	want := []time.Duration{2 * time.Second, 4 * time.Second}
	for i, w := range want {
		d, stop := b.Next()
		if stop {
			t.Fatalf("backoff stopped at retry %d", i+1)
		}
		if d != w {
			t.Errorf("retry %d delay = %v, want %v", i+1, d, w)
		}
	}

	// Two retries after the initial attempt exhausts the budget of 3.
	if _, stop := b.Next(); !stop {
		t.Error("backoff did not stop after max retries")
	}
}

func TestBackoffDoubles(t *testing.T) {
	b := newBackoff(2*time.Second, 10)
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		d, stop := b.Next()
		if stop || d != w {
			t.Fatalf("delay %d = %v (stop=%v), want %v", i+1, d, stop, w)
		}
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	p, err := c.do(context.Background(), "test", getReq(c, "/data"))
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if string(p.Body) != `{"ok":true}` {
		t.Errorf("body = %q", p.Body)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.do(context.Background(), "test", getReq(c, "/data"))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	// The surfaced error carries the last underlying cause.
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusInternalServerError {
		t.Errorf("error = %v, want StatusError 500", err)
	}
}

func TestDoEmptyBodyFailsWithoutRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte("  \n "))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.do(context.Background(), "test", getReq(c, "/data"))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (validation failures are not transient)", attempts)
	}
}

func TestDoClassifiesSessionExpiry(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"redirect to login", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/Login?expired=1", http.StatusFound)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts++
				tt.handler(w, r)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL)
			_, err := c.do(context.Background(), "test", getReq(c, "/data"))
			if !errors.Is(err, ErrSessionExpired) {
				t.Fatalf("error = %v, want ErrSessionExpired", err)
			}
			if attempts != 1 {
				t.Errorf("attempts = %d, want 1 (session expiry is not retried here)", attempts)
			}
		})
	}
}

func TestDoUnexpectedStatusFailsImmediately(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	_, err := c.do(context.Background(), "test", getReq(c, "/data"))

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTeapot {
		t.Fatalf("error = %v, want StatusError 418", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDecodeJSONMalformed(t *testing.T) {
	p := &payload{Status: 200, Body: []byte(`{"half":`)}
	var v map[string]any
	err := decodeJSON("test", p, &v)

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}
