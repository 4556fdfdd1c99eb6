// Package adminclient is osqueryctl's HTTP client for a running
// watchdog's admin endpoint (SPEC_FULL §4.7), grounded on
// pkg/agent/client.go's thin JSON-over-HTTP style.
package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pathcl/osquery/internal/watchdog"
	"github.com/pathcl/osquery/pkg/retry"
)

// Client talks to a watchdog's localhost-only admin HTTP server.
type Client struct {
	addr       string
	httpClient *http.Client
}

// New constructs a Client for the admin server at addr (host:port).
func New(addr string) *Client {
	return &Client{
		addr:       addr,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// statusError records a non-200 response from the admin endpoint.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("admin endpoint returned %d: %s", e.code, e.body)
}

// transient reports whether the response is worth retrying: a 5xx
// means the endpoint itself is failing (the respawning worker's state
// mid-transition can surface as a handler error), while any 4xx is a
// client-side problem that a retry cannot fix.
func (e *statusError) transient() bool {
	return e.code >= 500
}

// pollRetryable decides whether a failed /status call is worth
// retrying. A decoded statusError defers to its own classification; a
// request that never got a response at all (connection refused, the
// admin listener not bound yet) is the expected shape of "the
// watchdog is between respawn attempts" and is always worth retrying.
func pollRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.transient()
	}
	return true
}

// Status fetches and decodes /status, retrying while the watchdog
// looks like it is mid-respawn rather than permanently broken.
func (c *Client) Status() (*watchdog.Snapshot, error) {
	var snap watchdog.Snapshot
	cfg := retry.Config{
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		Retryable:      pollRetryable,
	}
	err := retry.Do(context.Background(), cfg, func() error {
		resp, err := c.httpClient.Get("http://" + c.addr + "/status")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return &statusError{code: resp.StatusCode, body: string(body)}
		}
		return json.NewDecoder(resp.Body).Decode(&snap)
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Healthz reports whether the watchdog's control loop is alive.
func (c *Client) Healthz() (bool, error) {
	resp, err := c.httpClient.Get("http://" + c.addr + "/healthz")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK, nil
}
