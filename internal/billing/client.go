// Package billing talks to the external subscription platform: it fetches
// subscriber records, decodes webhook payloads, and knows the platform's
// identifier formats. It holds no state between calls.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrUnavailable wraps transport failures, timeouts and 5xx answers.
	ErrUnavailable = errors.New("billing platform unavailable")
	// ErrSubscriberNotFound is returned when the platform has no record.
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

// DefaultTimeout bounds every subscriber lookup when none is configured.
const DefaultTimeout = 5 * time.Second

// Client is a read-only subscriber lookup client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a client for baseURL authenticating with apiKey. Every
// request is bounded by timeout (DefaultTimeout when <= 0).
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// subscriberEnvelope is the response body of GET /subscribers/{id}.
type subscriberEnvelope struct {
	Subscriber Subscriber `json:"subscriber"`
}

// GetSubscriber fetches the subscriber record for id. The id is path-escaped
// since anonymous identifiers contain reserved characters.
func (c *Client) GetSubscriber(ctx context.Context, id string) (*Subscriber, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrSubscriberNotFound
	}
	endpoint := c.baseURL + "/subscribers/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrSubscriberNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: API error (%d): %s", ErrUnavailable, resp.StatusCode, truncate(string(body), 256))
	}

	var env subscriberEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode subscriber: %v", ErrUnavailable, err)
	}
	return &env.Subscriber, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
