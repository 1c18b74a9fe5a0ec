// Package mkkm is a thin client for the mKKM ticket-contract API.
package mkkm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const (
	DefaultBaseURL = "https://api.kkm.krakow.pl"

	userAgent        = "mobileKKM/contract_proxy"
	contractPathTmpl = "/api/v1/mkkm/tickets/%s/contract"
)

// Envelope is the upstream contract response body.
type Envelope struct {
	Aztec   string `json:"aztec"`
	Message string `json:"message,omitempty"`
}

// APIError carries a non-success upstream status and its message field,
// both of which must reach the client untouched.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mkkm: upstream returned %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	http    *http.Client
	baseURL *url.URL
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

func New(opts ...Option) *Client {
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchContract issues one GET for the ticket's contract record. The
// credential is forwarded verbatim as the Authorization header. No retries.
func (c *Client) FetchContract(ctx context.Context, ticketID, credential string) (*Envelope, error) {
	u := *c.baseURL
	u.Path = fmt.Sprintf(contractPathTmpl, ticketID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("mkkm: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mkkm: fetch contract: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("mkkm: decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if env.Aztec == "" {
		// the source of truth is malformed
		return nil, &APIError{
			StatusCode: http.StatusInternalServerError,
			Message:    "upstream contract is missing the aztec payload",
		}
	}

	return &env, nil
}
