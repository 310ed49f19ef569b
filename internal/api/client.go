package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPError is returned for every non-2xx response. Body holds the raw
// response text so callers can surface the backend's own message.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("Request failed: %d", e.StatusCode)
}

// StatusCode extracts the HTTP status from err, or 0 when err did not come
// from a response.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithCircuitBreaker makes the client fail fast with gobreaker.ErrOpenState
// after consecutive transport errors or 5xx responses. Requests are never
// retried.
func WithCircuitBreaker(settings gobreaker.Settings) Option {
	return func(client *Client) {
		if settings.IsSuccessful == nil {
			settings.IsSuccessful = func(err error) bool {
				return err == nil || (StatusCode(err) > 0 && StatusCode(err) < http.StatusInternalServerError)
			}
		}
		client.breaker = gobreaker.NewCircuitBreaker[[]byte](settings)
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends one JSON request and decodes the response into out when it is not
// nil. An empty token sends no Authorization header.
func (c *Client) Do(ctx context.Context, method, path string, body any, token string, out any) error {
	var data []byte
	var err error
	if c.breaker != nil {
		data, err = c.breaker.Execute(func() ([]byte, error) {
			return c.roundTrip(ctx, method, path, body, token)
		})
	} else {
		data, err = c.roundTrip(ctx, method, path, body, token)
	}
	if err != nil {
		return err
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response failed: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, token string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s request failed: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request failed: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response failed: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
