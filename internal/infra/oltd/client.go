// Package oltd talks to the device cloud API that hosts the indoor sensor
// and the window actuator.
package oltd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra"
	"github.com/git-commit/this-building-rocks-assistant/internal/observe"
)

const maxBodyBytes = 1 << 20

// StatusError is returned for unexpected non-2xx responses that have no
// dedicated sentinel.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device API error %d: %s", e.StatusCode, e.Body)
}

type Option func(*Client)

// WithTransport sets the base transport, e.g. a SOCKS dialer. It is
// wrapped for tracing.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = otelhttp.NewTransport(rt) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client performs single, unretried GET and PATCH calls against the
// device API. Every request carries the bearer token it was built with.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	metrics    *observe.Metrics
}

func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// GetDevice returns the raw state document of a device.
func (c *Client) GetDevice(ctx context.Context, deviceID string) (json.RawMessage, error) {
	path := "/devices/" + url.PathEscape(deviceID) + "/state"
	body, err := c.doRequest(ctx, "get", http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting device %s: %w", deviceID, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("getting device %s: %w: body is not JSON", deviceID, domain.ErrMalformedResponse)
	}
	return json.RawMessage(body), nil
}

func (c *Client) PatchDevice(ctx context.Context, req domain.DeviceMutationRequest) error {
	body, err := json.Marshal(req.Patch)
	if err != nil {
		return fmt.Errorf("marshaling patch: %w", err)
	}

	path := "/devices/" + url.PathEscape(req.DeviceID)
	if _, err := c.doRequest(ctx, "patch", http.MethodPatch, path, body); err != nil {
		return fmt.Errorf("patching device %s: %w", req.DeviceID, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, body []byte) (respBody []byte, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordDeviceRequest(ctx, op, domain.DeviceErrorKind(err), time.Since(start).Seconds())
	}()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", domain.ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: status %d", domain.ErrDeviceNotFound, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return respBody, nil
}

// Retryable reports whether a read may succeed if repeated. Auth and
// not-found failures are permanent.
func Retryable(err error) bool {
	if errors.Is(err, domain.ErrNetwork) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return infra.IsRetryableHTTPStatus(se.StatusCode)
	}
	return false
}
