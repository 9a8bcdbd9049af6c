// Package probe issues the HTTP interactions the check batteries require:
// single GETs, POST searches, transaction calls, and pagination chains. It
// records status, headers, and parsed-or-raw body for every call, retrying
// transient network failures under an injectable policy.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	sv "github.com/jisantuc/stac-api-validator"
	"github.com/jisantuc/stac-api-validator/pkg/logger"
	"github.com/jisantuc/stac-api-validator/stac"
)

// maxBodyBytes bounds response bodies so a misbehaving deployment cannot
// exhaust memory.
const maxBodyBytes = 32 << 20

// Response records one HTTP interaction.
type Response struct {
	// URL is the final request URL, query included.
	URL string

	// StatusCode is the HTTP status, 0 when the call never completed.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the raw response body.
	Body []byte

	// Duration is the wall time of the call, retries included.
	Duration time.Duration
}

// ContentType returns the response Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// JSON decodes the body into a map.
func (r *Response) JSON() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(r.Body, &m); err != nil {
		return nil, fmt.Errorf("response from %s is not JSON: %w", r.URL, err)
	}
	return m, nil
}

// Document decodes the body as a STAC document.
func (r *Response) Document() (*stac.Document, error) {
	return stac.ParseDocument(r.Body)
}

// Client executes probes against a deployment.
type Client struct {
	httpClient *http.Client
	policy     RetryPolicy
	userAgent  string
	metrics    *sv.Metrics
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(policy RetryPolicy) ClientOption {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithTimeout bounds each HTTP call.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMetrics records per-request metrics.
func WithMetrics(m *sv.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a probe client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		policy:     DefaultRetryPolicy(),
		userAgent:  "stac-api-validator/" + sv.Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET with optional query parameters and Accept header.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, accept string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &sv.FetchError{URL: rawURL, Err: err}
	}
	if len(query) > 0 {
		base := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				base.Add(k, v)
			}
		}
		u.RawQuery = base.Encode()
	}

	return c.do(ctx, http.MethodGet, u.String(), nil, "", accept)
}

// PostJSON issues a POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, rawURL, body, "application/json", "")
}

// PutJSON issues a PUT with a JSON body.
func (c *Client) PutJSON(ctx context.Context, rawURL string, body []byte) (*Response, error) {
	return c.do(ctx, http.MethodPut, rawURL, body, "application/json", "")
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, rawURL, nil, "", "")
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, contentType, accept string) (*Response, error) {
	start := time.Now()
	attempts := 0

	var resp *Response
	operation := func() error {
		attempts++

		req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			// Transport failure: transient, eligible for retry.
			return err
		}
		defer res.Body.Close()

		data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
		if err != nil {
			return err
		}

		resp = &Response{
			URL:        rawURL,
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       data,
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(c.policy.backOff(), ctx))
	duration := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordRequest(duration, attempts > 1, err != nil)
	}

	if err != nil {
		logger.Debug("%s %s failed after %d attempt(s): %v", method, rawURL, attempts, err)
		return nil, &sv.FetchError{URL: rawURL, Err: err}
	}
	logger.Debug("%s %s -> %d (%s)", method, rawURL, resp.StatusCode, duration.Round(time.Millisecond))

	resp.Duration = duration
	return resp, nil
}
