// Package assistant provides a client for the OpenAI Assistants API
// (threads, messages and runs).
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/relay/internal/metrics"
)

// DefaultBetaHeader is the protocol version sent with thread and run calls.
const DefaultBetaHeader = "assistants=v2"

// Client is the Assistants API client.
type Client struct {
	baseURL     string
	apiKey      string
	assistantID string
	betaHeader  string
	httpClient  *http.Client
	log         zerolog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBetaHeader overrides the OpenAI-Beta header value.
func WithBetaHeader(value string) Option {
	return func(c *Client) {
		if value != "" {
			c.betaHeader = value
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new Assistants API client. A zero timeout leaves the
// transport default in place.
func NewClient(baseURL, apiKey, assistantID string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		assistantID: assistantID,
		betaHeader:  DefaultBetaHeader,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is returned when the upstream answers with a non-success status
// or with a body that does not have the expected shape.
type APIError struct {
	Message    string
	StatusCode int
	// Details is the parsed upstream payload, passed through to callers.
	Details json.RawMessage
}

func (e *APIError) Error() string {
	return e.Message
}

// errorResponse is the upstream error envelope.
type errorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
	} `json:"error"`
}

// Call sends one request to the upstream API and returns its JSON payload.
// body is JSON-encoded when non-nil. beta adds the OpenAI-Beta header that
// the thread and run endpoints require. Bodies that are not valid JSON are
// wrapped as {"raw": "<text>"}.
func (c *Client) Call(ctx context.Context, method, path string, body interface{}, beta bool) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal request")
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	c.setHeaders(httpReq, body != nil, beta)

	endpoint := endpointLabel(path)
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.ObserveUpstream(endpoint, method, 0, time.Since(start))
		return nil, errors.Wrapf(err, "failed to send %s %s", method, endpoint)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	metrics.ObserveUpstream(endpoint, method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	c.log.Debug().
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("upstream call")

	payload := parsePayload(respBody)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, payload)
	}
	return payload, nil
}

// setHeaders sets common request headers.
func (c *Client) setHeaders(req *http.Request, hasBody, beta bool) {
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if beta {
		req.Header.Set("OpenAI-Beta", c.betaHeader)
	}
}

func parsePayload(body []byte) json.RawMessage {
	if len(bytes.TrimSpace(body)) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(body)})
	return wrapped
}

func newAPIError(status int, payload json.RawMessage) *APIError {
	msg := fmt.Sprintf("upstream request failed (%d)", status)
	var errResp errorResponse
	if err := json.Unmarshal(payload, &errResp); err == nil && errResp.Error != nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}
	return &APIError{
		Message:    msg,
		StatusCode: status,
		Details:    payload,
	}
}

// endpointLabel collapses a request path into a low-cardinality name.
func endpointLabel(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch len(parts) {
	case 1:
		return parts[0]
	case 3:
		return parts[2]
	case 4:
		return strings.TrimSuffix(parts[2], "s")
	default:
		return "other"
	}
}
