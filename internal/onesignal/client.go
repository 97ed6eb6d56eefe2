package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for OneSignal client failures.
var (
	ErrUnreachable     = errors.New("onesignal unreachable")
	ErrTimeout         = errors.New("onesignal request timeout")
	ErrRequestFailed   = errors.New("onesignal request failed")
	ErrInvalidResponse = errors.New("onesignal returned invalid response")
)

const maxResponseBytes = 10 << 20

// Client is the interface for the OneSignal REST API.
type Client interface {
	CreateSegment(ctx context.Context, appID string, seg Segment) (json.RawMessage, error)
	SendNotification(ctx context.Context, n Notification) (json.RawMessage, error)
	ListUsers(ctx context.Context, appID string) ([]json.RawMessage, error)
}

// APIError is a non-2xx answer from OneSignal.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrRequestFailed, e.StatusCode, e.Message())
}

// Message is the provider's own error text, or the HTTP status text when the
// body carried none.
func (e *APIError) Message() string {
	if len(e.Messages) == 0 {
		return http.StatusText(e.StatusCode)
	}
	return strings.Join(e.Messages, "; ")
}

func (e *APIError) Is(target error) bool {
	return target == ErrRequestFailed
}

// HTTPClient implements Client using OneSignal's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option customises an HTTPClient.
type Option func(*HTTPClient)

// WithTransport replaces the underlying round tripper (tracing, recording).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *HTTPClient) {
		c.client.Transport = rt
	}
}

// NewHTTPClient creates a new OneSignal HTTP client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) CreateSegment(ctx context.Context, appID string, seg Segment) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/apps/%s/segments", url.PathEscape(appID)), seg)
}

func (c *HTTPClient) SendNotification(ctx context.Context, n Notification) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/notifications", n)
}

// ListUsers returns the raw user records for an app. A response without a
// users key yields an empty slice.
func (c *HTTPClient) ListUsers(ctx context.Context, appID string) ([]json.RawMessage, error) {
	raw, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/apps/%s/users", url.PathEscape(appID)), nil)
	if err != nil {
		return nil, err
	}

	var resp usersResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding users: %v", ErrInvalidResponse, err)
	}
	if resp.Users == nil {
		return []json.RawMessage{}, nil
	}
	return resp.Users, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Messages: parseErrorMessages(payload)}
	}

	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: body is not JSON", ErrInvalidResponse)
	}
	return json.RawMessage(payload), nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if req.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Basic "+c.apiKey)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// parseErrorMessages understands the error shapes OneSignal returns:
// {"errors":["..."]}, {"errors":[{"title":"..."}]} and {"errors":{"field":[...]}}.
func parseErrorMessages(body []byte) []string {
	var env struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Errors) == 0 {
		if s := strings.TrimSpace(string(body)); s != "" && !strings.HasPrefix(s, "{") {
			if len(s) > 512 {
				s = s[:512]
			}
			return []string{s}
		}
		return nil
	}

	var list []string
	if json.Unmarshal(env.Errors, &list) == nil {
		return list
	}

	var titled []struct {
		Title string `json:"title"`
		Code  string `json:"code"`
	}
	if json.Unmarshal(env.Errors, &titled) == nil {
		msgs := make([]string, 0, len(titled))
		for _, e := range titled {
			if e.Title != "" {
				msgs = append(msgs, e.Title)
			} else if e.Code != "" {
				msgs = append(msgs, e.Code)
			}
		}
		return msgs
	}

	var byField map[string]json.RawMessage
	if json.Unmarshal(env.Errors, &byField) == nil {
		msgs := make([]string, 0, len(byField))
		for field, v := range byField {
			msgs = append(msgs, fmt.Sprintf("%s: %s", field, string(v)))
		}
		return msgs
	}

	return []string{string(env.Errors)}
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
