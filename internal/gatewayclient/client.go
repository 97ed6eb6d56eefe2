// Package gatewayclient talks to a running pushconsole server. Its Client
// satisfies gateway.Invoker so a lifecycle.Controller can drive a remote
// gateway exactly like an in-process one.
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/pushconsole/internal/gateway"
	"github.com/kiranshivaraju/pushconsole/pkg/models"
)

var (
	ErrUnreachable  = errors.New("pushconsole server unreachable")
	ErrUnauthorized = errors.New("api key rejected")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrRequest      = errors.New("pushconsole request failed")
)

// Error codes written by the server's error envelope.
const (
	codeInvalidAction  = "INVALID_ACTION"
	codeInvalidRequest = "INVALID_REQUEST"
	codeNotConfigured  = "NOT_CONFIGURED"
	codeUpstream       = "UPSTREAM_ERROR"
)

// Config configures a Client.
type Config struct {
	ServerURL string
	APIKey    string
	Timeout   time.Duration
}

// Client calls the pushconsole HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", cfg.ServerURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Invoke posts req to /api/notifications and returns the provider JSON.
// Server error envelopes are mapped back onto the gateway's error values.
func (c *Client) Invoke(ctx context.Context, req gateway.Request) (json.RawMessage, error) {
	body, status, err := c.do(ctx, http.MethodPost, "/api/notifications", req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, invokeError(req.Action, status, body)
	}
	return json.RawMessage(body), nil
}

// Tenants returns the server's tenant catalogue.
func (c *Client) Tenants(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := c.getData(ctx, "/api/v1/tenants", &tenants); err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	return tenants, nil
}

// Dispatches returns the most recent audited gateway calls.
func (c *Client) Dispatches(ctx context.Context, limit int) ([]models.Dispatch, error) {
	path := "/api/v1/dispatches"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []models.Dispatch
	if err := c.getData(ctx, path, &out); err != nil {
		return nil, fmt.Errorf("listing dispatches: %w", err)
	}
	return out, nil
}

// Health returns the server's health report.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getData(ctx, "/api/v1/health", &out); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	return out, nil
}

func (c *Client) getData(ctx context.Context, path string, v any) error {
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return statusError(status, body)
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrRequest, err)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: decoding data: %v", ErrRequest, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, reqBody any) ([]byte, int, error) {
	var reader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading response: %v", ErrUnreachable, err)
	}
	return body, resp.StatusCode, nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			UpstreamStatus int `json:"upstream_status"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(body []byte) (code, message string, upstreamStatus int) {
	var env errorEnvelope
	if json.Unmarshal(body, &env) != nil {
		return "", strings.TrimSpace(string(body)), 0
	}
	return env.Error.Code, env.Error.Message, env.Error.Details.UpstreamStatus
}

func invokeError(action gateway.Action, status int, body []byte) error {
	code, message, upstreamStatus := decodeError(body)
	switch code {
	case codeInvalidAction:
		return fmt.Errorf("%w: %s", gateway.ErrInvalidAction, message)
	case codeNotConfigured:
		return gateway.ErrConfiguration
	case codeUpstream:
		return &gateway.UpstreamError{
			Action:     action,
			StatusCode: upstreamStatus,
			Message:    message,
			Err:        ErrRequest,
		}
	}
	return statusError(status, body)
}

func statusError(status int, body []byte) error {
	code, message, _ := decodeError(body)
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, message)
	}
	if code == codeInvalidRequest {
		return fmt.Errorf("%w: invalid request: %s", ErrRequest, message)
	}
	return fmt.Errorf("%w: status %d: %s", ErrRequest, status, message)
}

// Compile-time check that Client implements gateway.Invoker.
var _ gateway.Invoker = (*Client)(nil)
