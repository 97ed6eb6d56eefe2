// Package gateway is the single action-dispatch entry point in front of the
// push provider. It hides the provider's authentication and endpoint shape
// and normalises success and error results. It holds no state of its own.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/pushconsole/internal/metrics"
	"github.com/kiranshivaraju/pushconsole/internal/onesignal"
)

// Action names accepted by Invoke.
type Action string

const (
	ActionCreateSegment    Action = "create_segment"
	ActionSendNotification Action = "send_notification"
	ActionFetchSubscribers Action = "fetch_subscribers"
)

// Request is the caller → gateway payload. Fields not needed by an action
// are ignored.
type Request struct {
	Action      Action `json:"action"`
	WebsiteName string `json:"websiteName,omitempty"`
	AppID       string `json:"appId,omitempty"`
	Title       string `json:"title,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Invoker is anything that can dispatch a gateway request: the in-process
// Gateway or an HTTP client talking to one.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (json.RawMessage, error)
}

// Gateway forwards requests to OneSignal.
type Gateway struct {
	client     onesignal.Client
	configured bool
	logger     *slog.Logger
}

// New creates a Gateway. An empty apiKey leaves the gateway unconfigured:
// every Invoke then fails with ErrConfiguration without touching client.
func New(apiKey string, client onesignal.Client, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		client:     client,
		configured: apiKey != "" && client != nil,
		logger:     logger,
	}
}

// Configured reports whether a provider credential is present.
func (g *Gateway) Configured() bool { return g.configured }

// Invoke routes req to exactly one provider call. It never retries.
func (g *Gateway) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	if !g.configured {
		metrics.ObserveInvocation(string(req.Action), metrics.OutcomeNotConfigured, 0)
		return nil, ErrConfiguration
	}

	var call func(context.Context) (json.RawMessage, error)
	switch req.Action {
	case ActionCreateSegment:
		call = func(ctx context.Context) (json.RawMessage, error) {
			return g.client.CreateSegment(ctx, req.AppID, onesignal.WebsiteSegment(req.WebsiteName))
		}
	case ActionSendNotification:
		call = func(ctx context.Context) (json.RawMessage, error) {
			return g.client.SendNotification(ctx,
				onesignal.SegmentPush(req.AppID, req.WebsiteName, req.Title, req.Message))
		}
	case ActionFetchSubscribers:
		call = g.fetchSubscribers(req.AppID)
	default:
		metrics.ObserveInvocation("unknown", metrics.OutcomeInvalid, 0)
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}

	start := time.Now()
	result, err := call(ctx)
	elapsed := time.Since(start)
	if err != nil {
		ue := upstreamError(req.Action, err)
		g.logger.Warn("upstream call failed",
			"action", req.Action,
			"app_id", req.AppID,
			"status", ue.StatusCode,
			"error", ue.Message,
		)
		metrics.ObserveInvocation(string(req.Action), metrics.OutcomeUpstreamError, elapsed)
		return nil, ue
	}

	metrics.ObserveInvocation(string(req.Action), metrics.OutcomeOK, elapsed)
	return result, nil
}

// fetchSubscribers re-wraps the provider's user list as {"users":[...]}.
func (g *Gateway) fetchSubscribers(appID string) func(context.Context) (json.RawMessage, error) {
	return func(ctx context.Context) (json.RawMessage, error) {
		users, err := g.client.ListUsers(ctx, appID)
		if err != nil {
			return nil, err
		}
		if users == nil {
			users = []json.RawMessage{}
		}
		b, err := json.Marshal(SubscriberList{Users: users})
		if err != nil {
			return nil, fmt.Errorf("encoding subscribers: %w", err)
		}
		return b, nil
	}
}

// SubscriberList is the fetch_subscribers result shape.
type SubscriberList struct {
	Users []json.RawMessage `json:"users"`
}

// Compile-time check that Gateway implements Invoker.
var _ Invoker = (*Gateway)(nil)
