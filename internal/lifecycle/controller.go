// Package lifecycle owns the client-side push subscription state: SDK
// bootstrap, permission negotiation, tenant tag synchronisation and the
// gateway-backed operator actions.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kiranshivaraju/pushconsole/internal/gateway"
	"github.com/kiranshivaraju/pushconsole/internal/onesignal"
	"github.com/kiranshivaraju/pushconsole/internal/sdk"
	"github.com/kiranshivaraju/pushconsole/pkg/models"
)

// Phase is the Controller's lifecycle phase.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseBootstrapping Phase = "bootstrapping"
	PhaseReady         Phase = "ready"
	PhaseFailed        Phase = "failed"
)

// State is a snapshot of the Controller.
// PermissionGranted implies SDKReady.
type State struct {
	Phase             Phase               `json:"phase"`
	SDKReady          bool                `json:"sdkReady"`
	PermissionGranted bool                `json:"permissionGranted"`
	PushSupported     bool                `json:"pushSupported"`
	Permission        sdk.Permission      `json:"permission,omitempty"`
	SelectedTenant    models.Tenant       `json:"selectedTenant"`
	LastError         string              `json:"lastError,omitempty"`
	Subscribers       []models.Subscriber `json:"subscribers,omitempty"`
}

// NotificationDraft is a test notification composed by the operator.
type NotificationDraft struct {
	Title string
	Body  string
}

// SegmentResult is the provider's answer to a segment creation.
type SegmentResult struct {
	ID  string          `json:"id"`
	Raw json.RawMessage `json:"-"`
}

// NotificationResult is the provider's answer to a send.
type NotificationResult struct {
	ID         string          `json:"id"`
	Recipients int             `json:"recipients"`
	Raw        json.RawMessage `json:"-"`
}

// Controller drives one session's subscription lifecycle.
type Controller struct {
	boot    *Bootstrapper
	tenants []models.Tenant
	gw      gateway.Invoker
	logger  *slog.Logger

	mu           sync.Mutex
	state        State
	handle       sdk.Handle
	failure      error
	settled      chan struct{}
	replayWanted bool
	replaying    bool

	subscribeMu sync.Mutex
}

// New creates a Controller. The first tenant, if any, starts selected.
func New(boot *Bootstrapper, tenants []models.Tenant, gw gateway.Invoker, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		boot:    boot,
		tenants: append([]models.Tenant(nil), tenants...),
		gw:      gw,
		logger:  logger,
		state:   State{Phase: PhaseUninitialized},
		settled: make(chan struct{}),
	}
	if len(c.tenants) > 0 {
		c.state.SelectedTenant = c.tenants[0]
	}
	return c
}

// Tenants returns the configured tenant catalogue.
func (c *Controller) Tenants() []models.Tenant {
	return append([]models.Tenant(nil), c.tenants...)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Subscribers = append([]models.Subscriber(nil), c.state.Subscribers...)
	return s
}

// --- lifecycle ---

// Start triggers the bootstrap. Only the first call has any effect. Without
// a default app id the Controller fails immediately and never bootstraps.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.state.Phase != PhaseUninitialized {
		c.mu.Unlock()
		return
	}
	if !c.boot.Configured() {
		err := fmt.Errorf("%w: default app id not set", ErrConfiguration)
		c.state.Phase = PhaseFailed
		c.failure = err
		c.setErrorLocked(err)
		close(c.settled)
		c.mu.Unlock()
		c.logger.Warn("push bootstrap skipped", "error", err)
		return
	}
	c.state.Phase = PhaseBootstrapping
	c.mu.Unlock()

	boot := c.boot.EnsureBootstrapped(ctx)
	go c.awaitBootstrap(context.WithoutCancel(ctx), boot)
}

func (c *Controller) awaitBootstrap(ctx context.Context, boot *Bootstrap) {
	res, err := boot.Wait(ctx)

	c.mu.Lock()
	if err != nil {
		c.state.Phase = PhaseFailed
		c.failure = err
		c.setErrorLocked(err)
		close(c.settled)
		c.mu.Unlock()
		return
	}
	c.state.Phase = PhaseReady
	c.state.SDKReady = true
	c.state.PushSupported = res.PushSupported
	c.state.Permission = res.Permission
	c.handle = res.Handle
	c.mu.Unlock()

	c.logger.Info("push lifecycle ready",
		"push_supported", res.PushSupported,
		"permission", string(res.Permission),
	)
	c.replayTag(ctx)
	close(c.settled)
}

// WaitReady blocks until bootstrap has settled and the initial tag sync has
// run. It returns the failure when the Controller ended up Failed.
func (c *Controller) WaitReady(ctx context.Context) error {
	c.mu.Lock()
	phase := c.state.Phase
	c.mu.Unlock()
	if phase == PhaseUninitialized {
		return ErrSDKNotReady
	}

	select {
	case <-c.settled:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

// SelectTenant changes the selected tenant and, once Ready, replays the tag
// binding. A selection made during bootstrap is applied when Ready is reached.
func (c *Controller) SelectTenant(ctx context.Context, name string) error {
	tenant, ok := c.lookup(name)
	if !ok {
		return c.recordError(fmt.Errorf("%w: %q", ErrUnknownTenant, name))
	}

	c.mu.Lock()
	c.state.SelectedTenant = tenant
	c.mu.Unlock()

	c.replayTag(ctx)
	return nil
}

func (c *Controller) lookup(name string) (models.Tenant, bool) {
	for _, t := range c.tenants {
		if t.Name == name {
			return t, true
		}
	}
	return models.Tenant{}, false
}

// replayTag binds website = selected tenant. Replays are serialised: a call
// made while another replay is in flight returns at once and the running
// loop performs one more replay with whatever tenant is selected by then.
// Follow-up replays are detached from ctx's cancellation since they serve
// later callers.
func (c *Controller) replayTag(ctx context.Context) {
	c.mu.Lock()
	if c.state.Phase != PhaseReady {
		c.mu.Unlock()
		return
	}
	c.replayWanted = true
	if c.replaying {
		c.mu.Unlock()
		return
	}
	c.replaying = true

	replayCtx := ctx
	for c.replayWanted {
		c.replayWanted = false
		tenant := c.state.SelectedTenant
		h := c.handle
		c.mu.Unlock()

		var err error
		if !tenant.IsZero() {
			err = h.AddTag(replayCtx, onesignal.TagKey, tenant.Name)
		}
		replayCtx = context.WithoutCancel(ctx)

		c.mu.Lock()
		if err != nil {
			c.logger.Warn("tag replay failed", "tenant", tenant.Name, "error", err)
			c.setErrorLocked(fmt.Errorf("tagging %q: %w", tenant.Name, err))
		} else {
			c.state.LastError = ""
		}
	}
	c.replaying = false
	c.mu.Unlock()
}

// Subscribe asks the platform for notification permission and, once
// granted, replays the tag binding. It is a no-op once permission was
// granted through it.
func (c *Controller) Subscribe(ctx context.Context) error {
	c.subscribeMu.Lock()
	defer c.subscribeMu.Unlock()

	c.mu.Lock()
	if c.state.Phase != PhaseReady {
		c.mu.Unlock()
		return c.recordError(ErrSDKNotReady)
	}
	if c.state.PermissionGranted {
		c.mu.Unlock()
		return nil
	}
	if !c.state.PushSupported {
		c.mu.Unlock()
		return c.recordError(ErrPushUnsupported)
	}
	h := c.handle
	c.mu.Unlock()

	if err := h.RequestPermission(ctx); err != nil {
		return c.recordError(fmt.Errorf("requesting permission: %w", err))
	}
	perm := h.Permission()

	c.mu.Lock()
	c.state.Permission = perm
	if perm != sdk.PermissionGranted {
		err := fmt.Errorf("%w: permission is %s", ErrPermissionDenied, perm)
		c.setErrorLocked(err)
		c.mu.Unlock()
		return err
	}
	c.state.PermissionGranted = true
	c.state.LastError = ""
	c.mu.Unlock()

	c.logger.Info("push subscription granted")
	c.replayTag(ctx)
	return nil
}

// --- gateway-backed operations ---

// CreateSegment creates the selected tenant's segment.
func (c *Controller) CreateSegment(ctx context.Context) (SegmentResult, error) {
	raw, err := c.invoke(ctx, gateway.ActionCreateSegment, NotificationDraft{})
	if err != nil {
		return SegmentResult{}, err
	}

	id, _ := c.resultFields(gateway.ActionCreateSegment, raw)
	return SegmentResult{ID: id, Raw: raw}, nil
}

// FetchSubscribers replaces the subscriber list with the provider's current
// list for the selected tenant.
func (c *Controller) FetchSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	raw, err := c.invoke(ctx, gateway.ActionFetchSubscribers, NotificationDraft{})
	if err != nil {
		return nil, err
	}

	var list struct {
		Users []models.Subscriber `json:"users"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, c.recordError(fmt.Errorf("decoding subscribers: %w", err))
	}
	if list.Users == nil {
		list.Users = []models.Subscriber{}
	}

	c.mu.Lock()
	c.state.Subscribers = list.Users
	c.mu.Unlock()
	return append([]models.Subscriber(nil), list.Users...), nil
}

// SendTestNotification pushes draft to the selected tenant's segment. Empty
// fields are sent as-is.
func (c *Controller) SendTestNotification(ctx context.Context, draft NotificationDraft) (NotificationResult, error) {
	raw, err := c.invoke(ctx, gateway.ActionSendNotification, draft)
	if err != nil {
		return NotificationResult{}, err
	}

	id, recipients := c.resultFields(gateway.ActionSendNotification, raw)
	return NotificationResult{ID: id, Recipients: recipients, Raw: raw}, nil
}

// resultFields reads id and recipients from a provider answer. Numeric ids
// and quoted counts are accepted; anything else is logged and left zero,
// the raw answer still reaching the caller.
func (c *Controller) resultFields(action gateway.Action, raw json.RawMessage) (string, int) {
	var fields struct {
		ID         json.RawMessage `json:"id"`
		Recipients json.RawMessage `json:"recipients"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		c.logger.Debug("provider result not decoded", "action", action, "error", err)
		return "", 0
	}

	var id string
	if present(fields.ID) {
		var n json.Number
		if err := json.Unmarshal(fields.ID, &id); err != nil {
			if err := json.Unmarshal(fields.ID, &n); err != nil {
				c.logger.Debug("provider result id not decoded", "action", action, "error", err)
			}
			id = n.String()
		}
	}

	var recipients int
	if present(fields.Recipients) {
		var n json.Number
		err := json.Unmarshal(fields.Recipients, &n)
		if err == nil {
			var v int64
			if v, err = n.Int64(); err == nil {
				recipients = int(v)
			}
		}
		if err != nil {
			c.logger.Debug("provider result recipients not decoded", "action", action, "error", err)
		}
	}
	return id, recipients
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func (c *Controller) invoke(ctx context.Context, action gateway.Action, draft NotificationDraft) (json.RawMessage, error) {
	c.mu.Lock()
	tenant := c.state.SelectedTenant
	c.mu.Unlock()
	if tenant.IsZero() {
		return nil, c.recordError(ErrNoTenantSelected)
	}

	req := gateway.Request{
		Action:      action,
		WebsiteName: tenant.Name,
		AppID:       tenant.ExternalAppID,
	}
	if action == gateway.ActionSendNotification {
		req.Title = draft.Title
		req.Message = draft.Body
	}

	raw, err := c.gw.Invoke(ctx, req)
	if err != nil {
		return nil, c.recordError(err)
	}

	c.mu.Lock()
	c.state.LastError = ""
	c.mu.Unlock()
	return raw, nil
}

// --- errors ---

func (c *Controller) recordError(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setErrorLocked(err)
	return err
}

func (c *Controller) setErrorLocked(err error) {
	c.state.LastError = ErrorMessage(err)
}

// ErrorMessage is the operator-facing text for err. Upstream failures show
// the provider's own message.
func ErrorMessage(err error) string {
	var ue *gateway.UpstreamError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return err.Error()
}
