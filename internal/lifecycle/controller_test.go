package lifecycle_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiranshivaraju/pushconsole/internal/gateway"
	"github.com/kiranshivaraju/pushconsole/internal/lifecycle"
	"github.com/kiranshivaraju/pushconsole/internal/onesignal"
	"github.com/kiranshivaraju/pushconsole/internal/sdk"
	"github.com/kiranshivaraju/pushconsole/internal/sdk/simdevice"
	"github.com/kiranshivaraju/pushconsole/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

var (
	websiteA = models.Tenant{Name: "Website A", ExternalAppID: "app-1"}
	websiteB = models.Tenant{Name: "Website B", ExternalAppID: "app-2"}
	websiteC = models.Tenant{Name: "Website C", ExternalAppID: "app-3"}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bootConfig() lifecycle.BootstrapConfig {
	return lifecycle.BootstrapConfig{
		AppID:              "default-app",
		SafariWebID:        "web.onesignal.auto.test",
		ServiceWorkerPath:  "/OneSignalSDKWorker.js",
		ServiceWorkerScope: "/",
		SettleInterval:     20 * time.Millisecond,
	}
}

type stubInvoker struct {
	mu         sync.Mutex
	reqs       []gateway.Request
	InvokeFunc func(ctx context.Context, req gateway.Request) (json.RawMessage, error)
}

func (s *stubInvoker) Invoke(ctx context.Context, req gateway.Request) (json.RawMessage, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.InvokeFunc != nil {
		return s.InvokeFunc(ctx, req)
	}
	return json.RawMessage(`{}`), nil
}

func (s *stubInvoker) requests() []gateway.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gateway.Request(nil), s.reqs...)
}

func newController(platform sdk.Platform, gw gateway.Invoker, tenants ...models.Tenant) *lifecycle.Controller {
	if len(tenants) == 0 {
		tenants = []models.Tenant{websiteA, websiteB}
	}
	boot := lifecycle.NewBootstrapper(platform, bootConfig(), quietLogger())
	return lifecycle.New(boot, tenants, gw, quietLogger())
}

func startReady(t *testing.T, c *lifecycle.Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Start(ctx)
	require.NoError(t, c.WaitReady(ctx))
}

func tagValues(d *simdevice.Device) []string {
	var out []string
	for _, w := range d.TagWrites() {
		out = append(out, w.Value)
	}
	return out
}

// --- construction ---

func TestNew_InitialState(t *testing.T) {
	c := newController(simdevice.New(), &stubInvoker{})
	s := c.Snapshot()

	assert.Equal(t, lifecycle.PhaseUninitialized, s.Phase)
	assert.False(t, s.SDKReady)
	assert.False(t, s.PermissionGranted)
	assert.Equal(t, websiteA, s.SelectedTenant, "first tenant starts selected")
	assert.Empty(t, s.LastError)
	assert.Len(t, c.Tenants(), 2)
}

func TestNew_NoTenants(t *testing.T) {
	boot := lifecycle.NewBootstrapper(simdevice.New(), bootConfig(), quietLogger())
	c := lifecycle.New(boot, nil, &stubInvoker{}, nil)

	_, err := c.CreateSegment(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrNoTenantSelected)
	assert.Equal(t, lifecycle.ErrNoTenantSelected.Error(), c.Snapshot().LastError)
}

// --- bootstrap ---

func TestStart_ReachesReadyAndBindsTag(t *testing.T) {
	dev := simdevice.New()
	c := newController(dev, &stubInvoker{})

	startReady(t, c)

	s := c.Snapshot()
	assert.Equal(t, lifecycle.PhaseReady, s.Phase)
	assert.True(t, s.SDKReady)
	assert.True(t, s.PushSupported)
	assert.Equal(t, sdk.PermissionDefault, s.Permission)
	assert.False(t, s.PermissionGranted)

	assert.True(t, dev.Registered())
	cfg, ok := dev.InitConfig()
	require.True(t, ok)
	assert.Equal(t, "default-app", cfg.AppID)
	assert.Equal(t, "web.onesignal.auto.test", cfg.SafariWebID)
	assert.True(t, cfg.AutoResubscribe)
	assert.True(t, cfg.NotifyButton.Enable)

	v, ok := dev.Tag(onesignal.TagKey)
	require.True(t, ok)
	assert.Equal(t, "Website A", v)
}

func TestStart_MissingDefaultAppID(t *testing.T) {
	dev := simdevice.New()
	cfg := bootConfig()
	cfg.AppID = ""
	c := lifecycle.New(lifecycle.NewBootstrapper(dev, cfg, quietLogger()), []models.Tenant{websiteA}, &stubInvoker{}, quietLogger())

	c.Start(context.Background())

	err := c.WaitReady(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrConfiguration)
	assert.Equal(t, lifecycle.PhaseFailed, c.Snapshot().Phase)
	assert.NotEmpty(t, c.Snapshot().LastError)
	assert.False(t, dev.Registered(), "bootstrap must never run")
	_, initialised := dev.InitConfig()
	assert.False(t, initialised)
}

func TestStart_NilBootstrapper(t *testing.T) {
	c := lifecycle.New(nil, []models.Tenant{websiteA}, &stubInvoker{}, nil)
	c.Start(context.Background())
	require.ErrorIs(t, c.WaitReady(context.Background()), lifecycle.ErrConfiguration)
}

func TestStart_RegistrationFailure(t *testing.T) {
	dev := simdevice.New()
	dev.RegisterFunc = func(context.Context, string, string) error { return errors.New("worker script 404") }
	c := newController(dev, &stubInvoker{})

	c.Start(context.Background())
	err := c.WaitReady(context.Background())

	require.ErrorIs(t, err, lifecycle.ErrBootstrap)
	s := c.Snapshot()
	assert.Equal(t, lifecycle.PhaseFailed, s.Phase)
	assert.False(t, s.SDKReady)
	assert.Contains(t, s.LastError, "worker script 404")

	_, initialised := dev.InitConfig()
	assert.False(t, initialised, "init never runs after a failed registration")
}

func TestStart_PlatformPanicIsContained(t *testing.T) {
	dev := simdevice.New()
	dev.InitFunc = func(context.Context, sdk.InitConfig) error { panic("sdk exploded") }
	c := newController(dev, &stubInvoker{})

	c.Start(context.Background())
	require.ErrorIs(t, c.WaitReady(context.Background()), lifecycle.ErrBootstrap)
	assert.Equal(t, lifecycle.PhaseFailed, c.Snapshot().Phase)
}

func TestStart_InitFailure(t *testing.T) {
	dev := simdevice.New()
	dev.InitFunc = func(context.Context, sdk.InitConfig) error { return errors.New("bad app id") }
	c := newController(dev, &stubInvoker{})

	c.Start(context.Background())
	require.ErrorIs(t, c.WaitReady(context.Background()), lifecycle.ErrSDKLoad)
}

func TestStart_HandleAbsentAfterSettle(t *testing.T) {
	dev := simdevice.New()
	dev.AttachDelay = simdevice.NeverAttach
	c := newController(dev, &stubInvoker{})

	c.Start(context.Background())
	err := c.WaitReady(context.Background())

	require.ErrorIs(t, err, lifecycle.ErrSDKLoad)
	assert.Equal(t, lifecycle.PhaseFailed, c.Snapshot().Phase)
}

func TestStart_ReadySignalEndsSettleEarly(t *testing.T) {
	dev := simdevice.New()
	dev.AttachDelay = 30 * time.Millisecond
	cfg := bootConfig()
	cfg.SettleInterval = 10 * time.Second
	c := lifecycle.New(lifecycle.NewBootstrapper(dev, cfg, quietLogger()), []models.Tenant{websiteA}, &stubInvoker{}, quietLogger())

	start := time.Now()
	startReady(t, c)

	assert.True(t, time.Since(start) < 5*time.Second, "ready signal should end the settle wait")
	assert.Equal(t, lifecycle.PhaseReady, c.Snapshot().Phase)
}

func TestStart_FixedSettleMissesLateAttach(t *testing.T) {
	dev := simdevice.New()
	dev.AttachDelay = 500 * time.Millisecond
	c := newController(dev.WithoutReadySignal(), &stubInvoker{})

	c.Start(context.Background())
	require.ErrorIs(t, c.WaitReady(context.Background()), lifecycle.ErrSDKLoad)
}

func TestStart_Idempotent(t *testing.T) {
	var registrations atomic.Int32
	dev := simdevice.New()
	dev.RegisterFunc = func(context.Context, string, string) error {
		registrations.Add(1)
		return nil
	}
	c := newController(dev, &stubInvoker{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Start(context.Background())
		}()
	}
	wg.Wait()
	require.NoError(t, c.WaitReady(context.Background()))
	assert.Equal(t, int32(1), registrations.Load())
}

func TestBootstrapper_SharedAcrossControllers(t *testing.T) {
	var registrations atomic.Int32
	dev := simdevice.New()
	dev.RegisterFunc = func(context.Context, string, string) error {
		registrations.Add(1)
		return nil
	}
	boot := lifecycle.NewBootstrapper(dev, bootConfig(), quietLogger())

	first := lifecycle.New(boot, []models.Tenant{websiteA}, &stubInvoker{}, quietLogger())
	second := lifecycle.New(boot, []models.Tenant{websiteA}, &stubInvoker{}, quietLogger())
	startReady(t, first)
	startReady(t, second)

	assert.Equal(t, int32(1), registrations.Load())
	assert.Same(t, boot.EnsureBootstrapped(context.Background()), boot.EnsureBootstrapped(context.Background()))
}

func TestBootstrap_WaitHonoursContext(t *testing.T) {
	dev := simdevice.New()
	dev.AttachDelay = simdevice.NeverAttach
	cfg := bootConfig()
	cfg.SettleInterval = time.Hour
	boot := lifecycle.NewBootstrapper(dev.WithoutReadySignal(), cfg, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := boot.EnsureBootstrapped(context.Background()).Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitReady_BeforeStart(t *testing.T) {
	c := newController(simdevice.New(), &stubInvoker{})
	require.ErrorIs(t, c.WaitReady(context.Background()), lifecycle.ErrSDKNotReady)
}

// --- tag replay ---

func TestSelectTenant_AfterReadyReplaysOnce(t *testing.T) {
	dev := simdevice.New()
	c := newController(dev, &stubInvoker{})
	startReady(t, c)

	require.NoError(t, c.SelectTenant(context.Background(), "Website B"))

	assert.Equal(t, []string{"Website A", "Website B"}, tagValues(dev))
	assert.Equal(t, websiteB, c.Snapshot().SelectedTenant)
}

func TestSelectTenant_DuringInFlightReplayLastWriteWins(t *testing.T) {
	entered := make(chan string, 4)
	release := make(chan struct{})
	dev := simdevice.New()
	var first atomic.Bool
	dev.AddTagFunc = func(_ context.Context, _, value string) error {
		entered <- value
		if first.CompareAndSwap(false, true) {
			<-release
		}
		return nil
	}
	c := newController(dev, &stubInvoker{}, websiteA, websiteB, websiteC)
	c.Start(context.Background())

	// initial replay for A is now blocked inside AddTag
	require.Equal(t, "Website A", <-entered)

	require.NoError(t, c.SelectTenant(context.Background(), "Website B"))
	require.NoError(t, c.SelectTenant(context.Background(), "Website C"))
	close(release)

	require.NoError(t, c.WaitReady(context.Background()))
	assert.Equal(t, []string{"Website A", "Website C"}, tagValues(dev))

	v, _ := dev.Tag(onesignal.TagKey)
	assert.Equal(t, "Website C", v)
}

func TestSelectTenant_AtoBWhileAInFlight(t *testing.T) {
	entered := make(chan string, 4)
	release := make(chan struct{})
	dev := simdevice.New()
	var first atomic.Bool
	dev.AddTagFunc = func(_ context.Context, _, value string) error {
		entered <- value
		if first.CompareAndSwap(false, true) {
			<-release
		}
		return nil
	}
	c := newController(dev, &stubInvoker{})
	c.Start(context.Background())
	require.Equal(t, "Website A", <-entered)

	require.NoError(t, c.SelectTenant(context.Background(), "Website B"))
	close(release)
	require.NoError(t, c.WaitReady(context.Background()))

	writes := tagValues(dev)
	count := 0
	for _, v := range writes {
		if v == "Website B" {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one replay for the new tenant")
	assert.Equal(t, "Website B", writes[len(writes)-1])
}

func TestSelectTenant_CoalescedReplayOutlivesCancelledCaller(t *testing.T) {
	entered := make(chan string, 4)
	release := make(chan struct{})
	dev := simdevice.New()
	dev.AddTagFunc = func(ctx context.Context, _, value string) error {
		if value == "Website B" {
			entered <- value
			<-release
		}
		return ctx.Err()
	}
	c := newController(dev, &stubInvoker{}, websiteA, websiteB, websiteC)
	startReady(t, c)

	callerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.SelectTenant(callerCtx, "Website B") }()
	require.Equal(t, "Website B", <-entered)

	// C is coalesced into the loop driven by the B caller
	require.NoError(t, c.SelectTenant(context.Background(), "Website C"))
	cancel()
	close(release)
	require.NoError(t, <-done)

	v, _ := dev.Tag(onesignal.TagKey)
	assert.Equal(t, "Website C", v)
	assert.Empty(t, c.Snapshot().LastError)
}

func TestSelectTenant_DuringBootstrapAppliedOnReady(t *testing.T) {
	proceed := make(chan struct{})
	dev := simdevice.New()
	dev.InitFunc = func(context.Context, sdk.InitConfig) error {
		<-proceed
		return nil
	}
	c := newController(dev, &stubInvoker{})
	c.Start(context.Background())

	require.NoError(t, c.SelectTenant(context.Background(), "Website B"))
	assert.Equal(t, lifecycle.PhaseBootstrapping, c.Snapshot().Phase)
	assert.Empty(t, dev.TagWrites(), "no tag writes before Ready")

	close(proceed)
	require.NoError(t, c.WaitReady(context.Background()))
	assert.Equal(t, []string{"Website B"}, tagValues(dev))
}

func TestSelectTenant_Unknown(t *testing.T) {
	c := newController(simdevice.New(), &stubInvoker{})

	err := c.SelectTenant(context.Background(), "Website Z")
	require.ErrorIs(t, err, lifecycle.ErrUnknownTenant)
	assert.Equal(t, websiteA, c.Snapshot().SelectedTenant)
	assert.Contains(t, c.Snapshot().LastError, "Website Z")
}

func TestReplayFailure_IsNonFatal(t *testing.T) {
	dev := simdevice.New()
	dev.AddTagFunc = func(_ context.Context, _, value string) error {
		if value == "Website B" {
			return errors.New("tag rejected")
		}
		return nil
	}
	c := newController(dev, &stubInvoker{})
	startReady(t, c)

	require.NoError(t, c.SelectTenant(context.Background(), "Website B"))
	s := c.Snapshot()
	assert.Equal(t, lifecycle.PhaseReady, s.Phase)
	assert.Contains(t, s.LastError, "tag rejected")

	require.NoError(t, c.SelectTenant(context.Background(), "Website A"))
	assert.Empty(t, c.Snapshot().LastError, "next success clears the error")
}

// --- subscribe ---

func TestSubscribe_BeforeReady(t *testing.T) {
	dev := simdevice.New()
	c := newController(dev, &stubInvoker{})

	err := c.Subscribe(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrSDKNotReady)
	assert.False(t, c.Snapshot().PermissionGranted)
	assert.Zero(t, dev.PermissionRequests())
}

func TestSubscribe_AfterFailure(t *testing.T) {
	dev := simdevice.New()
	dev.AttachDelay = simdevice.NeverAttach
	c := newController(dev, &stubInvoker{})
	c.Start(context.Background())
	require.Error(t, c.WaitReady(context.Background()))

	require.ErrorIs(t, c.Subscribe(context.Background()), lifecycle.ErrSDKNotReady)
	assert.False(t, c.Snapshot().PermissionGranted)
}

func TestSubscribe_Granted(t *testing.T) {
	dev := simdevice.New()
	c := newController(dev, &stubInvoker{})
	startReady(t, c)

	require.NoError(t, c.Subscribe(context.Background()))

	s := c.Snapshot()
	assert.True(t, s.PermissionGranted)
	assert.True(t, s.SDKReady)
	assert.Equal(t, sdk.PermissionGranted, s.Permission)
	assert.Empty(t, s.LastError)
	assert.Equal(t, []string{"Website A", "Website A"}, tagValues(dev), "tag replayed after grant")
}

func TestSubscribe_Idempotent(t *testing.T) {
	dev := simdevice.New()
	c := newController(dev, &stubInvoker{})
	startReady(t, c)

	require.NoError(t, c.Subscribe(context.Background()))
	require.NoError(t, c.Subscribe(context.Background()))

	assert.Equal(t, 1, dev.PermissionRequests())
}

func TestSubscribe_Denied(t *testing.T) {
	dev := simdevice.New()
	dev.PromptFunc = func(context.Context) (sdk.Permission, error) { return sdk.PermissionDenied, nil }
	c := newController(dev, &stubInvoker{})
	startReady(t, c)

	err := c.Subscribe(context.Background())
	require.ErrorIs(t, err, lifecycle.ErrPermissionDenied)

	s := c.Snapshot()
	assert.Equal(t, lifecycle.PhaseReady, s.Phase)
	assert.False(t, s.PermissionGranted)
	assert.Equal(t, sdk.PermissionDenied, s.Permission)
	assert.NotEmpty(t, s.LastError)
}

func TestSubscribe_PlatformError(t *testing.T) {
	dev := simdevice.New()
	dev.PromptFunc = func(context.Context) (sdk.Permission, error) { return "", errors.New("prompt dismissed") }
	c := newController(dev, &stubInvoker{})
	startReady(t, c)

	err := c.Subscribe(context.Background())
	require.Error(t, err)
	assert.False(t, c.Snapshot().PermissionGranted)
	assert.Contains(t, c.Snapshot().LastError, "prompt dismissed")
}

func TestSubscribe_PushUnsupported(t *testing.T) {
	dev := simdevice.New()
	dev.PushSupported = false
	c := newController(dev, &stubInvoker{})
	startReady(t, c)

	require.ErrorIs(t, c.Subscribe(context.Background()), lifecycle.ErrPushUnsupported)
	assert.Zero(t, dev.PermissionRequests())
}

func TestSubscribe_AlreadyGrantedStillExplicit(t *testing.T) {
	dev := simdevice.NewWithPermission(sdk.PermissionGranted)
	c := newController(dev, &stubInvoker{})
	startReady(t, c)

	s := c.Snapshot()
	assert.Equal(t, sdk.PermissionGranted, s.Permission)
	assert.False(t, s.PermissionGranted, "granted only through Subscribe")

	require.NoError(t, c.Subscribe(context.Background()))
	assert.True(t, c.Snapshot().PermissionGranted)
}

// --- gateway-backed operations ---

func TestCreateSegment_SelectedTenant(t *testing.T) {
	gw := &stubInvoker{InvokeFunc: func(context.Context, gateway.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"success":true,"id":"seg-42"}`), nil
	}}
	c := newController(simdevice.New(), gw)

	require.NoError(t, c.SelectTenant(context.Background(), "Website B"))
	res, err := c.CreateSegment(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "seg-42", res.ID)
	assert.JSONEq(t, `{"success":true,"id":"seg-42"}`, string(res.Raw))
	assert.Equal(t, []gateway.Request{{
		Action:      gateway.ActionCreateSegment,
		WebsiteName: "Website B",
		AppID:       "app-2",
	}}, gw.requests())
}

func TestCreateSegment_UpstreamMessageSurfaced(t *testing.T) {
	gw := &stubInvoker{InvokeFunc: func(context.Context, gateway.Request) (json.RawMessage, error) {
		return nil, &gateway.UpstreamError{Action: gateway.ActionCreateSegment, StatusCode: 400, Message: "App not found"}
	}}
	c := newController(simdevice.New(), gw)

	_, err := c.CreateSegment(context.Background())
	require.ErrorIs(t, err, gateway.ErrUpstream)
	assert.Equal(t, "App not found", c.Snapshot().LastError)
}

func TestLastError_ReplacedThenCleared(t *testing.T) {
	var fail atomic.Bool
	gw := &stubInvoker{InvokeFunc: func(_ context.Context, req gateway.Request) (json.RawMessage, error) {
		if fail.Load() {
			return nil, &gateway.UpstreamError{Action: req.Action, Message: "first"}
		}
		return json.RawMessage(`{}`), nil
	}}
	c := newController(simdevice.New(), gw)

	fail.Store(true)
	_, _ = c.CreateSegment(context.Background())
	assert.Equal(t, "first", c.Snapshot().LastError)

	require.ErrorIs(t, c.SelectTenant(context.Background(), "nope"), lifecycle.ErrUnknownTenant)
	assert.Contains(t, c.Snapshot().LastError, "nope", "replaced, not appended")
	assert.NotContains(t, c.Snapshot().LastError, "first")

	fail.Store(false)
	_, err := c.CreateSegment(context.Background())
	require.NoError(t, err)
	assert.Empty(t, c.Snapshot().LastError)
}

func TestGatewayOperations_WorkWhenSDKFailed(t *testing.T) {
	dev := simdevice.New()
	dev.AttachDelay = simdevice.NeverAttach
	gw := &stubInvoker{}
	c := newController(dev, gw)
	c.Start(context.Background())
	require.Error(t, c.WaitReady(context.Background()))

	_, err := c.CreateSegment(context.Background())
	require.NoError(t, err)
	assert.Len(t, gw.requests(), 1)
}

func TestSendTestNotification(t *testing.T) {
	gw := &stubInvoker{InvokeFunc: func(context.Context, gateway.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"n-1","recipients":7}`), nil
	}}
	c := newController(simdevice.New(), gw)

	res, err := c.SendTestNotification(context.Background(), lifecycle.NotificationDraft{Title: "Hi", Body: "There"})
	require.NoError(t, err)
	assert.Equal(t, "n-1", res.ID)
	assert.Equal(t, 7, res.Recipients)

	reqs := gw.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, gateway.Request{
		Action:      gateway.ActionSendNotification,
		WebsiteName: "Website A",
		AppID:       "app-1",
		Title:       "Hi",
		Message:     "There",
	}, reqs[0])
}

func TestSendTestNotification_EmptyFieldsForwarded(t *testing.T) {
	gw := &stubInvoker{}
	c := newController(simdevice.New(), gw)

	_, err := c.SendTestNotification(context.Background(), lifecycle.NotificationDraft{})
	require.NoError(t, err)
	require.Len(t, gw.requests(), 1)
	assert.Empty(t, gw.requests()[0].Title)
	assert.Empty(t, gw.requests()[0].Message)
}

func TestFetchSubscribers_ReplacesList(t *testing.T) {
	var body atomic.Value
	body.Store(`{"users":[{"id":"u1","subscriptionStatus":"subscribed"},{"id":"u2","subscriptionStatus":"unsubscribed"}]}`)
	gw := &stubInvoker{InvokeFunc: func(context.Context, gateway.Request) (json.RawMessage, error) {
		return json.RawMessage(body.Load().(string)), nil
	}}
	c := newController(simdevice.New(), gw)

	subs, err := c.FetchSubscribers(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "u1", subs[0].ID)
	assert.Equal(t, "subscribed", subs[0].SubscriptionStatus)

	body.Store(`{"users":[{"id":"u3","subscriptionStatus":"subscribed"}]}`)
	_, err = c.FetchSubscribers(context.Background())
	require.NoError(t, err)

	got := c.Snapshot().Subscribers
	require.Len(t, got, 1)
	assert.Equal(t, "u3", got[0].ID)
}

func TestFetchSubscribers_NoUsersKeyOverHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/apps/app-1/users", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	gw := gateway.New("key", onesignal.NewHTTPClient(ts.URL, "key", time.Second), quietLogger())
	c := newController(simdevice.New(), gw)

	subs, err := c.FetchSubscribers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
	assert.Empty(t, c.Snapshot().LastError)
}

func TestFetchSubscribers_MalformedResult(t *testing.T) {
	gw := &stubInvoker{InvokeFunc: func(context.Context, gateway.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"users":"nope"}`), nil
	}}
	c := newController(simdevice.New(), gw)

	_, err := c.FetchSubscribers(context.Background())
	require.Error(t, err)
	assert.Contains(t, c.Snapshot().LastError, "decoding subscribers")
}

func TestFetchSubscribers_MixedFieldTypes(t *testing.T) {
	gw := &stubInvoker{InvokeFunc: func(context.Context, gateway.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"users":[
			{"id":"u1","subscriptionStatus":"subscribed"},
			{"id":"u2","subscriptionStatus":true},
			{"id":42,"subscriptionStatus":false},
			{"id":{"nested":1},"subscriptionStatus":null},
			"not-a-record"
		]}`), nil
	}}
	c := newController(simdevice.New(), gw)

	subs, err := c.FetchSubscribers(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 5)

	assert.Equal(t, "u1", subs[0].ID)
	assert.Equal(t, "subscribed", subs[0].SubscriptionStatus)
	assert.Equal(t, "u2", subs[1].ID)
	assert.Equal(t, models.SubscriptionSubscribed, subs[1].SubscriptionStatus)
	assert.Equal(t, "42", subs[2].ID)
	assert.Equal(t, models.SubscriptionUnsubscribed, subs[2].SubscriptionStatus)
	assert.Empty(t, subs[3].ID)
	assert.Empty(t, subs[3].SubscriptionStatus)
	assert.Empty(t, subs[4].ID)
	assert.JSONEq(t, `"not-a-record"`, string(subs[4].Raw))
	assert.Empty(t, c.Snapshot().LastError)
}

func TestFetchSubscribers_IdentityShape(t *testing.T) {
	gw := &stubInvoker{InvokeFunc: func(context.Context, gateway.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"users":[
			{"identity":{"onesignal_id":"os-1","external_id":"ext-1"},
			 "subscriptions":[{"id":"sub-1","type":"ChromePush","enabled":true},{"id":"sub-2","enabled":false}]},
			{"subscriptions":[{"id":"sub-9","enabled":false}]}
		]}`), nil
	}}
	c := newController(simdevice.New(), gw)

	subs, err := c.FetchSubscribers(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)

	assert.Equal(t, "os-1", subs[0].ID)
	assert.Equal(t, models.SubscriptionSubscribed, subs[0].SubscriptionStatus)
	assert.Contains(t, string(subs[0].Raw), "ext-1")

	assert.Equal(t, "sub-9", subs[1].ID)
	assert.Equal(t, models.SubscriptionUnsubscribed, subs[1].SubscriptionStatus)
}

func TestGatewayResults_LooseFieldTypes(t *testing.T) {
	gw := &stubInvoker{InvokeFunc: func(_ context.Context, req gateway.Request) (json.RawMessage, error) {
		if req.Action == gateway.ActionCreateSegment {
			return json.RawMessage(`{"success":true,"id":12345}`), nil
		}
		return json.RawMessage(`{"id":"notif-1","recipients":"7"}`), nil
	}}
	c := newController(simdevice.New(), gw)

	seg, err := c.CreateSegment(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345", seg.ID)

	res, err := c.SendTestNotification(context.Background(), lifecycle.NotificationDraft{Title: "t", Body: "b"})
	require.NoError(t, err)
	assert.Equal(t, "notif-1", res.ID)
	assert.Equal(t, 7, res.Recipients)
}

func TestGatewayResults_UndecodableFieldsKeepRaw(t *testing.T) {
	gw := &stubInvoker{InvokeFunc: func(context.Context, gateway.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"id":{"v":1},"recipients":[1]}`), nil
	}}
	c := newController(simdevice.New(), gw)

	res, err := c.SendTestNotification(context.Background(), lifecycle.NotificationDraft{})
	require.NoError(t, err)
	assert.Empty(t, res.ID)
	assert.Zero(t, res.Recipients)
	assert.JSONEq(t, `{"id":{"v":1},"recipients":[1]}`, string(res.Raw))
}

func TestGatewayUnconfigured(t *testing.T) {
	c := newController(simdevice.New(), gateway.New("", nil, quietLogger()))

	_, err := c.FetchSubscribers(context.Background())
	require.ErrorIs(t, err, gateway.ErrConfiguration)
	assert.Equal(t, gateway.ErrConfiguration.Error(), c.Snapshot().LastError)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "App not found", lifecycle.ErrorMessage(
		&gateway.UpstreamError{Message: "App not found"}))
	assert.Equal(t, "push sdk not ready", lifecycle.ErrorMessage(lifecycle.ErrSDKNotReady))
}
