package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/pushconsole/internal/sdk"
)

// BootstrapConfig holds what the SDK needs to come up.
type BootstrapConfig struct {
	AppID              string
	SafariWebID        string
	ServiceWorkerPath  string
	ServiceWorkerScope string
	SettleInterval     time.Duration
}

// Result describes an attached SDK.
type Result struct {
	Handle        sdk.Handle
	PushSupported bool
	Permission    sdk.Permission
}

// Bootstrap is the pending outcome of a bootstrap run.
type Bootstrap struct {
	done   chan struct{}
	result Result
	err    error
}

// Done is closed when the bootstrap has finished.
func (b *Bootstrap) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the bootstrap finishes or ctx is done.
func (b *Bootstrap) Wait(ctx context.Context) (Result, error) {
	select {
	case <-b.done:
		return b.result, b.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Bootstrapper runs the SDK bootstrap at most once per process.
type Bootstrapper struct {
	platform sdk.Platform
	cfg      BootstrapConfig
	logger   *slog.Logger

	once sync.Once
	boot *Bootstrap
}

// NewBootstrapper creates a Bootstrapper for platform. Nothing runs until
// EnsureBootstrapped is called.
func NewBootstrapper(platform sdk.Platform, cfg BootstrapConfig, logger *slog.Logger) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{platform: platform, cfg: cfg, logger: logger}
}

// Configured reports whether a default app id is set.
func (b *Bootstrapper) Configured() bool {
	return b != nil && b.platform != nil && b.cfg.AppID != ""
}

// EnsureBootstrapped starts the bootstrap on first call and returns the same
// Bootstrap on every call. Cancelling ctx does not abort a started run.
func (b *Bootstrapper) EnsureBootstrapped(ctx context.Context) *Bootstrap {
	b.once.Do(func() {
		b.boot = &Bootstrap{done: make(chan struct{})}
		go b.run(context.WithoutCancel(ctx), b.boot)
	})
	return b.boot
}

func (b *Bootstrapper) run(ctx context.Context, boot *Bootstrap) {
	defer close(boot.done)
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("push sdk bootstrap panicked", "panic", rec)
			boot.result, boot.err = Result{}, fmt.Errorf("%w: %v", ErrBootstrap, rec)
		}
	}()

	boot.result, boot.err = b.bootstrap(ctx)
	if boot.err != nil {
		b.logger.Error("push sdk bootstrap failed", "error", boot.err)
		return
	}
	b.logger.Info("push sdk ready",
		"app_id", b.cfg.AppID,
		"push_supported", boot.result.PushSupported,
		"permission", string(boot.result.Permission),
	)
}

func (b *Bootstrapper) bootstrap(ctx context.Context) (Result, error) {
	if err := b.platform.RegisterServiceWorker(ctx, b.cfg.ServiceWorkerPath, b.cfg.ServiceWorkerScope); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBootstrap, err)
	}

	err := b.platform.Init(ctx, sdk.InitConfig{
		AppID:              b.cfg.AppID,
		SafariWebID:        b.cfg.SafariWebID,
		AutoResubscribe:    true,
		NotifyButton:       sdk.NotifyButton{Enable: true},
		ServiceWorkerPath:  b.cfg.ServiceWorkerPath,
		ServiceWorkerScope: b.cfg.ServiceWorkerScope,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: init: %v", ErrSDKLoad, err)
	}

	b.settle()

	h, ok := b.platform.Handle()
	if !ok {
		return Result{}, fmt.Errorf("%w: handle absent after %s", ErrSDKLoad, b.cfg.SettleInterval)
	}
	return Result{
		Handle:        h,
		PushSupported: h.IsPushSupported(),
		Permission:    h.Permission(),
	}, nil
}

// settle waits for the platform's ready signal, bounded by the settle
// interval. Platforms without a signal get the plain delay, which can race a
// slow attach.
func (b *Bootstrapper) settle() {
	timer := time.NewTimer(b.cfg.SettleInterval)
	defer timer.Stop()

	sig, ok := b.platform.(sdk.ReadySignaler)
	if !ok {
		<-timer.C
		return
	}

	select {
	case <-sig.Ready():
		return
	default:
	}
	select {
	case <-sig.Ready():
	case <-timer.C:
	}
}
