package main

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/pushconsole/internal/lifecycle"
	"github.com/kiranshivaraju/pushconsole/internal/sdk"
	"github.com/kiranshivaraju/pushconsole/internal/sdk/simdevice"
)

// sessionOptions shapes the simulated browser session.
type sessionOptions struct {
	tenant     string
	appID      string
	denyPrompt bool
}

type session struct {
	ctrl   *lifecycle.Controller
	device *simdevice.Device
}

// startSession fetches the tenant catalogue, bootstraps a simulated device
// and waits for the lifecycle to settle. A failed bootstrap is logged, not
// returned: gateway operations work without the SDK.
func startSession(ctx context.Context, opts sessionOptions) (*session, error) {
	tenants, err := client.Tenants(ctx)
	if err != nil {
		return nil, err
	}

	device := simdevice.New()
	if opts.denyPrompt {
		device.PromptFunc = func(context.Context) (sdk.Permission, error) {
			return sdk.PermissionDenied, nil
		}
	}

	appID := opts.appID
	if appID == "" {
		appID = cfg.SDK.DefaultAppID
	}
	if appID == "" && len(tenants) > 0 {
		appID = tenants[0].ExternalAppID
	}

	boot := lifecycle.NewBootstrapper(device, lifecycle.BootstrapConfig{
		AppID:              appID,
		SafariWebID:        cfg.SDK.SafariWebID,
		ServiceWorkerPath:  cfg.SDK.ServiceWorkerPath,
		ServiceWorkerScope: cfg.SDK.ServiceWorkerScope,
		SettleInterval:     cfg.SDK.SettleInterval,
	}, logger)
	ctrl := lifecycle.New(boot, tenants, client, logger)

	ctrl.Start(ctx)
	if opts.tenant != "" {
		if err := ctrl.SelectTenant(ctx, opts.tenant); err != nil {
			return nil, err
		}
	}
	if err := ctrl.WaitReady(ctx); err != nil {
		logger.Warn("push sdk unavailable", "error", err)
	}

	if ctrl.Snapshot().SelectedTenant.IsZero() {
		return nil, fmt.Errorf("%w: the server has no tenants", lifecycle.ErrNoTenantSelected)
	}
	return &session{ctrl: ctrl, device: device}, nil
}
