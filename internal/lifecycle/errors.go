package lifecycle

import "errors"

// Sentinel errors recorded by the Controller.
var (
	ErrConfiguration    = errors.New("push configuration missing")
	ErrBootstrap        = errors.New("service worker registration failed")
	ErrSDKLoad          = errors.New("push sdk failed to load")
	ErrSDKNotReady      = errors.New("push sdk not ready")
	ErrPermissionDenied = errors.New("notification permission denied")
	ErrPushUnsupported  = errors.New("push not supported on this device")
	ErrNoTenantSelected = errors.New("no website selected")
	ErrUnknownTenant    = errors.New("unknown website")
)
