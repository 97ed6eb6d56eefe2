// Package sdk describes the platform push SDK the lifecycle controller drives.
// The real SDK lives on the client platform; implementations adapt it.
package sdk

import "context"

// Permission is the platform's notification permission value.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// NotifyButton configures the SDK's floating subscribe button.
type NotifyButton struct {
	Enable bool
}

// InitConfig is passed to Platform.Init.
type InitConfig struct {
	AppID              string
	SafariWebID        string
	AutoResubscribe    bool
	NotifyButton       NotifyButton
	ServiceWorkerPath  string
	ServiceWorkerScope string
}

// Platform bootstraps the SDK.
type Platform interface {
	// RegisterServiceWorker registers the background worker push delivery needs.
	RegisterServiceWorker(ctx context.Context, scriptPath, scope string) error
	// Init initialises the SDK. The handle may attach some time after Init returns.
	Init(ctx context.Context, cfg InitConfig) error
	// Handle returns the attached SDK handle, if any.
	Handle() (Handle, bool)
}

// ReadySignaler is implemented by platforms that announce when the handle has
// attached. Bootstrap waits on it instead of relying only on the settle delay.
type ReadySignaler interface {
	Ready() <-chan struct{}
}

// Handle is the attached SDK.
type Handle interface {
	IsPushSupported() bool
	Permission() Permission
	RequestPermission(ctx context.Context) error
	AddTag(ctx context.Context, key, value string) error
}
