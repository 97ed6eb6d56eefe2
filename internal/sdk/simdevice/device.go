// Package simdevice is an in-memory push SDK platform. It stands in for a
// browser in the operator console and in tests.
package simdevice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/pushconsole/internal/sdk"
)

// NeverAttach keeps the handle detached after Init.
const NeverAttach time.Duration = -1

// ErrNotInitialised is returned by handle methods called before Init.
var ErrNotInitialised = errors.New("simdevice: sdk not initialised")

// TagWrite is one recorded AddTag call.
type TagWrite struct {
	Key   string
	Value string
}

// Device satisfies sdk.Platform, sdk.ReadySignaler and sdk.Handle.
// Hook fields must be set before the device is handed to a controller.
type Device struct {
	ID string

	// RegisterFunc overrides service worker registration.
	RegisterFunc func(ctx context.Context, scriptPath, scope string) error
	// InitFunc overrides SDK initialisation.
	InitFunc func(ctx context.Context, cfg sdk.InitConfig) error
	// PromptFunc answers the permission prompt.
	PromptFunc func(ctx context.Context) (sdk.Permission, error)
	// AddTagFunc runs before a tag is stored; an error aborts the write.
	AddTagFunc func(ctx context.Context, key, value string) error
	// AttachDelay is how long after Init the handle attaches.
	AttachDelay time.Duration
	// PushSupported is reported by IsPushSupported.
	PushSupported bool

	mu         sync.Mutex
	registered bool
	initCfg    *sdk.InitConfig
	attached   bool
	permission sdk.Permission
	prompts    int
	tags       map[string]string
	tagLog     []TagWrite
	ready      chan struct{}
	readyOnce  sync.Once
}

// New returns a Device that supports push, attaches immediately and grants
// permission when prompted.
func New() *Device {
	return &Device{
		ID:            uuid.NewString(),
		PushSupported: true,
		PromptFunc: func(context.Context) (sdk.Permission, error) {
			return sdk.PermissionGranted, nil
		},
		permission: sdk.PermissionDefault,
		tags:       make(map[string]string),
		ready:      make(chan struct{}),
	}
}

// NewWithPermission returns a Device whose permission is already decided.
func NewWithPermission(p sdk.Permission) *Device {
	d := New()
	d.permission = p
	return d
}

// --- sdk.Platform ---

func (d *Device) RegisterServiceWorker(ctx context.Context, scriptPath, scope string) error {
	if d.RegisterFunc != nil {
		if err := d.RegisterFunc(ctx, scriptPath, scope); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.registered = true
	d.mu.Unlock()
	return nil
}

func (d *Device) Init(ctx context.Context, cfg sdk.InitConfig) error {
	if d.InitFunc != nil {
		if err := d.InitFunc(ctx, cfg); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.initCfg = &cfg
	d.mu.Unlock()

	switch {
	case d.AttachDelay == 0:
		d.attach()
	case d.AttachDelay > 0:
		time.AfterFunc(d.AttachDelay, d.attach)
	}
	return nil
}

func (d *Device) Handle() (sdk.Handle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return nil, false
	}
	return d, true
}

// Ready is closed once the handle attaches.
func (d *Device) Ready() <-chan struct{} {
	return d.ready
}

func (d *Device) attach() {
	d.mu.Lock()
	d.attached = true
	d.mu.Unlock()
	d.readyOnce.Do(func() { close(d.ready) })
}

// --- sdk.Handle ---

func (d *Device) IsPushSupported() bool {
	return d.PushSupported
}

func (d *Device) Permission() sdk.Permission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission
}

// RequestPermission prompts only while the permission is undecided, like a
// browser does.
func (d *Device) RequestPermission(ctx context.Context) error {
	d.mu.Lock()
	d.prompts++
	decided := d.permission != sdk.PermissionDefault
	d.mu.Unlock()
	if decided {
		return nil
	}

	answer, err := d.PromptFunc(ctx)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.permission = answer
	d.mu.Unlock()
	return nil
}

func (d *Device) AddTag(ctx context.Context, key, value string) error {
	d.mu.Lock()
	initialised := d.initCfg != nil
	d.mu.Unlock()
	if !initialised {
		return ErrNotInitialised
	}

	if d.AddTagFunc != nil {
		if err := d.AddTagFunc(ctx, key, value); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tags[key] = value
	d.tagLog = append(d.tagLog, TagWrite{Key: key, Value: value})
	return nil
}

// --- inspection ---

// Registered reports whether the service worker was registered.
func (d *Device) Registered() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registered
}

// InitConfig returns the config passed to Init.
func (d *Device) InitConfig() (sdk.InitConfig, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.initCfg == nil {
		return sdk.InitConfig{}, false
	}
	return *d.initCfg, true
}

// Tag returns the currently bound value for key.
func (d *Device) Tag(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.tags[key]
	return v, ok
}

// TagWrites returns every successful AddTag call in order.
func (d *Device) TagWrites() []TagWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]TagWrite(nil), d.tagLog...)
}

// PermissionRequests counts RequestPermission calls.
func (d *Device) PermissionRequests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prompts
}

// WithoutReadySignal hides Ready so bootstrap falls back to the settle delay.
func (d *Device) WithoutReadySignal() sdk.Platform {
	return quietPlatform{d: d}
}

type quietPlatform struct {
	d *Device
}

func (q quietPlatform) RegisterServiceWorker(ctx context.Context, scriptPath, scope string) error {
	return q.d.RegisterServiceWorker(ctx, scriptPath, scope)
}

func (q quietPlatform) Init(ctx context.Context, cfg sdk.InitConfig) error {
	return q.d.Init(ctx, cfg)
}

func (q quietPlatform) Handle() (sdk.Handle, bool) {
	return q.d.Handle()
}

// Compile-time checks.
var (
	_ sdk.Platform      = (*Device)(nil)
	_ sdk.ReadySignaler = (*Device)(nil)
	_ sdk.Handle        = (*Device)(nil)
	_ sdk.Platform      = quietPlatform{}
)
