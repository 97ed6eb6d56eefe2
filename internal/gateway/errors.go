package gateway

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/pushconsole/internal/onesignal"
)

var (
	// ErrConfiguration means no provider credential is configured.
	ErrConfiguration = errors.New("provider credential not configured")
	// ErrInvalidAction means the action is not one the gateway routes.
	ErrInvalidAction = errors.New("invalid action")
	// ErrUpstream means the remote provider call failed.
	ErrUpstream = errors.New("upstream provider error")
)

// UpstreamError carries the remote provider's message for a failed call.
type UpstreamError struct {
	Action     Action
	StatusCode int // 0 when the provider was never reached
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// upstreamError normalises a client error, keeping the provider's message
// when there is one.
func upstreamError(action Action, err error) *UpstreamError {
	ue := &UpstreamError{Action: action, Message: err.Error(), Err: err}

	var apiErr *onesignal.APIError
	if errors.As(err, &apiErr) {
		ue.StatusCode = apiErr.StatusCode
		ue.Message = apiErr.Message()
	}
	return ue
}
