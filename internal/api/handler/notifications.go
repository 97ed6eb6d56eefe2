// Package handler holds the HTTP handlers behind the pushconsole router.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/pushconsole/internal/api/middleware"
	"github.com/kiranshivaraju/pushconsole/internal/api/response"
	"github.com/kiranshivaraju/pushconsole/internal/gateway"
	"github.com/kiranshivaraju/pushconsole/internal/metrics"
	"github.com/kiranshivaraju/pushconsole/pkg/models"
)

const recordTimeout = 5 * time.Second

// DispatchRecorder persists one audit entry per gateway invocation.
type DispatchRecorder interface {
	RecordDispatch(ctx context.Context, d *models.Dispatch) error
}

// NewNotificationsHandler returns the handler for POST /api/notifications.
// On success the provider's JSON is written through unchanged. recorder may
// be nil.
func NewNotificationsHandler(gw gateway.Invoker, recorder DispatchRecorder, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req gateway.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		mw.AddLogField(r.Context(), "action", string(req.Action))
		mw.AddLogField(r.Context(), "website", req.WebsiteName)

		result, err := gw.Invoke(r.Context(), req)
		recordDispatch(r, recorder, logger, req, err)

		if err != nil {
			mw.AddLogField(r.Context(), "error", invokeErrorMessage(err))
			writeInvokeError(w, err)
			return
		}
		response.Raw(w, http.StatusOK, result)
	}
}

func writeInvokeError(w http.ResponseWriter, err error) {
	var ue *gateway.UpstreamError
	switch {
	case errors.Is(err, gateway.ErrInvalidAction):
		response.Error(w, http.StatusBadRequest, "INVALID_ACTION", "Invalid action", nil)
	case errors.Is(err, gateway.ErrConfiguration):
		response.Error(w, http.StatusInternalServerError, "NOT_CONFIGURED",
			"OneSignal API key not configured", nil)
	case errors.As(err, &ue):
		var details any
		if ue.StatusCode != 0 {
			details = map[string]int{"upstream_status": ue.StatusCode}
		}
		response.Error(w, http.StatusInternalServerError, "UPSTREAM_ERROR", ue.Message, details)
	default:
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}

func recordDispatch(r *http.Request, recorder DispatchRecorder, logger *slog.Logger, req gateway.Request, invokeErr error) {
	if recorder == nil {
		return
	}

	d := &models.Dispatch{
		ID:          uuid.New(),
		Action:      string(req.Action),
		WebsiteName: req.WebsiteName,
		AppID:       req.AppID,
		Outcome:     models.DispatchOutcomeOK,
		RequestID:   mw.GetRequestID(r.Context()),
		CreatedAt:   time.Now().UTC(),
	}
	if prefix, ok := mw.GetKeyPrefix(r); ok {
		d.KeyPrefix = prefix
	}
	if invokeErr != nil {
		msg := invokeErrorMessage(invokeErr)
		d.Outcome = models.DispatchOutcomeError
		d.ErrorMessage = &msg
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), recordTimeout)
	defer cancel()
	if err := recorder.RecordDispatch(ctx, d); err != nil {
		metrics.DispatchRecordFailures.Inc()
		logger.Error("failed to record dispatch",
			"error", err,
			"action", d.Action,
			"request_id", d.RequestID,
		)
	}
}

// invokeErrorMessage prefers the provider's own message for upstream failures.
func invokeErrorMessage(err error) string {
	var ue *gateway.UpstreamError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return err.Error()
}
