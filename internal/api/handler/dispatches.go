package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	mw "github.com/kiranshivaraju/pushconsole/internal/api/middleware"
	"github.com/kiranshivaraju/pushconsole/internal/api/response"
	"github.com/kiranshivaraju/pushconsole/internal/store"
	"github.com/kiranshivaraju/pushconsole/pkg/models"
)

// DispatchLister reads the audit log.
type DispatchLister interface {
	ListDispatches(ctx context.Context, limit int) ([]*models.Dispatch, error)
}

// NewDispatchesHandler returns the handler for GET /api/v1/dispatches.
func NewDispatchesHandler(lister DispatchLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := store.DefaultDispatchLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			limit = store.ClampDispatchLimit(n)
		}

		dispatches, err := lister.ListDispatches(r.Context(), limit)
		if err != nil {
			slog.Error("list dispatches failed", "error", err, "request_id", mw.GetRequestID(r.Context()))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list dispatches", nil)
			return
		}

		response.Collection(w, dispatches, response.PaginationMeta{
			Page:    1,
			Limit:   limit,
			Total:   len(dispatches),
			HasNext: len(dispatches) == limit,
		})
	}
}
