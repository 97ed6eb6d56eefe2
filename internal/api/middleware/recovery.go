package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/kiranshivaraju/pushconsole/internal/api/response"
)

// Recovery turns a handler panic into a 500 INTERNAL_ERROR envelope that
// carries the request id, so an operator can find the stack in the logs.
// http.ErrAbortHandler is re-raised for net/http to handle.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				l := logger
				if l == nil {
					l = slog.Default()
				}
				id := GetRequestID(r.Context())
				l.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", id,
				)
				AddLogField(r.Context(), "panic", fmt.Sprint(rec))

				var details any
				if id != "" {
					details = map[string]string{"request_id": id}
				}
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", details)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
