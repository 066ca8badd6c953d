package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/safepark/platform-core/internal"
	"github.com/safepark/platform-core/pkg/logger"
)

const HeaderRequestID = "X-Request-ID"

// RequestID propagates the caller's request id or mints one, and tags the
// request-scoped logger with it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		ctx := internal.ContextWithRequestID(r.Context(), requestID)
		ctx = logger.With(ctx, "request_id", requestID)
		w.Header().Set(HeaderRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
