package middleware

import (
	"net/http"

	"github.com/mkravets/clearway/pkg/logger"
)

// CorrelationIDHeader carries a client-supplied correlation id through
// the request and back in the response.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID propagates the client's correlation id into the request
// context and echoes it on the response. Requests without the header pass
// through unchanged.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(CorrelationIDHeader); id != "" {
			r = r.WithContext(logger.WithCorrelationID(r.Context(), id))
			w.Header().Set(CorrelationIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
