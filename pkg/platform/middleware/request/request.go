// Package request assigns a request id to every inbound request.
package request

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"coinledger/pkg/requestcontext"
)

// HeaderRequestID is read from trusted proxies and echoed on the response.
const HeaderRequestID = "X-Request-ID"

// RequestID reuses an inbound X-Request-ID when it is short and printable,
// otherwise generates one. The id is stored via requestcontext.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if reqID == "" || len(reqID) > 128 || strings.ContainsAny(reqID, "\r\n\"") {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
