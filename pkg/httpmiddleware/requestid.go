package httpmiddleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client supplied ids so they stay cheap to log.
const maxRequestIDLen = 128

// requestIDKey is the context key under which RequestID stores the id.
type requestIDKey struct{}

// RequestIDFromContext returns the id stored by the RequestID middleware.
// Outside of a request served through RequestID it returns "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID returns a middleware that tags every request with an id.
//
// A client, load balancer or the payment provider's webhook relay may send
// its own id in the X-Request-ID header; it is kept when it is 1 to 128
// bytes of printable ASCII (0x20-0x7E). Any other value, or a missing header,
// is replaced with a random UUID so that a forged header cannot inject
// control characters into the logs.
//
// The chosen id is:
//   - written to the X-Request-ID response header, before the handler runs,
//     so that error envelopes and panics answered downstream carry it too;
//   - stored in the request context, where InjectLogger picks it up to tag
//     the request scoped logger and the access log line.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if !validRequestID(id) {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// validRequestID reports whether a client supplied id can be reused as is:
// non-empty, at most maxRequestIDLen bytes and printable ASCII only.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range []byte(id) {
		if c < ' ' || c > '~' {
			return false
		}
	}
	return true
}
