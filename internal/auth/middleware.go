package auth

import (
	"net"
	"net/http"
	"time"

	"github.com/BenjaminPelletier/dss/internal/dsserr"
)

// ErrorResponder writes a DSS error envelope to the response. It is supplied
// by internal/httpserver so this package does not need to depend on it.
type ErrorResponder func(w http.ResponseWriter, err error)

// Middleware decodes and verifies the bearer token exactly once per request
// and attaches the resulting Identity to the request context. Scope
// enforcement happens separately, per endpoint, via RequireScopeMiddleware.
//
// If limiter is non-nil, IPs that accumulate too many authentication
// failures are rejected before the token is even parsed.
func Middleware(gate *Gate, limiter *RateLimiter, respondError ErrorResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if limiter != nil {
				result, err := limiter.Check(r.Context(), ip)
				if err == nil && !result.Allowed {
					respondError(w, dsserr.Unauthenticatedf("too many failed authentication attempts, retry after %s", result.RetryAt.Format(time.RFC3339)))
					return
				}
			}

			id, err := gate.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				if limiter != nil {
					_ = limiter.Record(r.Context(), ip)
				}
				respondError(w, err)
				return
			}
			if limiter != nil {
				_ = limiter.Reset(r.Context(), ip)
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
		})
	}
}

// RequireScopeMiddleware rejects requests whose identity (attached by
// Middleware) does not hold one of the permitted scopes.
func RequireScopeMiddleware(respondError ErrorResponder, permitted ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := RequireScope(FromContext(r.Context()), permitted...); err != nil {
				respondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
