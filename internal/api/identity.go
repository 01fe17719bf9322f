package api

import (
	"net/http"

	"github.com/onnwee/thewall/internal/admin"
	"github.com/onnwee/thewall/internal/identity"
	"github.com/onnwee/thewall/internal/middleware"
	"github.com/onnwee/thewall/internal/quota"
)

// BypassTokenHeader carries the quota bypass session token issued by
// POST /admin/bypass.
const BypassTokenHeader = "X-Bypass-Token"

// Identity is a middleware that resolves the visitor identity for every
// request and checks for a quota bypass token. The identity lands in the
// request context for quota accounting and logging; a valid bypass token
// flags the context so the limiter skips the daily quota.
//
// adminSvc may be nil when no bypass credential is configured; tokens are
// then ignored.
func Identity(resolver identity.Resolver, adminSvc *admin.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.SetIdentity(r.Context(), resolver.Resolve(r))

			if adminSvc != nil {
				if token := r.Header.Get(BypassTokenHeader); token != "" && adminSvc.VerifyBypass(token) {
					ctx = quota.WithBypass(ctx)
				}
			}

			// Push the identity to the logging middleware, which wrapped
			// the request before we resolved it.
			middleware.UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestIdentity returns the identity resolved by the Identity middleware,
// falling back to the shared unknown bucket.
func requestIdentity(r *http.Request) string {
	if id := middleware.GetIdentity(r.Context()); id != "" {
		return id
	}
	return identity.Unknown
}
