package servicetoken

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"proofbridge/pkg/platform/httputil"
)

type claimsKey struct{}

// ClaimsFrom returns the verified claims stored by RequireToken.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// RequireToken rejects requests without a valid bearer service token for
// audience. When scope is non-empty the token must carry it.
func RequireToken(key, audience, scope string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				unauthorized(w, "bearer service token required")
				return
			}
			claims, err := Verify(raw, key, audience)
			if err != nil {
				logger.WarnContext(ctx, "service token rejected", "error", err)
				unauthorized(w, "invalid service token")
				return
			}
			if scope != "" && claims.Scope != scope {
				logger.WarnContext(ctx, "service token scope mismatch", "scope", claims.Scope, "required", scope)
				httputil.WriteJSON(w, http.StatusForbidden, map[string]string{
					"error":             "forbidden",
					"error_description": "service token lacks scope " + scope,
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, claimsKey{}, claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "unauthorized",
		"error_description": description,
	})
}
