package chi

import (
	"context"
	"net/http"
	"strings"
)

// Key tiers. Admin keys unlock every endpoint; editor keys only the
// per-content ones (recommendations, status, hooks).
type tier int

const (
	tierNone tier = iota
	tierEditor
	tierAdmin
)

type tierContextKey struct{}

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// BearerAuthMiddleware resolves the request's Bearer token to a key tier and
// rejects requests with no valid key. If both key lists are empty,
// authentication is disabled and every request runs as admin.
func BearerAuthMiddleware(adminKeys, editorKeys []string) func(http.Handler) http.Handler {
	keyTiers := make(map[string]tier, len(adminKeys)+len(editorKeys))
	for _, k := range editorKeys {
		if k != "" {
			keyTiers[k] = tierEditor
		}
	}
	// admin wins when a key appears in both lists
	for _, k := range adminKeys {
		if k != "" {
			keyTiers[k] = tierAdmin
		}
	}

	return func(next http.Handler) http.Handler {
		if len(keyTiers) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(withTier(r.Context(), tierAdmin)))
			})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized, codeUnauthorized,
					"authorization header must use Bearer scheme")
				return
			}

			t, ok := keyTiers[auth[len(bearerPrefix):]]
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r.WithContext(withTier(r.Context(), t)))
		})
	}
}

// RequireAdmin guards a route group behind admin-tier keys.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tierFrom(r.Context()) < tierAdmin {
			writeError(w, http.StatusForbidden, codeForbidden, "admin key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireEditor guards a route group behind editor-or-admin keys.
func RequireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tierFrom(r.Context()) < tierEditor {
			writeError(w, http.StatusForbidden, codeForbidden, "editor key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withTier(ctx context.Context, t tier) context.Context {
	return context.WithValue(ctx, tierContextKey{}, t)
}

func tierFrom(ctx context.Context) tier {
	if t, ok := ctx.Value(tierContextKey{}).(tier); ok {
		return t
	}
	return tierNone
}
