package httpapi

import (
	"net/http"
	"strings"

	"fieldtrace.org/internal/auth"
)

// publicPath reports whether the endpoint is reachable without a token.
func publicPath(p string) bool {
	switch p {
	case "/v1/auth/token", "/metrics", "/healthz", "/readyz", "/v1/info":
		return true
	}
	return false
}

// withAuth verifies the bearer token and places the caller's Principal
// into the request context. Public paths pass through untouched.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPath(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		raw := bearerToken(r)
		if raw == "" {
			writeError(w, r, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
			return
		}
		claims, err := auth.ParseAndValidate(raw)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
			return
		}

		p := auth.Principal{ID: claims.Subject, Roles: claims.Roles}
		ctx := auth.ContextWithPrincipal(r.Context(), p)
		ctx = auth.ContextWithToken(ctx, raw)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole enforces a role on an already authenticated request.
func requireRole(w http.ResponseWriter, r *http.Request, role string) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, auth.ErrUnauthorized.Error())
		return auth.Principal{}, false
	}
	if !p.HasRole(role) {
		writeError(w, r, http.StatusForbidden, auth.ErrForbidden.Error())
		return auth.Principal{}, false
	}
	return p, true
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
