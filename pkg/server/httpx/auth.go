package httpx

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vulntor/volworker/pkg/server/api"
)

// Auth requires "Authorization: Bearer <token>" on everything but the
// health probes. An empty token turns the check off.
func Auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := []byte(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isHealthEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			switch got := extractBearerToken(r); {
			case got == "":
				unauthorized(w, r, "Missing authorization header")
			case subtle.ConstantTimeCompare([]byte(got), want) != 1:
				unauthorized(w, r, "Invalid token")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, reason string) {
	zerolog.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Str("reason", reason).Msg("request rejected")
	w.Header().Set("WWW-Authenticate", `Bearer realm="volworker"`)
	api.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized", reason)
}

func isHealthEndpoint(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

// extractBearerToken returns the credentials of an "Authorization: Bearer"
// header; the scheme is case-insensitive.
func extractBearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
