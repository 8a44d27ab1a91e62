package auth

import (
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// DefaultCookieName is the session cookie consulted when no Authorization header is sent.
const DefaultCookieName = "mcphub_session"

// Middleware attaches the caller's user id to the request context when the request carries a valid token.
// Requests without a valid token pass through anonymously; handlers decide whether that is acceptable.
func Middleware(logger hclog.Logger, verifier TokenVerifier, cookieName string) func(http.Handler) http.Handler {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, cookieName)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("Ignoring session token", "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), userID)))
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}

	if c, err := r.Cookie(cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}

	return ""
}
