package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/rocketshoes-cart/api/responses"
	pkgerrors "github.com/angelmondragon/rocketshoes-cart/pkg/errors"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
)

const (
	SessionHeader = "X-Session-Id"
	SessionCookie = "cart_session"

	maxSessionIDLen = 64
	sessionMaxAge   = 30 * 24 * 60 * 60
)

// Session resolves the cart session from the X-Session-Id header, then the
// cart_session cookie, and otherwise issues a new id as a cookie.
func Session(logg *logger.Logger, secureCookie bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := r.Header.Get(SessionHeader)
			if sessionID != "" && !ValidSessionID(sessionID) {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "invalid session id").
						WithDetails(map[string]string{"header": SessionHeader}))
				return
			}
			if sessionID == "" {
				if c, err := r.Cookie(SessionCookie); err == nil && ValidSessionID(c.Value) {
					sessionID = c.Value
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   sessionMaxAge,
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ValidSessionID accepts up to 64 characters of letters, digits, '-' and '_'.
func ValidSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
