package middleware

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/tunebox/pkg"
)

const (
	clientIDBytes  = 32
	clientIDMaxAge = 400 * 24 * time.Hour
)

type clientIDCtxKey struct{}

// ClientID makes sure every request carries the opaque client id cookie.
// Missing or malformed ids are replaced with a fresh one.
func ClientID(cookieName string, secureCookie bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if cookie, err := r.Cookie(cookieName); err == nil && validClientID(cookie.Value) {
				clientID = cookie.Value
			}

			if clientID == "" {
				newID, err := pkg.GenerateRandomString(clientIDBytes)
				if err != nil {
					log.Errorf("generate client id: %s", err)
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				clientID = newID
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    clientID,
					Path:     "/",
					MaxAge:   int(clientIDMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secureCookie,
					SameSite: http.SameSiteLaxMode,
				})
				log.Tracef("new client id issued for %s", r.URL.Path)
			}

			next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), clientID)))
		})
	}
}

func validClientID(value string) bool {
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	return err == nil && len(decoded) == clientIDBytes
}

func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDCtxKey{}, clientID)
}

func ClientIDFromContext(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(clientIDCtxKey{}).(string)
	return clientID, ok && clientID != ""
}
