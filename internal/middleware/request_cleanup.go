package middleware

import (
	"io"
	"net/http"
)

// DefaultMaxBodyBytes caps auth form and JSON bodies.
const DefaultMaxBodyBytes int64 = 64 << 10

// DrainAndCloseRequest limits the request body to maxBodyBytes and, once the
// handler is done, drains whatever it did not read and closes the body so the
// connection can be reused.
func DrainAndCloseRequest(maxBodyBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && maxBodyBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
			}
			next.ServeHTTP(w, r)
			if r.Body != nil {
				_, _ = io.Copy(io.Discard, r.Body)
				_ = r.Body.Close()
			}
		})
	}
}
