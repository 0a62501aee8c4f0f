package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/tunebox/internal/auth"
	"github.com/2beens/tunebox/internal/telemetry/tracing"
)

// SessionGate sends clients without a session away from protected pages.
type SessionGate struct {
	checker        auth.Checker
	loginPath      string
	protectedPaths map[string]bool
}

func NewSessionGate(checker auth.Checker, loginPath string, protectedPaths ...string) *SessionGate {
	paths := make(map[string]bool, len(protectedPaths))
	for _, p := range protectedPaths {
		paths[p] = true
	}
	return &SessionGate{
		checker:        checker,
		loginPath:      loginPath,
		protectedPaths: paths,
	}
}

func (g *SessionGate) SessionCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !g.protectedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.sessionCheck")
			defer span.End()

			clientID, ok := ClientIDFromContext(ctx)
			if !ok {
				log.Errorf("[session gate] no client id for %s", r.URL.Path)
				http.Error(w, "internal error", http.StatusInternalServerError)
				span.SetStatus(codes.Error, "missing-client-id")
				return
			}

			isLogged, err := g.checker.IsLogged(ctx, clientID)
			if err != nil {
				log.Errorf("[session gate] failed session check => %s: %s", r.URL.Path, err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				span.SetStatus(codes.Error, "check-logged-err")
				span.RecordError(err)
				return
			}
			if !isLogged {
				log.Tracef("[session gate] no session => %s", r.URL.Path)
				http.Redirect(w, r, g.loginPath, http.StatusSeeOther)
				span.SetStatus(codes.Ok, "redirect-login")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
