package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/tunebox/internal/auth"
	"github.com/2beens/tunebox/internal/middleware"
	"github.com/2beens/tunebox/internal/telemetry/metrics"
	"github.com/2beens/tunebox/internal/telemetry/tracing"
	"github.com/2beens/tunebox/pkg"
)

const (
	HomePath  = "/index.html"
	LoginPath = "/auth.html"
)

type Handler struct {
	authService    *auth.Service
	pages          *Pages
	metricsManager *metrics.Manager
}

func NewHandler(
	authService *auth.Service,
	pages *Pages,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		authService:    authService,
		pages:          pages,
		metricsManager: metricsManager,
	}
}

// SetupRoutes registers the pages and the auth endpoints. Login and signup
// are rate limited when rateLimiter is not nil and allowedPerMin is positive.
func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	allowedPerMin int,
) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET").Name("root")
	mainRouter.HandleFunc(LoginPath, handler.handleAuthPage).Methods("GET").Name("auth-page")
	mainRouter.HandleFunc(HomePath, handler.handleHomePage).Methods("GET").Name("home-page")
	mainRouter.HandleFunc("/api/session", handler.handleGetSession).Methods("GET").Name("session")
	mainRouter.HandleFunc("/a/logout", handler.handleLogout).Methods("POST").Name("logout")

	loginSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	loginSubrouter.
		HandleFunc("/login", handler.handleLogin).
		Methods("POST", "OPTIONS").Name("login")
	loginSubrouter.
		HandleFunc("/signup", handler.handleSignup).
		Methods("POST", "OPTIONS").Name("signup")

	// rate limit the /login and /signup endpoints to prevent credential guessing
	if rateLimiter != nil && allowedPerMin > 0 {
		loginSubrouter.Use(middleware.RateLimit(rateLimiter, "login", allowedPerMin, handler.metricsManager))
	}
}

func (handler *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

func (handler *Handler) handleAuthPage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.authPage")
	defer span.End()

	clientID, ok := middleware.ClientIDFromContext(ctx)
	if !ok {
		handler.internalError(w, "auth page", errors.New("missing client id"))
		return
	}

	session, err := handler.authService.CurrentSession(ctx, clientID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handler.internalError(w, "auth page", err)
		return
	}
	if session != nil {
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}

	handler.pages.Render(w, pageAuth, http.StatusOK, AuthPageData{
		ShowSignup: r.URL.Query().Get("form") == "signup",
	})
}

func (handler *Handler) handleHomePage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.homePage")
	defer span.End()

	clientID, ok := middleware.ClientIDFromContext(ctx)
	if !ok {
		handler.internalError(w, "home page", errors.New("missing client id"))
		return
	}

	session, err := handler.authService.CurrentSession(ctx, clientID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handler.internalError(w, "home page", err)
		return
	}
	// the session may be gone between the gate and this point
	if session == nil {
		http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		return
	}

	handler.pages.Render(w, pageHome, http.StatusOK, HomePageData{
		Name:  session.Name,
		Email: session.Email,
	})
}

func (handler *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.getSession")
	defer span.End()

	clientID, ok := middleware.ClientIDFromContext(ctx)
	if !ok {
		handler.internalError(w, "get session", errors.New("missing client id"))
		return
	}

	session, err := handler.authService.CurrentSession(ctx, clientID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		handler.internalError(w, "get session", err)
		return
	}
	if session == nil {
		pkg.WriteJSON(w, http.StatusUnauthorized, errorsResponse{
			Errors: map[string]string{"session": "not logged in"},
		})
		return
	}

	pkg.WriteJSON(w, http.StatusOK, session)
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.login")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	clientID, ok := middleware.ClientIDFromContext(ctx)
	if !ok {
		handler.internalError(w, "login", errors.New("missing client id"))
		return
	}

	asJSON := isJSONRequest(r)
	var form auth.LoginForm
	if asJSON {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			log.Debugf("login, unmarshal json params: %s", err)
			handler.metricsManager.CounterLogins.WithLabelValues(metrics.ResultInvalid).Inc()
			writeInvalidPayload(w)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Debugf("login, parse form: %s", err)
			http.Error(w, "parse form error", http.StatusBadRequest)
			return
		}
		form = auth.LoginForm{
			Login:      r.PostForm.Get("email"),
			Password:   r.PostForm.Get("password"),
			RememberMe: checkboxValue(r.PostForm.Get("remember_me")),
		}
	}

	session, err := handler.authService.Login(ctx, clientID, form)
	if err != nil {
		var formErr *auth.FormError
		if !errors.As(err, &formErr) {
			span.SetStatus(codes.Error, err.Error())
			handler.metricsManager.CounterLogins.WithLabelValues(metrics.ResultError).Inc()
			handler.internalError(w, "login", err)
			return
		}

		if errors.Is(err, auth.ErrInvalidCredentials) {
			log.Tracef("failed login attempt for: %s", strings.TrimSpace(form.Login))
			handler.metricsManager.CounterLogins.WithLabelValues(metrics.ResultRejected).Inc()
		} else {
			handler.metricsManager.CounterLogins.WithLabelValues(metrics.ResultInvalid).Inc()
		}

		if asJSON {
			pkg.WriteJSON(w, http.StatusBadRequest, errorsResponse{Errors: formErr.Fields})
			return
		}
		handler.pages.Render(w, pageAuth, http.StatusBadRequest, AuthPageData{
			LoginEmail:  strings.TrimSpace(form.Login),
			RememberMe:  form.RememberMe,
			LoginErrors: formErr.Fields,
		})
		return
	}

	handler.metricsManager.CounterLogins.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Debugf("user logged in: %s", session.Email)

	if asJSON {
		pkg.WriteJSON(w, http.StatusOK, session)
		return
	}
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

func (handler *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.signup")
	defer span.End()

	if r.Method == http.MethodOptions {
		w.Header().Add("Allow", "POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	clientID, ok := middleware.ClientIDFromContext(ctx)
	if !ok {
		handler.internalError(w, "signup", errors.New("missing client id"))
		return
	}

	asJSON := isJSONRequest(r)
	var form auth.SignupForm
	if asJSON {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			log.Debugf("signup, unmarshal json params: %s", err)
			handler.metricsManager.CounterSignups.WithLabelValues(metrics.ResultInvalid).Inc()
			writeInvalidPayload(w)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			log.Debugf("signup, parse form: %s", err)
			http.Error(w, "parse form error", http.StatusBadRequest)
			return
		}
		form = auth.SignupForm{
			Email:           r.PostForm.Get("email"),
			Password:        r.PostForm.Get("password"),
			ConfirmPassword: r.PostForm.Get("confirm_password"),
			Name:            r.PostForm.Get("name"),
		}
	}

	session, err := handler.authService.Signup(ctx, clientID, form)
	if err != nil {
		var formErr *auth.FormError
		if !errors.As(err, &formErr) {
			span.SetStatus(codes.Error, err.Error())
			handler.metricsManager.CounterSignups.WithLabelValues(metrics.ResultError).Inc()
			handler.internalError(w, "signup", err)
			return
		}

		handler.metricsManager.CounterSignups.WithLabelValues(metrics.ResultInvalid).Inc()
		if asJSON {
			pkg.WriteJSON(w, http.StatusBadRequest, errorsResponse{Errors: formErr.Fields})
			return
		}
		handler.pages.Render(w, pageAuth, http.StatusBadRequest, AuthPageData{
			ShowSignup:   true,
			SignupEmail:  strings.TrimSpace(form.Email),
			SignupName:   strings.TrimSpace(form.Name),
			SignupErrors: formErr.Fields,
		})
		return
	}

	handler.metricsManager.CounterSignups.WithLabelValues(metrics.ResultSuccess).Inc()

	if asJSON {
		pkg.WriteJSON(w, http.StatusOK, session)
		return
	}
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.logout")
	defer span.End()

	clientID, ok := middleware.ClientIDFromContext(ctx)
	if !ok {
		handler.internalError(w, "logout", errors.New("missing client id"))
		return
	}

	if err := handler.authService.Logout(ctx, clientID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		handler.internalError(w, "logout", err)
		return
	}
	handler.metricsManager.CounterLogouts.Inc()

	if isJSONRequest(r) || acceptsJSON(r) {
		pkg.WriteJSON(w, http.StatusOK, map[string]bool{"loggedOut": true})
		return
	}
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

func (handler *Handler) internalError(w http.ResponseWriter, op string, err error) {
	log.Errorf("%s: %s", op, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

type errorsResponse struct {
	Errors map[string]string `json:"errors"`
}

func writeInvalidPayload(w http.ResponseWriter) {
	pkg.WriteJSON(w, http.StatusBadRequest, errorsResponse{
		Errors: map[string]string{"payload": "invalid json"},
	})
}

func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == pkg.ContentType.JSON
}

func acceptsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), pkg.ContentType.JSON)
}

func checkboxValue(value string) bool {
	if value == "on" {
		return true
	}
	b, err := strconv.ParseBool(value)
	return err == nil && b
}
