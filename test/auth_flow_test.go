//go:build integration

package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/tunebox/internal/auth"
)

type errorsResponse struct {
	Errors map[string]string `json:"errors"`
}

func (s *IntegrationTestSuite) SetupTest() {
	// resets rate limiter counters between tests
	s.Require().NoError(s.redisDataCleanup(context.Background()))
}

func postJSON(t *testing.T, ctx context.Context, client *http.Client, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func get(t *testing.T, ctx context.Context, client *http.Client, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverEndpoint+path, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")

	resp, err := client.Do(req)
	require.NoError(t, err)
	return resp
}

func readSession(t *testing.T, resp *http.Response) auth.Session {
	t.Helper()
	defer resp.Body.Close()
	var session auth.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	return session
}

func readErrors(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()
	var errResp errorsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	return errResp.Errors
}

func (s *IntegrationTestSuite) TestSignupLoginLogout() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	browser := s.newBrowser()
	email := gofakeit.Email()
	name := gofakeit.FirstName()

	// protected page without a session
	resp := get(t, ctx, browser, "/index.html")
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth.html", resp.Header.Get("Location"))

	resp = postJSON(t, ctx, browser, "/a/signup", map[string]string{
		"email":           email,
		"password":        "secret1",
		"confirmPassword": "secret1",
		"name":            name,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := readSession(t, resp)
	assert.Equal(t, email, session.Email)
	assert.Equal(t, name, session.Name)
	assert.True(t, session.RememberMe)

	// the login page now bounces to home
	resp = get(t, ctx, browser, "/auth.html")
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/index.html", resp.Header.Get("Location"))

	resp = get(t, ctx, browser, "/index.html")
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), name)

	resp = postJSON(t, ctx, browser, "/a/logout", nil)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, ctx, browser, "/api/session")
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// log back in with the profile name, case-insensitive
	resp = postJSON(t, ctx, browser, "/a/login", map[string]any{
		"email":      strings.ToUpper(name),
		"password":   "secret1",
		"rememberMe": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session = readSession(t, resp)
	assert.Equal(t, email, session.Email)
	assert.False(t, session.RememberMe)

	resp = get(t, ctx, browser, "/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, session, readSession(t, resp))
}

func (s *IntegrationTestSuite) TestSignupDuplicateEmail() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	browser := s.newBrowser()
	signup := map[string]string{
		"email":           "a@b.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
		"name":            "Ann",
	}
	resp := postJSON(t, ctx, browser, "/a/signup", signup)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	signup["email"] = "A@B.COM"
	signup["name"] = "Another"
	resp = postJSON(t, ctx, browser, "/a/signup", signup)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, map[string]string{
		"email": "This email is already registered.",
	}, readErrors(t, resp))

	// session still belongs to the first account
	resp = get(t, ctx, browser, "/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ann", readSession(t, resp).Name)
}

func (s *IntegrationTestSuite) TestLoginWrongPassword() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	browser := s.newBrowser()
	resp := postJSON(t, ctx, browser, "/a/signup", map[string]string{
		"email":           "a@b.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
		"name":            "Ann",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ctx, browser, "/a/login", map[string]string{
		"email":    "a@b.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, map[string]string{
		"password": "Incorrect email or password.",
	}, readErrors(t, resp))

	resp = get(t, ctx, browser, "/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := readSession(t, resp)
	assert.Equal(t, "a@b.com", session.Email)
	assert.Equal(t, "Ann", session.Name)
}

func (s *IntegrationTestSuite) TestAccountsAreScopedToClient() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := s.newBrowser()
	resp := postJSON(t, ctx, first, "/a/signup", map[string]string{
		"email":           "a@b.com",
		"password":        "secret1",
		"confirmPassword": "secret1",
		"name":            "Ann",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	second := s.newBrowser()
	resp = postJSON(t, ctx, second, "/a/login", map[string]string{
		"email":    "a@b.com",
		"password": "secret1",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Incorrect email or password.", readErrors(t, resp)["password"])
}

func (s *IntegrationTestSuite) TestLoginFormPost() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	browser := s.newBrowser()
	form := url.Values{
		"email":            {"form@b.com"},
		"password":         {"secret1"},
		"confirm_password": {"secret1"},
		"name":             {"Formy"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+"/a/signup", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := browser.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/index.html", resp.Header.Get("Location"))

	req, err = http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+"/a/logout", nil)
	require.NoError(t, err)
	resp, err = browser.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/auth.html", resp.Header.Get("Location"))

	form = url.Values{
		"email":    {"form@b.com"},
		"password": {"nope"},
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, serverEndpoint+"/a/login", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err = browser.Do(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "Incorrect email or password.")
	assert.Contains(t, string(body), "form@b.com")
	assert.NotContains(t, string(body), "nope")
}

func (s *IntegrationTestSuite) TestLoginRateLimiting() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	browser := s.newBrowser()
	for i := 1; i <= testLoginRateLimitPerMin+5; i++ {
		resp := postJSON(t, ctx, browser, "/a/login", map[string]string{
			"email":    "nobody",
			"password": "nothing",
		})
		resp.Body.Close()

		if i <= testLoginRateLimitPerMin {
			require.Equal(t, http.StatusBadRequest, resp.StatusCode, "iteration: %d", i)
			assert.Empty(t, resp.Header.Get("Retry-After"), "iteration: %d", i)
			continue
		}

		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "iteration: %d", i)
		retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
		require.NoError(t, err, "iteration: %d", i)
		assert.Positive(t, retryAfter, "iteration: %d", i)
	}

	// signup shares the limit with login
	resp := postJSON(t, ctx, browser, "/a/signup", map[string]string{
		"email": "not-an-email",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
