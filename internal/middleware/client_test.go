package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/tunebox/pkg"
)

func TestClientID(t *testing.T) {
	const cookieName = "tunebox_client"
	existing, err := pkg.GenerateRandomString(clientIDBytes)
	require.NoError(t, err)

	testCases := []struct {
		name        string
		cookieValue string
		expectNew   bool
	}{
		{name: "NoCookie", expectNew: true},
		{name: "ValidCookie", cookieValue: existing},
		{name: "ShortCookie", cookieValue: "abc", expectNew: true},
		{name: "NotBase64Cookie", cookieValue: "!!!" + existing[3:], expectNew: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var seenID string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := ClientIDFromContext(r.Context())
				require.True(t, ok)
				seenID = id
			})

			req := httptest.NewRequest(http.MethodGet, "/auth.html", nil)
			if tc.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: cookieName, Value: tc.cookieValue})
			}
			rr := httptest.NewRecorder()
			ClientID(cookieName, false)(next).ServeHTTP(rr, req)

			cookies := rr.Result().Cookies()
			if !tc.expectNew {
				assert.Empty(t, cookies)
				assert.Equal(t, tc.cookieValue, seenID)
				return
			}

			require.Len(t, cookies, 1)
			cookie := cookies[0]
			assert.Equal(t, cookieName, cookie.Name)
			assert.Equal(t, seenID, cookie.Value)
			assert.True(t, validClientID(cookie.Value))
			assert.True(t, cookie.HttpOnly)
			assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
			assert.Equal(t, "/", cookie.Path)
			assert.Positive(t, cookie.MaxAge)
		})
	}
}

func TestClientIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := ClientIDFromContext(req.Context())
	assert.False(t, ok)

	_, ok = ClientIDFromContext(WithClientID(req.Context(), ""))
	assert.False(t, ok)
}
