package api

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickit-backend/auth"
)

func (e *testEnv) signedAssertion(accountID, email string, issued time.Time) auth.Assertion {
	a := auth.Assertion{AccountID: accountID, Email: email, IssuedAt: issued.Unix()}
	a.Signature = e.signer.Sign(a)
	return a
}

func TestLoginRedirectsToProvider(t *testing.T) {
	env := setupTestEnvironment(t, nil)

	w := env.do(t, http.MethodGet, "/api/auth/login?redirect=/polls/abc", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "id.example.com", location.Host)
	assert.Equal(t, "/polls/abc", location.Query().Get("redirect"))
}

func TestCallbackCreatesSession(t *testing.T) {
	env := setupTestEnvironment(t, nil)

	w := env.do(t, http.MethodPost, "/api/auth/callback", env.signedAssertion("acc-1", "admin@example.com", time.Now()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session SessionResponse
	decodeBody(t, w, &session)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "acc-1", session.Account.ID)
	assert.True(t, session.Account.IsAdmin)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookieName, cookies[0].Name)
	assert.Equal(t, session.Token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	w = env.do(t, http.MethodGet, "/api/auth/me", nil, withToken(session.Token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"acc-1","email":"admin@example.com","is_admin":true}`, w.Body.String())

	w = env.do(t, http.MethodDelete, "/api/auth/session", nil, withToken(session.Token))
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/me", nil, withToken(session.Token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCallbackRejectsBadAssertions(t *testing.T) {
	env := setupTestEnvironment(t, nil)

	tampered := env.signedAssertion("acc-1", "a@example.com", time.Now())
	tampered.AccountID = "acc-2"

	tests := []struct {
		name   string
		body   interface{}
		code   int
		reason string
	}{
		{"tampered", tampered, http.StatusUnauthorized, "invalid_assertion"},
		{"expired", env.signedAssertion("acc-1", "a@example.com", time.Now().Add(-10*time.Minute)), http.StatusUnauthorized, "assertion_expired"},
		{"missing fields", map[string]string{"email": "a@example.com"}, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/auth/callback", tc.body)
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.reason, errorOf(t, w).Reason)
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestMeRequiresSession(t *testing.T) {
	env := setupTestEnvironment(t, nil)

	w := env.do(t, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodDelete, "/api/auth/session", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
