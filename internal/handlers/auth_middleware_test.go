package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chepyr/go-todo-web/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checks that a request without a session is sent to the login page
func TestAuthMiddleware_MissingCookie(t *testing.T) {
	h := &Handler{Sessions: NewSessionManager(testSecret, time.Hour, false), MultiUser: true}
	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { nextCalled = true })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	h.AuthMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, nextCalled, "next should NOT be called")
	assert.Empty(t, rec.Result().Cookies(), "nothing to clear")
}

// checks that a bad cookie is cleared on the way to the login page
func TestAuthMiddleware_InvalidCookie(t *testing.T) {
	h := &Handler{Sessions: NewSessionManager(testSecret, time.Hour, false), MultiUser: true}
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("next must not be called on invalid session")
	})

	req := httptest.NewRequest(http.MethodGet, "/edit/5", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "obviously.invalid.token"})
	rec := httptest.NewRecorder()

	h.AuthMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?next=%2Fedit%2F5", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

// checks that a valid session puts the identity into the request context
func TestAuthMiddleware_ValidSession(t *testing.T) {
	sessions := NewSessionManager(testSecret, time.Hour, false)
	h := &Handler{Sessions: sessions, MultiUser: true}
	cookie := issuedCookie(t, sessions, &models.User{ID: 7, Username: "alice"})

	var got Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		got = identity
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	h.AuthMiddleware(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, Identity{UserID: 7, Username: "alice"}, got)
}

func TestCurrentOwner(t *testing.T) {
	single := &Handler{}
	owner, ok := single.currentOwner(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, ok)
	assert.Zero(t, owner)

	multi := &Handler{MultiUser: true}
	rec := httptest.NewRecorder()
	_, ok = multi.currentOwner(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), Identity{UserID: 3, Username: "bob"}))
	owner, ok = multi.currentOwner(httptest.NewRecorder(), req)
	assert.True(t, ok)
	assert.Equal(t, int64(3), owner)
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/edit/4", "/edit/4"},
		{"/edit/4?x=1", "/edit/4?x=1"},
		{"https://evil.example/", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"edit/4", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			assert.Equal(t, tt.want, safeNext(tt.next))
		})
	}
}
