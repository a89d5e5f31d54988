package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

func issueCookie(t *testing.T, m *AuthMiddleware, id Identity) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	m.SetAuthCookie(w, id)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies, "no cookies set by SetAuthCookie")
	return cookies[0]
}

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	want := Identity{UserID: uuid.New(), Role: model.RoleCorporate}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		got, ok := GetIdentityFromContext(r.Context())
		require.True(t, ok, "identity not in context")
		assert.Equal(t, want, got)
	})

	r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	r.AddCookie(issueCookie(t, m, want))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	assert.True(t, nextCalled, "next handler was not called")
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")
	valid := issueCookie(t, m, Identity{UserID: uuid.New(), Role: model.RoleFamiliar})

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "without cookie"},
		{name: "foreign signature", cookie: issueCookie(t, other, Identity{UserID: uuid.New(), Role: model.RoleAdmin})},
		{name: "tampered role", cookie: &http.Cookie{Name: authCookieName, Value: valid.Value[:37] + "admin" + valid.Value[45:]}},
		{name: "garbage", cookie: &http.Cookie{Name: authCookieName, Value: "not-a-token"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			r := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tt.cookie != nil {
				r.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()

			m.Middleware(next).ServeHTTP(w, r)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guard := RequireRole(model.RoleAdmin, model.RoleAmbulance)(ok)

	tests := []struct {
		name     string
		identity *Identity
		want     int
	}{
		{name: "admin", identity: &Identity{UserID: uuid.New(), Role: model.RoleAdmin}, want: http.StatusNoContent},
		{name: "ambulance", identity: &Identity{UserID: uuid.New(), Role: model.RoleAmbulance}, want: http.StatusNoContent},
		{name: "familiar", identity: &Identity{UserID: uuid.New(), Role: model.RoleFamiliar}, want: http.StatusForbidden},
		{name: "anonymous", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/emergencies/x/status", nil)
			if tt.identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), *tt.identity))
			}
			w := httptest.NewRecorder()

			guard.ServeHTTP(w, r)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestClearAuthCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	w := httptest.NewRecorder()

	m.ClearAuthCookie(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, authCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
