package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
)

func TestGuard_Middleware(t *testing.T) {
	secret := []byte("session-secret")
	guard := NewGuard(secret)

	var seenUser string
	var seenAuthTime time.Time
	handler := guard.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserID(r)
		seenAuthTime = AuthTime(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("should pass a valid session through", func(t *testing.T) {
		authTime := time.Now().Add(-time.Minute).Unix()
		auth := jwtauth.New("HS256", secret, nil)
		_, token, err := auth.Encode(map[string]interface{}{
			"sub":       "user-123",
			"auth_time": authTime,
			"exp":       time.Now().Add(time.Hour).Unix(),
		})
		assert.NoError(t, err)

		r := httptest.NewRequest(http.MethodPost, "/decision", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "user-123", seenUser)
		assert.Equal(t, authTime, seenAuthTime.Unix())
	})

	t.Run("should reject a missing session", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/decision", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("should reject a session signed with another secret", func(t *testing.T) {
		auth := jwtauth.New("HS256", []byte("other-secret"), nil)
		_, token, err := auth.Encode(map[string]interface{}{"sub": "user-123"})
		assert.NoError(t, err)

		r := httptest.NewRequest(http.MethodPost, "/decision", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
