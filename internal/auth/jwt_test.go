package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyIssuedToken(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue("user-1", time.Minute)
	require.NoError(t, err)

	sub, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)

	_, err = NewVerifier("other").Verify(token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	expired, err := v.Issue("user-1", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{"sub": "u"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewVerifier("secret").Verify(token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDevMode(t *testing.T) {
	v := NewVerifier("")
	assert.True(t, v.DevMode())
	sub, err := v.Verify("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	_, err = v.Verify("  ")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue("user-9", time.Minute)
	require.NoError(t, err)

	e := echo.New()
	handler := v.Middleware()(func(c echo.Context) error {
		id, err := UserID(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, id)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-9", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
