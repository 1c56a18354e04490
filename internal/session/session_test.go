package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func signed(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestFromRequestBearerHeader(t *testing.T) {
	raw := signed(t, time.Now().Add(time.Hour))
	r := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	r.Header.Set("Authorization", "Bearer "+raw)

	tok, err := FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, raw, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
	assert.False(t, tok.Expiry.IsZero())
}

func TestFromRequestRawHeaderAndCookie(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "opaque-token")
	tok, err := FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", tok.AccessToken)
	assert.True(t, tok.Expiry.IsZero())

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie-token"})
	tok, err = FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "cookie-token", tok.AccessToken)
}

func TestFromRequestMissingToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := FromRequest(r)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFromRequestExpiredToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+signed(t, time.Now().Add(-time.Minute)))
	_, err := FromRequest(r)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithToken(context.Background(), &oauth2.Token{AccessToken: "x"})
	tok, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "x", tok.AccessToken)
}
