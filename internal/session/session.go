// Package session extracts the caller's access token from a request.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// CookieName is the cookie the dashboard stores its access token in
const CookieName = "access_token"

// ErrUnauthorized is returned when no usable token accompanies a request
var ErrUnauthorized = errors.New("unauthorized")

type ctxKey struct{}

// FromRequest reads the access token from the Authorization header or the
// session cookie. JWT tokens past their exp claim are rejected; opaque
// tokens are passed through as-is.
func FromRequest(r *http.Request) (*oauth2.Token, error) {
	raw := bearer(r.Header.Get("Authorization"))
	if raw == "" {
		if c, err := r.Cookie(CookieName); err == nil {
			raw = strings.TrimSpace(c.Value)
		}
	}
	if raw == "" {
		return nil, ErrUnauthorized
	}

	tok := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	if exp, ok := expiry(raw); ok {
		tok.Expiry = exp
	}
	if !tok.Valid() {
		return nil, fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	return tok, nil
}

// WithToken stores tok in ctx for the backend client
func WithToken(ctx context.Context, tok *oauth2.Token) context.Context {
	return context.WithValue(ctx, ctxKey{}, tok)
}

// FromContext returns the token stored by WithToken, if any
func FromContext(ctx context.Context) (*oauth2.Token, bool) {
	tok, ok := ctx.Value(ctxKey{}).(*oauth2.Token)
	return tok, ok && tok != nil
}

func bearer(h string) string {
	h = strings.TrimSpace(h)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// expiry reads the exp claim without verifying the signature; the backend
// does the verification.
func expiry(raw string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
