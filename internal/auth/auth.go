// Package auth keeps the browser session in an HMAC-signed JWT cookie and
// provides the middleware that gates pages behind a signed-in session.
// It also carries one-shot flash messages in a companion cookie.
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/profilesite/internal/logger"
)

// Session is what the cookie remembers about a signed-in visitor.
type Session struct {
	Username       string
	Email          string
	ImageReference string
}

// Claims represents the JWT claims stored in the session cookie.
type Claims struct {
	jwt.RegisteredClaims
	Username       string `json:"username"`
	Email          string `json:"email"`
	ImageReference string `json:"image_reference"`
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// SessionKey is the context key under which RequireSession stores the *Session.
const SessionKey ContextKey = "session"

const flashCookieSuffix = "_flash"

// Auth issues, reads and clears session cookies.
type Auth struct {
	// cookieName is the name of the cookie used to store the JWT.
	cookieName string

	// signingSecretKey is the key used to sign JWTs.
	signingSecretKey []byte

	// lifetime bounds both the JWT expiry and the cookie expiry.
	lifetime time.Duration
}

// New creates an Auth with the given cookie name, signing secret and session lifetime.
func New(cookieName string, signingSecretKey []byte, lifetime time.Duration) *Auth {
	return &Auth{
		cookieName:       cookieName,
		signingSecretKey: signingSecretKey,
		lifetime:         lifetime,
	}
}

// SaveSession signs session and sets it as the session cookie.
func (a *Auth) SaveSession(response http.ResponseWriter, session *Session) error {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.lifetime)),
		},
		Username:       session.Username,
		Email:          session.Email,
		ImageReference: session.ImageReference,
	}

	JWTString, err := a.buildJWTString(&claims)
	if err != nil {
		return fmt.Errorf("in internal/auth/auth.go/SaveSession(): error while `a.buildJWTString()` calling: %w", err)
	}

	http.SetCookie(response, a.newCookie(a.cookieName, JWTString, now.Add(a.lifetime)))

	return nil
}

// ClearSession expires the session cookie.
func (a *Auth) ClearSession(response http.ResponseWriter) {
	http.SetCookie(response, a.expiredCookie(a.cookieName))
}

// SessionFromRequest returns the session carried by the request cookie.
// A missing, expired or tampered cookie yields false.
func (a *Auth) SessionFromRequest(request *http.Request) (*Session, bool) {
	cookie, err := request.Cookie(a.cookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(
		cookie.Value,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return a.signingSecretKey, nil
		},
	)
	if err != nil || !token.Valid {
		logger.Log.Debugln("Rejected session cookie:", zap.Error(err))
		return nil, false
	}
	if claims.Username == "" {
		return nil, false
	}

	return &Session{
		Username:       claims.Username,
		Email:          claims.Email,
		ImageReference: claims.ImageReference,
	}, true
}

// RequireSession is an HTTP middleware that redirects visitors without a
// valid session to the index page and otherwise stores the session in the
// request context.
func (a *Auth) RequireSession(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		session, ok := a.SessionFromRequest(request)
		if !ok {
			http.Redirect(response, request, "/", http.StatusFound)
			return
		}

		ctx := context.WithValue(request.Context(), SessionKey, session)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// SessionFromContext returns the session stored by RequireSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	session, ok := ctx.Value(SessionKey).(*Session)
	return session, ok && session != nil
}

// SetFlash stores a message to be shown on the next rendered page.
func (a *Auth) SetFlash(response http.ResponseWriter, message string) {
	http.SetCookie(
		response,
		a.newCookie(
			a.cookieName+flashCookieSuffix,
			base64.RawURLEncoding.EncodeToString([]byte(message)),
			time.Time{},
		),
	)
}

// PopFlash returns the pending flash message, if any, and clears it.
func (a *Auth) PopFlash(response http.ResponseWriter, request *http.Request) string {
	cookie, err := request.Cookie(a.cookieName + flashCookieSuffix)
	if err != nil || cookie.Value == "" {
		return ""
	}
	http.SetCookie(response, a.expiredCookie(a.cookieName+flashCookieSuffix))

	message, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}

	return string(message)
}

func (a *Auth) newCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *Auth) expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *Auth) buildJWTString(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, *claims)

	return token.SignedString(a.signingSecretKey)
}
