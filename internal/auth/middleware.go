package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/ferhatb/linkstats/internal"
)

const (
	cookieName     = "auth_token"
	tokenExpiry    = 30 * 24 * time.Hour
	userContextKey = "auth_user"
)

type authClaims struct {
	jwt.RegisteredClaims
}

var ErrUnauthorized = errors.New("unauthorized")

type Authenticator struct {
	store     *UserStore
	jwtSecret string
}

func NewAuthenticator(store *UserStore, jwtSecret string) *Authenticator {
	return &Authenticator{store: store, jwtSecret: jwtSecret}
}

// Authenticate checks credentials and mints the session cookie.
func (a Authenticator) Authenticate(creds Credentials) (*http.Cookie, error) {
	user, ok := a.store.Authenticate(creds)
	if !ok {
		return nil, ErrUnauthorized
	}
	return a.generateCookie(user.Username)
}

func (a Authenticator) checkJWT(tokenStr string) (*authClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &authClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*authClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

func (a Authenticator) signJWT(username string) (string, error) {
	now := jwt.NewNumericDate(time.Now())
	claims := &authClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  now,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (a Authenticator) generateCookie(username string) (*http.Cookie, error) {
	token, err := a.signJWT(username)
	if err != nil {
		return nil, err
	}

	cookie := &http.Cookie{
		Name:     cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tokenExpiry / time.Second),
	}
	return cookie, nil
}

// NewAuthMiddleware authenticates the request via cookie or basic auth and
// stores the resolved user in the echo context. The role is looked up per
// request, so a revoked user stops passing even with a live token.
func NewAuthMiddleware(auther *Authenticator) echo.MiddlewareFunc {
	type authStrategy func(c echo.Context) (*internal.User, error)
	strategies := []authStrategy{
		auther.authWithCookie,
		auther.authWithBasicAuth,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, strategy := range strategies {
				user, err := strategy(c)
				if err != nil {
					continue
				}

				if user != nil {
					SetUser(c, *user)
					return next(c)
				}
			}
			return echo.ErrUnauthorized
		}
	}
}

// SetUser stores the requester on the context; the middleware does this on
// every authenticated request.
func SetUser(c echo.Context, user internal.User) {
	c.Set(userContextKey, user)
}

// UserFrom returns the requester stored by the auth middleware.
func UserFrom(c echo.Context) (internal.User, bool) {
	user, ok := c.Get(userContextKey).(internal.User)
	return user, ok
}

func (a Authenticator) authWithCookie(c echo.Context) (*internal.User, error) {
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie == nil || cookie.Value == "" {
		return nil, nil
	}

	claims, err := a.checkJWT(cookie.Value)
	if err != nil {
		return nil, nil
	}

	user, ok := a.store.Lookup(claims.Subject)
	if !ok {
		return nil, nil
	}

	refreshedCookie, err := a.generateCookie(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie: %w", err)
	}
	c.SetCookie(refreshedCookie)

	return &user, nil
}

func (a Authenticator) authWithBasicAuth(c echo.Context) (*internal.User, error) {
	username, password, ok := c.Request().BasicAuth()
	if !ok {
		return nil, nil
	}

	user, ok := a.store.Authenticate(Credentials{Username: username, Password: password})
	if !ok {
		return nil, ErrUnauthorized
	}

	cookie, err := a.generateCookie(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cookie: %w", err)
	}
	cookie.Secure = c.IsTLS()
	c.SetCookie(cookie)

	return &user, nil
}

func ExpireCookie() *http.Cookie {
	return &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	}
}
