package middleware

import (
	"errors"
	"net/http"
	"strings"

	"receivables-engine/internal/domain/access"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const callerKey = "caller"

// Claims carries the caller's account in the standard subject claim.
type Claims struct {
	jwt.RegisteredClaims
}

// Auth validates an HS256 Bearer token and stores the resolved access.Caller
// on the echo context. The subject must be a 32-char lowercase hex account.
func Auth(secret []byte, roles access.RoleLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			claims := &Claims{}
			token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenUnverifiable
				}
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				msg := "invalid token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					msg = "token has expired"
				}
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": msg})
			}
			if !reHex32.MatchString(claims.Subject) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token subject"})
			}
			c.Set(callerKey, access.NewCaller(claims.Subject, roles))
			return next(c)
		}
	}
}

// CallerFrom returns the authenticated caller, or the zero Caller when Auth
// did not run.
func CallerFrom(c echo.Context) access.Caller {
	caller, _ := c.Get(callerKey).(access.Caller)
	return caller
}
