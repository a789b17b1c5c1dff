package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for parsing and validating tokens
	"github.com/labstack/echo/v4"  // Echo framework used for defining middleware and handlers
)

// Blacklist is the revocation list consulted on every authenticated request.
// Tokens land on it via logout and stay until they would have expired anyway.
type Blacklist interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the token's subject and email claims into the request context.
// The checks run in a fixed order: missing header, revocation list, then
// signature/expiry.  That order means a logged-out token is rejected as
// revoked even while it is still cryptographically valid.  Handlers read
// the authenticated identity via c.Get("user_id") (uint64) and
// c.Get("email"); the raw token and its expiry are stored under "token"
// and "token_exp" for logout.
func JWTAuth(secret string, blacklist Blacklist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Revocation is checked before signature so the error reported
			// for a logged-out token does not depend on its expiry.
			if blacklist != nil {
				revoked, err := blacklist.IsRevoked(c.Request().Context(), raw)
				if err != nil {
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "authorization check failed"})
				}
				if revoked {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has been revoked"})
				}
			}

			// Parse the token using the HS256 signing method and our secret.
			// The callback supplies the signing key and rejects tokens signed
			// with a different algorithm.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// JWT numeric values decode as float64; convert sub to uint64.
			sub, ok := claims["sub"].(float64)
			if !ok || sub <= 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			email, _ := claims["email"].(string)

			c.Set("user_id", uint64(sub))
			c.Set("email", email)
			c.Set("token", raw)
			if exp, ok := claims["exp"].(float64); ok {
				c.Set("token_exp", time.Unix(int64(exp), 0).UTC())
			}
			return next(c)
		}
	}
}
