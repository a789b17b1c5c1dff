package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/event-registration/internal/repository"
)

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  The role is resolved
// from the account store on every call rather than read from a token claim,
// so a role change takes effect immediately and a forged claim buys nothing.
// It assumes JWTAuth already stored the user id in the context.  Requests
// from users outside the allowed set are rejected with 401.
func RequireRole(users *repository.UserRepo, roles ...string) echo.MiddlewareFunc {
	// Build a set of allowed roles for constant-time lookups.
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := c.Get("user_id").(uint64)
			if !ok || uid == 0 {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not authorized"})
			}
			u, err := users.GetByID(c.Request().Context(), uid)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not authorized"})
			}
			if !allowed[u.Role] {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "you are not authorized"})
			}
			// Make the resolved role available to the handler.
			c.Set("role", u.Role)
			return next(c)
		}
	}
}
