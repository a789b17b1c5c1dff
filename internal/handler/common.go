package handler

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// errNoIdentity is returned by getUserID when the context carries no
// authenticated user, which means JWTAuth did not run or rejected the call.
var errNoIdentity = errors.New("no authenticated user in context")

// getUserID extracts the authenticated user's id placed in the context by
// the JWTAuth middleware.
func getUserID(c echo.Context) (uint64, error) {
	uid, ok := c.Get("user_id").(uint64)
	if !ok || uid == 0 {
		return 0, errNoIdentity
	}
	return uid, nil
}
