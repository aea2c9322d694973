package middleware

// identity.go holds accessors for the values JWTAuth and RequireSession
// store in the Echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/bhuvanesh-bit/scriptbot/internal/session"
)

// UserID returns the authenticated user id, 0 for guests.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(KeyUserID).(uint64)
	return id
}

// SessionID returns the sid claim of the access token, "" for guests.
func SessionID(c echo.Context) string {
	sid, _ := c.Get(KeySessionID).(string)
	return sid
}

// CurrentSession returns the session loaded by RequireSession, nil when
// the request is not authenticated.
func CurrentSession(c echo.Context) *session.Session {
	s, _ := c.Get(KeySession).(*session.Session)
	return s
}
