package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/bhuvanesh-bit/scriptbot/internal/session"
)

// SessionLoader resolves a session id.  It returns an error for unknown or
// signed-out sessions.
type SessionLoader interface {
	Current(ctx context.Context, sessionID string) (*session.Session, error)
}

// ErrSessionStore marks a loader failure that is not the client's fault.
var ErrSessionStore = errors.New("session store unavailable")

// RequireSession loads the session named by the token's sid claim and
// stores it under "session".  It must run after JWTAuth.  A session that
// no longer exists (logout, expiry) or that belongs to another user is
// rejected through onFail; a store failure is answered with 500.
func RequireSession(loader SessionLoader, isNotFound func(error) bool, onFail UnauthorizedFunc, logger log.FieldLogger) echo.MiddlewareFunc {
	if onFail == nil {
		onFail = JSONUnauthorized
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sid, _ := c.Get(KeySessionID).(string)
			uid, _ := c.Get(KeyUserID).(uint64)
			if sid == "" || uid == 0 {
				return onFail(c, "unauthorized")
			}
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			s, err := loader.Current(ctx, sid)
			if err != nil {
				if isNotFound(err) {
					return onFail(c, "session expired")
				}
				logger.WithError(err).WithField("sid", sid).Error("load session failed")
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": ErrSessionStore.Error()})
			}
			if s.UserID != uid {
				return onFail(c, "unauthorized")
			}
			c.Set(KeySession, s)
			return next(c)
		}
	}
}
