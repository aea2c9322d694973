package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bhuvanesh-bit/scriptbot/internal/utils"
)

// TokenCookie is the HttpOnly cookie carrying the access token for the
// browser UI.
const TokenCookie = "scriptbot_token"

// Context keys set by JWTAuth and RequireSession.
const (
	KeyUserID    = "user_id"
	KeyUsername  = "username"
	KeySessionID = "sid"
	KeySession   = "session"
)

// UnauthorizedFunc writes the response for a rejected request.
type UnauthorizedFunc func(c echo.Context, reason string) error

// JSONUnauthorized answers 401 with {"error": reason}.
func JSONUnauthorized(c echo.Context, reason string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": reason})
}

// RedirectToLogin sends browsers back to the login page.
func RedirectToLogin(c echo.Context, _ string) error {
	return c.Redirect(http.StatusSeeOther, "/login")
}

// JWTAuth validates the access token and stores its claims in the context
// under user_id, username and sid.  The token is read from a Bearer
// Authorization header, falling back to the TokenCookie cookie.  Rejected
// requests are answered by onFail, or with a JSON 401 when onFail is nil.
func JWTAuth(secret string, onFail UnauthorizedFunc) echo.MiddlewareFunc {
	if onFail == nil {
		onFail = JSONUnauthorized
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return onFail(c, "missing bearer token")
			}
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return onFail(c, "invalid token")
			}
			c.Set(KeyUserID, claims.UserID)
			c.Set(KeyUsername, claims.Username)
			c.Set(KeySessionID, claims.SessionID)
			return next(c)
		}
	}
}

func bearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(TokenCookie); err == nil {
		return ck.Value
	}
	return ""
}
