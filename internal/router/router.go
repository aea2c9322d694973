package router // package router defines how HTTP routes are registered for the API

import (
	"errors"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/bhuvanesh-bit/scriptbot/internal/handler"
	"github.com/bhuvanesh-bit/scriptbot/internal/middleware"
	"github.com/bhuvanesh-bit/scriptbot/internal/service"
)

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, logger log.FieldLogger) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db, logger))
}

func sessionGone(err error) bool { return errors.Is(err, service.ErrNotAuthenticated) }

// protected returns the middleware chain for routes that need a live
// session: token first, then the session it points at.
func protected(chat *service.ChatService, jwtSecret string, onFail middleware.UnauthorizedFunc, logger log.FieldLogger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret, onFail),
		middleware.RequireSession(chat, sessionGone, onFail, logger),
	}
}

// RegisterAuth registers the account endpoints.  Register and login live
// under /v1/auth without authentication; logout only needs a valid token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret, nil))

	auth := e.Group("/v1", protected(a.Chat, jwtSecret, nil, a.Log)...)
	auth.GET("/me", a.Me)
}

// RegisterChat registers the JSON chat API under /v1.
func RegisterChat(e *echo.Echo, h *handler.ChatHandler, jwtSecret string) {
	g := e.Group("/v1", protected(h.Chat, jwtSecret, nil, h.Log)...)
	g.GET("/session", h.Session)
	g.POST("/ask", h.Ask)
	g.GET("/history", h.History)
	g.POST("/history/:id/load", h.Load)
	g.DELETE("/history/:id", h.Delete)
}

// RegisterWeb registers the browser UI.  Guests hitting /chat are
// redirected to /login.
func RegisterWeb(e *echo.Echo, w *handler.WebHandler, jwtSecret string) {
	e.GET("/", w.Index)
	e.GET("/login", w.LoginPage)
	e.POST("/login", w.Login)
	e.POST("/register", w.Register)
	e.POST("/logout", w.Logout)

	g := e.Group("/chat", protected(w.Chat, jwtSecret, middleware.RedirectToLogin, w.Log)...)
	g.GET("", w.ChatPage)
	g.POST("/ask", w.Ask)
	g.POST("/history/:id/load", w.Load)
	g.POST("/history/:id/delete", w.Delete)
}
