package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/bhuvanesh-bit/scriptbot/internal/config"
	"github.com/bhuvanesh-bit/scriptbot/internal/middleware"
	"github.com/bhuvanesh-bit/scriptbot/internal/render"
	"github.com/bhuvanesh-bit/scriptbot/internal/service"
	"github.com/bhuvanesh-bit/scriptbot/internal/session"
	"github.com/bhuvanesh-bit/scriptbot/internal/utils"
)

// WebHandler serves the browser UI.  The access token lives in an HttpOnly
// cookie; every state change is a form POST answered with a redirect.
type WebHandler struct {
	Cfg  config.Config
	Auth *AuthHandler
	Chat *service.ChatService
	Log  log.FieldLogger
}

func NewWebHandler(cfg config.Config, auth *AuthHandler, chat *service.ChatService, logger log.FieldLogger) *WebHandler {
	return &WebHandler{Cfg: cfg, Auth: auth, Chat: chat, Log: logger}
}

// Index sends visitors to the chat page, which redirects guests to login.
func (h *WebHandler) Index(c echo.Context) error {
	return c.Redirect(http.StatusSeeOther, "/chat")
}

// LoginPage renders the login form, or the register form with ?tab=register.
func (h *WebHandler) LoginPage(c echo.Context) error {
	page := render.LoginPage{Tab: c.QueryParam("tab")}
	if c.QueryParam("registered") == "1" {
		page.Notice = "Registration successful! Please log in."
	}
	return c.Render(http.StatusOK, "login.html", page)
}

// Login checks the form credentials and sets the token cookie.
func (h *WebHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.Render(http.StatusBadRequest, "login.html", render.LoginPage{Error: "Invalid form."})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	_, access, err := h.Auth.login(ctx, req.Username, req.Password)
	if err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.WithError(err).Error("web login failed")
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			msg = "Invalid credentials."
		}
		return c.Render(status, "login.html", render.LoginPage{Username: req.Username, Error: msg})
	}
	c.SetCookie(h.tokenCookie(access.Token, access.Exp))
	return c.Redirect(http.StatusSeeOther, "/chat")
}

// Register creates the account and sends the user to the login form.
func (h *WebHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.Render(http.StatusBadRequest, "login.html", render.LoginPage{Tab: "register", Error: "Invalid form."})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Chat.Register(ctx, req.Username, req.Password); err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.WithError(err).Error("web register failed")
		}
		if errors.Is(err, service.ErrUsernameTaken) {
			msg = "Username already exists."
		}
		return c.Render(status, "login.html", render.LoginPage{Tab: "register", Username: req.Username, Error: msg})
	}
	return c.Redirect(http.StatusSeeOther, "/login?registered=1")
}

// Logout deletes the session named by the cookie, if any, and clears the
// cookie.  It works with an expired or forged cookie too.
func (h *WebHandler) Logout(c echo.Context) error {
	if ck, err := c.Cookie(middleware.TokenCookie); err == nil {
		if claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, ck.Value); err == nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			if err := h.Chat.Logout(ctx, claims.SessionID); err != nil {
				h.Log.WithError(err).Warn("web logout: delete session failed")
			}
		}
	}
	c.SetCookie(h.tokenCookie("", time.Unix(0, 0)))
	return c.Redirect(http.StatusSeeOther, "/login")
}

// ChatPage renders the history sidebar and the displayed list.
func (h *WebHandler) ChatPage(c echo.Context) error {
	return h.renderChat(c, http.StatusOK, "", "")
}

// Ask submits the question form.
func (h *WebHandler) Ask(c echo.Context) error {
	var req askReq
	if err := c.Bind(&req); err != nil {
		return h.renderChat(c, http.StatusBadRequest, "", "Invalid form.")
	}
	if _, err := h.Chat.Ask(c.Request().Context(), middleware.CurrentSession(c), req.Question); err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.WithError(err).Error("web ask failed")
		}
		return h.renderChat(c, status, req.Question, msg)
	}
	return c.Redirect(http.StatusSeeOther, "/chat")
}

// Load prepends a stored entry to the displayed list.
func (h *WebHandler) Load(c echo.Context) error {
	return h.mutate(c, h.Chat.LoadFromHistory)
}

// Delete removes a stored entry.
func (h *WebHandler) Delete(c echo.Context) error {
	return h.mutate(c, h.Chat.DeleteFromHistory)
}

func (h *WebHandler) mutate(c echo.Context, op func(context.Context, *session.Session, uint64) error) error {
	id, err := parseID(c)
	if err != nil {
		return h.renderChat(c, http.StatusBadRequest, "", "Invalid id.")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := op(ctx, middleware.CurrentSession(c), id); err != nil {
		status, msg := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.Log.WithError(err).Error("web history action failed")
		}
		return h.renderChat(c, status, "", msg)
	}
	return c.Redirect(http.StatusSeeOther, "/chat")
}

func (h *WebHandler) renderChat(c echo.Context, status int, question, errMsg string) error {
	s := middleware.CurrentSession(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Chat.History(ctx, s)
	if err != nil {
		h.Log.WithError(err).Error("web: list history failed")
		if errMsg == "" {
			errMsg = "Could not load history."
		}
		status = http.StatusInternalServerError
	}
	return c.Render(status, "chat.html", render.ChatPage{
		Username: s.Username,
		History:  entries,
		Outputs:  s.Outputs,
		Question: question,
		Error:    errMsg,
	})
}

func (h *WebHandler) tokenCookie(value string, exp time.Time) *http.Cookie {
	ck := &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    value,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		ck.MaxAge = -1
	}
	return ck
}
