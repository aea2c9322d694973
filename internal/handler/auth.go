package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/bhuvanesh-bit/scriptbot/internal/config"
	"github.com/bhuvanesh-bit/scriptbot/internal/middleware"
	"github.com/bhuvanesh-bit/scriptbot/internal/service"
	"github.com/bhuvanesh-bit/scriptbot/internal/session"
	"github.com/bhuvanesh-bit/scriptbot/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg  config.Config
	Chat *service.ChatService
	Log  log.FieldLogger
}

func NewAuthHandler(cfg config.Config, chat *service.ChatService, logger log.FieldLogger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Chat: chat, Log: logger}
}

// ----- DTOs -----

type credentialsReq struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}
type authResp struct {
	User   userPart  `json:"user"`
	Access tokenPart `json:"access"`
}

// Register: create the account; the client logs in separately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	id, err := h.Chat.Register(ctx, req.Username, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": userPart{ID: id, Username: strings.TrimSpace(req.Username)}})
}

// Login: verify credentials, open a session and return an access token
// bound to it.
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sess, access, err := h.login(ctx, req.Username, req.Password)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, authResp{
		User:   userPart{ID: sess.UserID, Username: sess.Username},
		Access: tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

func (h *AuthHandler) login(ctx context.Context, username, password string) (*session.Session, utils.AccessToken, error) {
	sess, err := h.Chat.Login(ctx, username, password)
	if err != nil {
		return nil, utils.AccessToken{}, err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, utils.Claims{
		UserID:    sess.UserID,
		Username:  sess.Username,
		SessionID: sess.ID,
	}, h.Cfg.AccessTTLMin)
	if err != nil {
		_ = h.Chat.Logout(ctx, sess.ID)
		return nil, utils.AccessToken{}, err
	}
	return sess, access, nil
}

// Logout: delete the session the access token points at.  The token stops
// working immediately.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Chat.Logout(ctx, middleware.SessionID(c)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	s := middleware.CurrentSession(c)
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":  s.UserID,
		"username": s.Username,
	})
}
