package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/bhuvanesh-bit/scriptbot/internal/middleware"
	"github.com/bhuvanesh-bit/scriptbot/internal/model"
	"github.com/bhuvanesh-bit/scriptbot/internal/service"
	"github.com/bhuvanesh-bit/scriptbot/internal/session"
)

// ChatHandler exposes the chat workflow as JSON.  Every route runs behind
// JWTAuth and RequireSession.
type ChatHandler struct {
	Chat *service.ChatService
	Log  log.FieldLogger
}

func NewChatHandler(chat *service.ChatService, logger log.FieldLogger) *ChatHandler {
	return &ChatHandler{Chat: chat, Log: logger}
}

type askReq struct {
	Question string `json:"question" form:"question"`
}

type entryResp struct {
	ID        uint64    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionResp struct {
	ID       string             `json:"id"`
	Username string             `json:"username"`
	Outputs  []session.Exchange `json:"outputs"`
}

func toEntry(e model.HistoryEntry) entryResp {
	return entryResp{ID: e.ID, Question: e.Question, Answer: e.Answer, CreatedAt: e.CreatedAt}
}

func toSession(s *session.Session) sessionResp {
	out := s.Outputs
	if out == nil {
		out = []session.Exchange{}
	}
	return sessionResp{ID: s.ID, Username: s.Username, Outputs: out}
}

// Session returns the displayed list.
func (h *ChatHandler) Session(c echo.Context) error {
	return c.JSON(http.StatusOK, toSession(middleware.CurrentSession(c)))
}

// Ask forwards a question to the completion service.  The request context
// bounds the call; the completion client applies its own timeout.
func (h *ChatHandler) Ask(c echo.Context) error {
	var req askReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	s := middleware.CurrentSession(c)
	entry, err := h.Chat.Ask(c.Request().Context(), s, req.Question)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"entry": toEntry(entry), "session": toSession(s)})
}

// History lists the stored entries, newest first.
func (h *ChatHandler) History(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Chat.History(ctx, middleware.CurrentSession(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]entryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntry(e))
	}
	return c.JSON(http.StatusOK, out)
}

// Load puts a stored entry at the front of the displayed list.
func (h *ChatHandler) Load(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := middleware.CurrentSession(c)
	if err := h.Chat.LoadFromHistory(ctx, s, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toSession(s))
}

// Delete removes a stored entry.  Unknown or foreign ids succeed without
// effect.
func (h *ChatHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := middleware.CurrentSession(c)
	if err := h.Chat.DeleteFromHistory(ctx, s, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toSession(s))
}
