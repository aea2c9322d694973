package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhuvanesh-bit/scriptbot/internal/completion"
	"github.com/bhuvanesh-bit/scriptbot/internal/config"
	"github.com/bhuvanesh-bit/scriptbot/internal/handler"
	"github.com/bhuvanesh-bit/scriptbot/internal/middleware"
	"github.com/bhuvanesh-bit/scriptbot/internal/model"
	"github.com/bhuvanesh-bit/scriptbot/internal/render"
	"github.com/bhuvanesh-bit/scriptbot/internal/repository"
	"github.com/bhuvanesh-bit/scriptbot/internal/service"
	"github.com/bhuvanesh-bit/scriptbot/internal/session"
)

const secret = "router-test-secret"

type memUsers struct {
	mu    sync.Mutex
	users []model.User
}

func (m *memUsers) Create(_ context.Context, username, password string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return 0, repository.ErrUsernameExists
		}
	}
	id := uint64(len(m.users) + 1)
	m.users = append(m.users, model.User{ID: id, Username: username, PasswordHash: password})
	return id, nil
}

func (m *memUsers) Authenticate(_ context.Context, username, password string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username && u.PasswordHash == password {
			return u.ID, nil
		}
	}
	return 0, repository.ErrInvalidCredentials
}

type memHistory struct {
	mu   sync.Mutex
	next uint64
	rows []model.HistoryEntry
}

func (m *memHistory) Append(_ context.Context, uid uint64, q, a string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.rows = append(m.rows, model.HistoryEntry{ID: m.next, UserID: uid, Question: q, Answer: a, CreatedAt: time.Now()})
	return m.next, nil
}

func (m *memHistory) ListAll(_ context.Context, uid uint64) ([]model.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.HistoryEntry{}
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == uid {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memHistory) GetByIDAndOwner(_ context.Context, id, uid uint64) (model.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id && r.UserID == uid {
			return r, nil
		}
	}
	return model.HistoryEntry{}, repository.ErrHistoryNotFound
}

func (m *memHistory) Remove(_ context.Context, id, uid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []model.HistoryEntry
	for _, r := range m.rows {
		if !(r.ID == id && r.UserID == uid) {
			kept = append(kept, r)
		}
	}
	m.rows = kept
	return nil
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type app struct {
	e       *echo.Echo
	answer  string
	failure error
}

func newApp(t *testing.T) *app {
	t.Helper()
	a := &app{answer: "```go\nfmt.Println(1)\n```"}
	logger, _ := test.NewNullLogger()
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15}

	chat := service.NewChatService(service.Deps{
		Users:   &memUsers{},
		History: &memHistory{},
		Completion: completion.ClientFunc(func(context.Context, string) (string, error) {
			if a.failure != nil {
				return "", a.failure
			}
			return a.answer, nil
		}),
		Sessions: session.NewMemoryStore(time.Hour),
		Logger:   logger,
	})

	r, err := render.NewRenderer()
	require.NoError(t, err)
	e := echo.New()
	e.Renderer = r

	auth := handler.NewAuthHandler(cfg, chat, logger)
	RegisterRoutes(e, okPinger{}, logger)
	RegisterAuth(e, auth, secret)
	RegisterChat(e, handler.NewChatHandler(chat, logger), secret)
	RegisterWeb(e, handler.NewWebHandler(cfg, auth, chat, logger), secret)
	a.e = e
	return a
}

func (a *app) json(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = strings.NewReader(string(b))
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) form(method, path string, vals url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(vals.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type loginResp struct {
	User struct {
		ID       uint64 `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Access struct {
		Token   string    `json:"token"`
		Expires time.Time `json:"expires"`
	} `json:"access"`
}

type sessionBody struct {
	Outputs []session.Exchange `json:"outputs"`
}

func (a *app) loginJSON(t *testing.T, user, pw string) string {
	t.Helper()
	rec := a.json(t, http.MethodPost, "/v1/auth/register", "", echo.Map{"username": user, "password": pw})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = a.json(t, http.MethodPost, "/v1/auth/login", "", echo.Map{"username": user, "password": pw})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[loginResp](t, rec).Access.Token
}

func TestProbes(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, a.json(t, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusOK, a.json(t, http.MethodGet, "/readyz", "", nil).Code)
}

func TestAPI_RegisterAndLogin(t *testing.T) {
	a := newApp(t)

	rec := a.json(t, http.MethodPost, "/v1/auth/register", "", echo.Map{"username": "alice", "password": "pw1"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = a.json(t, http.MethodPost, "/v1/auth/register", "", echo.Map{"username": "alice", "password": "pw2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"username already exists"}`, rec.Body.String())

	rec = a.json(t, http.MethodPost, "/v1/auth/register", "", echo.Map{"username": "", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.json(t, http.MethodPost, "/v1/auth/login", "", echo.Map{"username": "alice", "password": "pw2"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, rec.Body.String())

	rec = a.json(t, http.MethodPost, "/v1/auth/login", "", echo.Map{"username": "alice", "password": "pw1"})
	require.Equal(t, http.StatusOK, rec.Code)
	lr := decode[loginResp](t, rec)
	assert.Equal(t, "alice", lr.User.Username)
	assert.NotEmpty(t, lr.Access.Token)
	assert.True(t, lr.Access.Expires.After(time.Now()))

	rec = a.json(t, http.MethodGet, "/v1/me", lr.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":1,"username":"alice"}`, rec.Body.String())
}

func TestAPI_ChatFlow(t *testing.T) {
	a := newApp(t)
	tok := a.loginJSON(t, "alice", "pw1")

	rec := a.json(t, http.MethodPost, "/v1/ask", tok, echo.Map{"question": "print one"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ask := decode[struct {
		Entry struct {
			ID     uint64 `json:"id"`
			Answer string `json:"answer"`
		} `json:"entry"`
		Session sessionBody `json:"session"`
	}](t, rec)
	assert.Equal(t, a.answer, ask.Entry.Answer)
	require.Len(t, ask.Session.Outputs, 1)
	id := ask.Entry.ID

	rec = a.json(t, http.MethodGet, "/v1/history", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[[]map[string]any](t, rec)
	require.Len(t, hist, 1)
	assert.Equal(t, "print one", hist[0]["question"])

	rec = a.json(t, http.MethodPost, "/v1/history/1/load", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[sessionBody](t, rec).Outputs, 2)

	rec = a.json(t, http.MethodPost, "/v1/history/99/load", tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.json(t, http.MethodPost, "/v1/history/abc/load", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.json(t, http.MethodDelete, "/v1/history/1", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[sessionBody](t, rec).Outputs)
	assert.Equal(t, uint64(1), id)

	rec = a.json(t, http.MethodGet, "/v1/history", tok, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = a.json(t, http.MethodGet, "/v1/session", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[sessionBody](t, rec).Outputs)
}

func TestAPI_AskErrors(t *testing.T) {
	a := newApp(t)
	tok := a.loginJSON(t, "alice", "pw1")

	rec := a.json(t, http.MethodPost, "/v1/ask", tok, echo.Map{"question": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	a.failure = errors.Join(completion.ErrCompletionFailed, errors.New("quota"))
	rec = a.json(t, http.MethodPost, "/v1/ask", tok, echo.Map{"question": "q"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "error: ")

	rec = a.json(t, http.MethodGet, "/v1/history", tok, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAPI_Isolation(t *testing.T) {
	a := newApp(t)
	alice := a.loginJSON(t, "alice", "pw1")
	bob := a.loginJSON(t, "bob", "pw2")

	rec := a.json(t, http.MethodPost, "/v1/ask", alice, echo.Map{"question": "mine"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.json(t, http.MethodGet, "/v1/history", bob, nil)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, a.json(t, http.MethodPost, "/v1/history/1/load", bob, nil).Code)
	assert.Equal(t, http.StatusOK, a.json(t, http.MethodDelete, "/v1/history/1", bob, nil).Code)

	rec = a.json(t, http.MethodGet, "/v1/history", alice, nil)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestAPI_LogoutInvalidatesToken(t *testing.T) {
	a := newApp(t)
	tok := a.loginJSON(t, "alice", "pw1")

	assert.Equal(t, http.StatusUnauthorized, a.json(t, http.MethodPost, "/v1/auth/logout", "", nil).Code)
	assert.Equal(t, http.StatusNoContent, a.json(t, http.MethodPost, "/v1/auth/logout", tok, nil).Code)

	rec := a.json(t, http.MethodGet, "/v1/history", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"session expired"}`, rec.Body.String())
}

func TestAPI_RequiresToken(t *testing.T) {
	a := newApp(t)
	for _, path := range []string{"/v1/me", "/v1/history", "/v1/session"} {
		assert.Equal(t, http.StatusUnauthorized, a.json(t, http.MethodGet, path, "", nil).Code, path)
	}
}

func tokenCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.TokenCookie {
			return c
		}
	}
	t.Fatal("token cookie not set")
	return nil
}

func TestWeb_Flow(t *testing.T) {
	a := newApp(t)

	rec := a.form(http.MethodGet, "/chat", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	rec = a.form(http.MethodGet, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Login to your account")

	creds := url.Values{"username": {"alice"}, "password": {"pw1"}}
	rec = a.form(http.MethodPost, "/register", creds, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?registered=1", rec.Header().Get(echo.HeaderLocation))

	rec = a.form(http.MethodPost, "/register", creds, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username already exists.")

	rec = a.form(http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"nope"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials.")

	rec = a.form(http.MethodPost, "/login", creds, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	ck := tokenCookie(t, rec)
	assert.True(t, ck.HttpOnly)

	rec = a.form(http.MethodPost, "/chat/ask", url.Values{"question": {"print one in go please"}}, ck)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = a.form(http.MethodGet, "/chat", nil, ck)
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "History (alice)")
	assert.Contains(t, page, "Question: print one in go please")
	assert.Contains(t, page, "/chat/history/1/delete")

	rec = a.form(http.MethodPost, "/chat/history/1/load", nil, ck)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = a.form(http.MethodPost, "/chat/history/1/delete", nil, ck)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = a.form(http.MethodGet, "/chat", nil, ck)
	assert.Contains(t, rec.Body.String(), "No history yet.")

	a.failure = errors.Join(completion.ErrCompletionFailed, errors.New("quota"))
	rec = a.form(http.MethodPost, "/chat/ask", url.Values{"question": {"again"}}, ck)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "error: ")

	rec = a.form(http.MethodPost, "/logout", nil, ck)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, -1, tokenCookie(t, rec).MaxAge)

	rec = a.form(http.MethodGet, "/chat", nil, ck)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}
