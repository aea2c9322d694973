package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/bhuvanesh-bit/scriptbot/internal/model"
	"github.com/bhuvanesh-bit/scriptbot/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoginPage is the data for login.html.
type LoginPage struct {
	Tab      string // "login" or "register"
	Username string
	Error    string
	Notice   string
}

// ChatPage is the data for chat.html.
type ChatPage struct {
	Username string
	History  []model.HistoryEntry
	Outputs  []session.Exchange
	Question string
	Error    string
}

// Renderer implements echo.Renderer over the embedded templates.
type Renderer struct {
	t *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	t, err := template.New("").Funcs(template.FuncMap{
		"preview": Preview,
		"answer":  Answer,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{t: t}, nil
}

// Render executes the named template.
func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	return r.t.ExecuteTemplate(w, name, data)
}
