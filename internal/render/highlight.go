// Package render turns stored answers into HTML and serves the web pages.
package render

import (
	"html/template"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// PreviewLen is the number of characters of a question shown in the
// history sidebar.
const PreviewLen = 30

// Preview shortens question to PreviewLen characters, adding an ellipsis
// when something was cut.
func Preview(question string) string {
	q := strings.Join(strings.Fields(question), " ")
	if utf8.RuneCountInString(q) <= PreviewLen {
		return q
	}
	return string([]rune(q)[:PreviewLen]) + "..."
}

var fence = regexp.MustCompile("(?s)```([\\w+#.-]*)[ \\t]*\\n(.*?)```")

var formatter = html.New(html.WithClasses(false), html.TabWidth(4))

// Answer renders a completion as HTML.  Fenced code blocks are highlighted
// using the language named after the opening fence, or a guessed one.
// Surrounding prose is escaped.  An answer without fences is treated as a
// single code block.
func Answer(answer string) template.HTML {
	matches := fence.FindAllStringSubmatchIndex(answer, -1)
	if len(matches) == 0 {
		return highlight(answer, "")
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(prose(answer[last:m[0]]))
		lang := answer[m[2]:m[3]]
		code := answer[m[4]:m[5]]
		b.WriteString(string(highlight(code, lang)))
		last = m[1]
	}
	b.WriteString(prose(answer[last:]))
	return template.HTML(b.String())
}

func prose(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return `<div class="prose">` + template.HTMLEscapeString(s) + `</div>`
}

func highlight(code, lang string) template.HTML {
	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return template.HTML(`<pre class="code">` + template.HTMLEscapeString(code) + `</pre>`)
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return template.HTML(`<pre class="code">` + template.HTMLEscapeString(code) + `</pre>`)
	}
	return template.HTML(b.String())
}
