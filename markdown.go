package main

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/russross/blackfriday/v2"
)

type renderer interface {
	render(in []byte) []byte
}

const (
	htmlFlags = blackfriday.UseXHTML |
		blackfriday.Smartypants |
		blackfriday.SmartypantsFractions |
		blackfriday.SmartypantsLatexDashes

	extensions = blackfriday.NoIntraEmphasis |
		blackfriday.Tables |
		blackfriday.FencedCode |
		blackfriday.Autolink |
		blackfriday.Strikethrough |
		blackfriday.SpaceHeadings |
		blackfriday.HeadingIDs
)

// markdownRenderer is safe for concurrent use: each render call gets its own
// blackfriday renderer, which keeps per-document state.
type markdownRenderer struct {
	highlighter *codeHighlighter
}

func newMarkdownRenderer(h *codeHighlighter) renderer {
	return &markdownRenderer{highlighter: h}
}

func (m *markdownRenderer) render(in []byte) []byte {
	var r blackfriday.Renderer = blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: htmlFlags,
	})
	if m.highlighter != nil {
		r = &highlightingRenderer{Renderer: r, h: m.highlighter}
	}
	return blackfriday.Run(in, blackfriday.WithRenderer(r), blackfriday.WithExtensions(extensions))
}

// highlightingRenderer replaces fenced code blocks in a language chroma
// knows with highlighted markup. Everything else goes to the HTML renderer.
type highlightingRenderer struct {
	blackfriday.Renderer
	h *codeHighlighter
}

func (r *highlightingRenderer) RenderNode(w io.Writer, node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
	if node.Type == blackfriday.CodeBlock && len(node.Info) > 0 {
		lang, _, _ := strings.Cut(string(node.Info), " ")
		if r.h.highlight(w, lang, string(node.Literal)) {
			return blackfriday.GoToNext
		}
	}
	return r.Renderer.RenderNode(w, node, entering)
}

type codeHighlighter struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newCodeHighlighter(styleName string) *codeHighlighter {
	return &codeHighlighter{
		style:     styles.Get(styleName),
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4)),
	}
}

// highlight writes code in lang to w. It reports false, having written
// nothing, if lang is unknown or lexing fails.
func (h *codeHighlighter) highlight(w io.Writer, lang, code string) bool {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return false
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return false
	}
	var b bytes.Buffer
	if err := h.formatter.Format(&b, h.style, iterator); err != nil {
		return false
	}
	_, err = w.Write(b.Bytes())
	return err == nil
}

func (h *codeHighlighter) css() ([]byte, error) {
	var b bytes.Buffer
	if err := h.formatter.WriteCSS(&b, h.style); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// closeOpenFences appends a closing fence when the text ends inside a fenced
// code block, so the block runs to the end of the document instead of being
// read as ordinary paragraphs. It reports whether it had to.
func closeOpenFences(text []byte) ([]byte, bool) {
	var open string
	r := bufio.NewScanner(bytes.NewReader(text))
	r.Buffer(make([]byte, 0, 64*1024), len(text)+1)

	for r.Scan() {
		line := strings.TrimRight(r.Text(), "\r")
		indent := len(line) - len(strings.TrimLeft(line, " "))
		if indent > 3 {
			continue
		}
		fence := fencePrefix(line[indent:])
		if fence == "" {
			continue
		}
		switch {
		case open == "":
			open = fence
		case fence[0] == open[0] && len(fence) >= len(open) &&
			strings.TrimSpace(line[indent+len(fence):]) == "":
			open = ""
		}
	}

	if open == "" {
		return text, false
	}

	closed := make([]byte, 0, len(text)+len(open)+2)
	closed = append(closed, text...)
	if len(closed) > 0 && closed[len(closed)-1] != '\n' {
		closed = append(closed, '\n')
	}
	closed = append(closed, open...)
	closed = append(closed, '\n')
	return closed, true
}

// fencePrefix returns the run of three or more backticks or tildes that
// starts s, or "".
func fencePrefix(s string) string {
	if len(s) < 3 || (s[0] != '`' && s[0] != '~') {
		return ""
	}
	n := 0
	for n < len(s) && s[n] == s[0] {
		n++
	}
	if n < 3 {
		return ""
	}
	return s[:n]
}
