package main

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

func formatDate(d time.Time) string {
	return d.Format("January 2, 2006")
}

func formatDateShort(d time.Time) string {
	return d.Format("Jan 2, 2006")
}

type siteParam struct {
	Title       string
	Description string
	BaseUrl     string
}

type templateParam struct {
	Site         siteParam
	PageTitle    string
	FrequentTags postsByTag
	// A short id such as a tag name or "index"
	FileId string
	// Set when syntax highlighting is on, for a <link rel="stylesheet">.
	HighlightCSS string
}

func (t templateParam) IdIs(id string) bool {
	return t.FileId == id
}

type postTemplateParam struct {
	templateParam
	*post
	Content template.HTML
}

type postListTemplateParam struct {
	templateParam
	PageHeading string
	Posts       []*post
	// True when the list is a truncated index and archive.html has the rest.
	HasMore    bool
	ArchiveURL string
}

type tagsTemplateParam struct {
	templateParam
	PostsByTag postsByTag
}

// Layout template names without the .html suffix. global.html, when present,
// is parsed with every layout and executed in its place, so a layout that
// defines "content" gets wrapped in the shared frame.
const globalTemplate = "global"

type templateEngine struct {
	toHtml      renderer
	templateDir string

	mu            sync.Mutex
	templateCache map[string]*template.Template
}

func newTemplateEngine(r renderer, dir string) *templateEngine {
	return &templateEngine{
		toHtml:        r,
		templateDir:   dir,
		templateCache: make(map[string]*template.Template),
	}
}

func (te *templateEngine) hasLayout(name string) bool {
	return fileExists(te.layoutPath(name))
}

func (te *templateEngine) layoutPath(name string) string {
	return filepath.Join(te.templateDir, name+".html")
}

// getTemplate parses and caches the layout called name. A missing layout file
// is an UnknownLayout error.
func (te *templateEngine) getTemplate(name string) (*template.Template, error) {
	te.mu.Lock()
	defer te.mu.Unlock()

	if t, ok := te.templateCache[name]; ok {
		return t, nil
	}

	if name == "" || name == globalTemplate || filepath.Base(name) != name {
		return nil, newBuildError(UnknownLayout, fmt.Errorf("%q is not a usable layout name", name))
	}

	layoutFile := te.layoutPath(name)
	if _, err := os.Stat(layoutFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newBuildError(UnknownLayout, fmt.Errorf("no layout %q in %v", name, te.templateDir))
		}
		return nil, err
	}

	files := []string{layoutFile}
	if globalFile := te.layoutPath(globalTemplate); fileExists(globalFile) {
		files = []string{globalFile, layoutFile}
	}
	t, err := template.ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("parsing layout %q: %w", name, err)
	}

	te.templateCache[name] = t
	return t, nil
}

func (te *templateEngine) renderPost(layout string, tp templateParam, p *post) ([]byte, error) {
	t, err := te.getTemplate(layout)
	if err != nil {
		return nil, err
	}

	body, unterminated := closeOpenFences(p.Body)
	if unterminated {
		slog.Warn("Unterminated fenced code block runs to end of document", "path", p.SourcePath)
	}

	param := postTemplateParam{
		templateParam: tp,
		post:          p,
		Content:       template.HTML(te.toHtml.render(body)),
	}
	return execute(t, param)
}

func (te *templateEngine) renderPostList(layout string, tp templateParam, ps []*post, hasMore bool, archiveURL, pageHeading string) ([]byte, error) {
	t, err := te.getTemplate(layout)
	if err != nil {
		return nil, err
	}
	return execute(t, postListTemplateParam{
		templateParam: tp,
		PageHeading:   pageHeading,
		Posts:         ps,
		HasMore:       hasMore,
		ArchiveURL:    archiveURL,
	})
}

func (te *templateEngine) renderTags(layout string, tp templateParam, byTag postsByTag) ([]byte, error) {
	t, err := te.getTemplate(layout)
	if err != nil {
		return nil, err
	}
	return execute(t, tagsTemplateParam{
		templateParam: tp,
		PostsByTag:    byTag,
	})
}

func execute(t *template.Template, data any) ([]byte, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
