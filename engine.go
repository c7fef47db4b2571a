// Blogsite is a static blog generator. It reads Markdown posts named
// YYYY-MM-DD-slug.md with YAML or TOML front matter, renders them through
// html/template layouts and writes a static site with an index, an archive
// and per-tag listing pages.
//
// You need to provide your own layouts: at least post.html and list.html,
// optionally global.html as a shared frame and tags.html for a tag overview.
//
// Posts are searched recursively below the source directory. Hidden
// directories and directories whose name starts with "_" (_layouts, _site,
// _drafts, a Jekyll style _posts) are not searched; to build a _posts
// directory, use it as the source directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/otiai10/copy"
	"golang.org/x/sync/errgroup"
)

type Site struct {
	posts posts
	conf  *SiteConf
}

// renderedPage is one output file. Path is relative to the output directory.
type renderedPage struct {
	Path   permalink
	HTML   []byte
	source string
}

// ReadSite discovers and parses every post. The posts come back in site
// order, newest first.
func ReadSite(conf *SiteConf) (*Site, error) {
	files, err := findPostFiles(conf.SourceDir, conf.PostExtensions, conf.LayoutsDir, conf.StaticDir, conf.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("finding posts in %v: %w", conf.SourceDir, err)
	}

	thisSite := Site{
		posts: make(posts, 0, len(files)),
		conf:  conf,
	}

	for _, f := range files {
		p, err := readPostFromFile(f, conf)
		if err != nil {
			return nil, withPath(err, f)
		}
		if p.Draft && !conf.Drafts {
			slog.Debug("Skipping draft", "path", f)
			continue
		}
		slog.Debug("Read post", "path", f, "post", p)
		thisSite.posts = append(thisSite.posts, p)
	}

	if err := checkDuplicatePermalinks(thisSite.posts); err != nil {
		return nil, err
	}

	slices.SortFunc(thisSite.posts, comparePosts)

	return &thisSite, nil
}

func checkDuplicatePermalinks(ps posts) error {
	seen := make(map[permalink]*post, len(ps))
	for _, p := range ps {
		if other, ok := seen[p.Permalink]; ok {
			return newBuildError(DuplicateSlug,
				fmt.Errorf("both resolve to %v", p.Permalink),
				other.SourcePath, p.SourcePath)
		}
		seen[p.Permalink] = p
	}
	return nil
}

// Build renders the whole site in memory and, only if that succeeded,
// replaces the output directory with it.
func (s *Site) Build(ctx context.Context) error {
	pages, err := s.Render(ctx)
	if err != nil {
		return err
	}

	slog.Info("Writing site", "dir", s.conf.OutputDir, "posts", len(s.posts), "pages", len(pages))
	return s.Write(ctx, pages)
}

func (s *Site) templateParam() templateParam {
	return templateParam{
		Site: siteParam{
			Title:       s.conf.Title,
			Description: s.conf.Description,
			BaseUrl:     s.conf.BaseUrl,
		},
	}
}

// Render produces every page of the site: posts, index, archive, tag pages,
// the tag overview when a layout for it exists, and the highlighting
// stylesheet when highlighting is on.
func (s *Site) Render(ctx context.Context) ([]renderedPage, error) {
	var highlighter *codeHighlighter
	if s.conf.Highlight {
		highlighter = newCodeHighlighter(s.conf.HighlightStyle)
	}
	engine := newTemplateEngine(newMarkdownRenderer(highlighter), s.conf.LayoutsDir)

	// Resolve every layout before rendering anything.
	if _, err := engine.getTemplate(s.conf.ListLayout); err != nil {
		return nil, withPath(err, engine.layoutPath(s.conf.ListLayout))
	}
	for _, p := range s.posts {
		if _, err := engine.getTemplate(p.Layout); err != nil {
			return nil, withPath(err, p.SourcePath)
		}
	}

	byTag := groupByTag(s.posts)
	for i := range byTag {
		byTag[i].URL = s.tagPermalink(byTag[i].Tag).URL(s.conf.BaseUrl)
	}
	slog.Debug("Posts by tag", "tags", byTag)

	// One global template parameter holder, copied and adjusted per page.
	globalTP := s.templateParam()
	globalTP.FrequentTags = byTag.frequentTags(s.conf.NumFrequentTags, s.conf.MinPostsForFrequentTags)
	if highlighter != nil {
		globalTP.HighlightCSS = highlightCSSPath.URL(s.conf.BaseUrl)
	}

	pages := make([]renderedPage, len(s.posts), len(s.posts)+len(byTag)+4)

	// Render the posts.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.conf.Workers)
	for i, p := range s.posts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tp := globalTP
			tp.PageTitle = p.Title
			tp.FileId = p.Slug
			html, err := engine.renderPost(p.Layout, tp, p)
			if err != nil {
				return withPath(err, p.SourcePath)
			}
			pages[i] = renderedPage{Path: p.Permalink, HTML: html, source: p.SourcePath}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Render the tag pages.
	for _, t := range byTag {
		tp := globalTP
		tp.PageTitle = t.Tag.String()
		tp.FileId = t.Tag.Id()
		html, err := engine.renderPostList(s.conf.ListLayout, tp, t.Posts, false, "", t.Tag.String())
		if err != nil {
			return nil, fmt.Errorf("rendering tag page %q: %w", t.Tag, err)
		}
		pages = append(pages, renderedPage{Path: s.tagPermalink(t.Tag), HTML: html, source: "tag " + t.Tag.String()})
	}

	// Render the tag overview page.
	if engine.hasLayout(s.conf.TagsLayout) {
		tp := globalTP
		tp.PageTitle = "Tags"
		tp.FileId = "tags"
		html, err := engine.renderTags(s.conf.TagsLayout, tp, byTag)
		if err != nil {
			return nil, fmt.Errorf("rendering tag overview: %w", err)
		}
		pages = append(pages, renderedPage{Path: newPermalink("tags.html"), HTML: html, source: "tag overview"})
	} else {
		slog.Debug("No tags layout, skipping tag overview", "layout", s.conf.TagsLayout)
	}

	// Render archive.html with all posts.
	archive := newPermalink("archive.html")
	tp := globalTP
	tp.PageTitle = "Archive"
	tp.FileId = "archive"
	html, err := engine.renderPostList(s.conf.ListLayout, tp, s.posts, false, "", "Archive")
	if err != nil {
		return nil, fmt.Errorf("rendering archive: %w", err)
	}
	pages = append(pages, renderedPage{Path: archive, HTML: html, source: "archive"})

	// Render index.html with the last MaxPostsOnIndex posts.
	postsForIndex := s.posts
	haveMorePosts := s.conf.MaxPostsOnIndex > 0 && len(s.posts) > s.conf.MaxPostsOnIndex
	if haveMorePosts {
		postsForIndex = postsForIndex[:s.conf.MaxPostsOnIndex]
	}
	tp = globalTP
	tp.PageTitle = s.conf.Title
	tp.FileId = "index"
	html, err = engine.renderPostList(s.conf.ListLayout, tp, postsForIndex, haveMorePosts, archive.URL(s.conf.BaseUrl), "")
	if err != nil {
		return nil, fmt.Errorf("rendering index: %w", err)
	}
	pages = append(pages, renderedPage{Path: newPermalink("index.html"), HTML: html, source: "index"})

	if highlighter != nil {
		css, err := highlighter.css()
		if err != nil {
			return nil, fmt.Errorf("writing highlighting stylesheet: %w", err)
		}
		pages = append(pages, renderedPage{Path: highlightCSSPath, HTML: css, source: "highlighting stylesheet"})
	}

	if err := checkUniquePaths(pages); err != nil {
		return nil, err
	}
	return pages, nil
}

var highlightCSSPath = newPermalink("chroma.css")

func (s *Site) tagPermalink(t tag) permalink {
	return newPermalink(s.conf.TagsOutDir + "/" + t.Id() + ".html")
}

func checkUniquePaths(pages []renderedPage) error {
	seen := make(map[permalink]string, len(pages))
	for _, p := range pages {
		if other, ok := seen[p.Path]; ok {
			return newBuildError(DuplicateSlug,
				fmt.Errorf("output path collision on %v", p.Path),
				other, p.source)
		}
		seen[p.Path] = p.source
	}
	return nil
}

// Write replaces the output directory with pages and the static files. The
// site is assembled in a hidden staging directory next to the output
// directory, which is only swapped in once everything was written. The old
// output directory is treated as disposable and removed.
func (s *Site) Write(ctx context.Context, pages []renderedPage) error {
	if err := checkOutputDir(s.conf); err != nil {
		return err
	}

	outDir := filepath.Clean(s.conf.OutputDir)
	if err := os.MkdirAll(filepath.Dir(outDir), os.FileMode(0775)); err != nil {
		return fmt.Errorf("creating parent of output directory %v: %w", outDir, err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(outDir), "."+filepath.Base(outDir)+"-*")
	if err != nil {
		return fmt.Errorf("creating staging directory for %v: %w", outDir, err)
	}
	defer os.RemoveAll(staging)

	if err := os.Chmod(staging, os.FileMode(0775)); err != nil {
		return err
	}
	if err := writePages(ctx, staging, pages, s.conf.Workers); err != nil {
		return err
	}
	if err := s.CopyStaticFiles(staging); err != nil {
		return err
	}

	if err := os.RemoveAll(outDir); err != nil {
		return fmt.Errorf("cleaning output directory %v: %w", outDir, err)
	}
	if err := os.Rename(staging, outDir); err != nil {
		return fmt.Errorf("moving site into %v: %w", outDir, err)
	}
	return nil
}

func writePages(ctx context.Context, outDir string, pages []renderedPage, workers int) error {
	dirs := make([]string, 0, len(pages))
	for _, p := range pages {
		dirs = append(dirs, filepath.Dir(p.Path.outputPath(outDir)))
	}
	dirs = append(dirs, outDir)
	slices.Sort(dirs)
	for _, d := range slices.Compact(dirs) {
		if err := os.MkdirAll(d, os.FileMode(0775)); err != nil {
			return fmt.Errorf("creating directory %v: %w", d, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return os.WriteFile(p.Path.outputPath(outDir), p.HTML, os.FileMode(0664))
		})
	}
	return g.Wait()
}

// checkOutputDir refuses output directories whose removal would take
// sources with it.
func checkOutputDir(conf *SiteConf) error {
	out, err := filepath.Abs(conf.OutputDir)
	if err != nil {
		return err
	}
	if out == filepath.Dir(out) {
		return newBuildError(InvalidConfig, fmt.Errorf("refusing to use filesystem root %v as output directory", out))
	}
	for _, dir := range []string{conf.SourceDir, conf.LayoutsDir, conf.StaticDir} {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		if isWithin(out, abs) {
			return newBuildError(InvalidConfig, fmt.Errorf("output directory %v would contain %v", out, abs))
		}
	}
	return nil
}

func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// CopyStaticFiles copies the static directory into outDir under its own
// base name.
func (s *Site) CopyStaticFiles(outDir string) error {
	srcDir := s.conf.StaticDir
	if _, err := os.Stat(srcDir); errors.Is(err, fs.ErrNotExist) {
		slog.Debug("No static files", "dir", srcDir)
		return nil
	}
	dest := filepath.Join(outDir, filepath.Base(srcDir))
	slog.Debug("Copying static files", "from", srcDir, "to", dest)
	if err := copy.Copy(srcDir, dest); err != nil {
		return fmt.Errorf("copying static files from %v: %w", srcDir, err)
	}
	return nil
}

// withPath attaches the offending file to err unless it already names one.
func withPath(err error, path string) error {
	var be *BuildError
	if errors.As(err, &be) {
		if len(be.Paths) == 0 {
			return newBuildError(be.Kind, be.Err, path)
		}
		return err
	}
	return fmt.Errorf("%v: %w", path, err)
}
