package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	postLayout = `<html><head><title>{{.PageTitle}}</title></head>` +
		`<body><h1>{{.Title}}</h1><p class="date">{{.FormatDate}}</p>{{.Content}}` +
		`<ul class="tags">{{range .Tags}}<li>{{.}}</li>{{end}}</ul></body></html>`
	listLayout = `<html><body><h1>{{.PageTitle}}</h1><ul>` +
		`{{range .Posts}}<li><a href="{{.URL}}">{{.Title}}</a> {{.FormatDateShort}} {{.Description}}</li>{{end}}` +
		`</ul>{{if .HasMore}}<a href="{{.ArchiveURL}}">Older</a>{{end}}</body></html>`
	tagsLayout = `{{range .PostsByTag}}<a href="{{.URL}}">{{.Tag}}</a> {{len .Posts}}
{{end}}`
)

const livedataPost = "---\n" +
	"layout: post\n" +
	"title: \"Transforming LiveData with asynchronous dependencies\"\n" +
	"description: Coroutines meet LiveData\n" +
	"tags: android kotlin\n" +
	"---\n" + kotlinPost

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// newTestSite lays out a source tree with standard layouts plus files and
// returns its configuration.
func newTestSite(t *testing.T, files map[string]string) *SiteConf {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"_layouts/post.html": postLayout,
		"_layouts/list.html": listLayout,
	})
	writeFiles(t, root, files)

	conf, err := readConf("", SiteFlags{Source: root})
	require.NoError(t, err)
	conf.Title = "Test Blog"
	conf.BaseUrl = "https://example.com/"
	return conf
}

func buildSite(t *testing.T, conf *SiteConf) error {
	t.Helper()
	return renderSite(context.Background(), conf)
}

func readOutput(t *testing.T, conf *SiteConf, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(conf.OutputDir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(b)
}

func snapshot(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	files := map[string][]byte{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = b
		return nil
	})
	require.NoError(t, err)
	return files
}

func TestBuild_KotlinPost(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-livedata-transformations-with-coroutines.md": livedataPost,
	})

	require.NoError(t, buildSite(t, conf))

	html := readOutput(t, conf, "2020/07/17/livedata-transformations-with-coroutines.html")
	require.Contains(t, html, "<title>Transforming LiveData with asynchronous dependencies</title>")
	require.Contains(t, html, "July 17, 2020")
	require.Contains(t, html, `<pre><code class="language-kotlin">`)
	require.Contains(t, html, "val total = a * b * c\n")
	require.Contains(t, html, "fun _private_() = liveData { emit(repository.load(id)) }\n")
	require.NotContains(t, html, "<em>private</em>")
	require.Contains(t, html, "<li>android</li><li>kotlin</li>")

	index := readOutput(t, conf, "index.html")
	require.Contains(t, index, `<a href="https://example.com/2020/07/17/livedata-transformations-with-coroutines.html">Transforming LiveData with asynchronous dependencies</a> Jul 17, 2020 Coroutines meet LiveData`)
	require.Contains(t, readOutput(t, conf, "archive.html"), "Transforming LiveData")
	require.Contains(t, readOutput(t, conf, "tags/kotlin.html"), "Transforming LiveData")
	require.Contains(t, readOutput(t, conf, "tags/android.html"), "Transforming LiveData")
}

func TestBuild_MissingEndMarker_FailsAndKeepsOutput(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-livedata-transformations-with-coroutines.md": livedataPost,
	})
	require.NoError(t, buildSite(t, conf))
	before := snapshot(t, conf.OutputDir)

	broken := filepath.Join(conf.SourceDir, "2020-07-25-broken.md")
	writeFiles(t, conf.SourceDir, map[string]string{
		"2020-07-25-broken.md": "---\nlayout: post\ntitle: Broken\n\nBody without end marker\n",
	})

	err := buildSite(t, conf)
	require.Error(t, err)
	require.True(t, errors.Is(err, MalformedFrontMatter))

	var be *BuildError
	require.True(t, errors.As(err, &be))
	require.Equal(t, []string{broken}, be.Paths)

	require.Equal(t, before, snapshot(t, conf.OutputDir))
}

func TestBuild_DuplicateSlug_NamesBothFiles(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-moshi.md":       "---\ntitle: One\n---\nOne\n",
		"2020-07-17-moshi.markdown": "---\ntitle: Two\n---\nTwo\n",
	})

	err := buildSite(t, conf)
	require.True(t, errors.Is(err, DuplicateSlug))

	var be *BuildError
	require.True(t, errors.As(err, &be))
	require.ElementsMatch(t, []string{
		filepath.Join(conf.SourceDir, "2020-07-17-moshi.md"),
		filepath.Join(conf.SourceDir, "2020-07-17-moshi.markdown"),
	}, be.Paths)
	require.NoDirExists(t, conf.OutputDir)
}

func TestBuild_SameSlugOnDifferentDays(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-moshi.md": "One\n",
		"2020-07-18-moshi.md": "Two\n",
	})

	require.NoError(t, buildSite(t, conf))
	require.FileExists(t, filepath.Join(conf.OutputDir, "2020", "07", "17", "moshi.html"))
	require.FileExists(t, filepath.Join(conf.OutputDir, "2020", "07", "18", "moshi.html"))
}

func TestBuild_UnknownLayout(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-moshi.md": "---\nlayout: page\n---\nBody\n",
	})

	err := buildSite(t, conf)
	require.True(t, errors.Is(err, UnknownLayout))

	var be *BuildError
	require.True(t, errors.As(err, &be))
	require.Equal(t, []string{filepath.Join(conf.SourceDir, "2020-07-17-moshi.md")}, be.Paths)
}

func TestBuild_MissingListLayout(t *testing.T) {
	conf := newTestSite(t, map[string]string{"2020-07-17-moshi.md": "Body\n"})
	require.NoError(t, os.Remove(filepath.Join(conf.LayoutsDir, "list.html")))

	require.True(t, errors.Is(buildSite(t, conf), UnknownLayout))
}

func TestBuild_InvalidFilename(t *testing.T) {
	conf := newTestSite(t, map[string]string{"notes.md": "Body\n"})

	err := buildSite(t, conf)
	require.True(t, errors.Is(err, InvalidFilenameConvention))
	require.Contains(t, err.Error(), filepath.Join(conf.SourceDir, "notes.md"))
}

func TestBuild_InvalidUTF8(t *testing.T) {
	conf := newTestSite(t, map[string]string{"2020-07-17-bin.md": "\xff\xfe\xfd"})

	require.True(t, errors.Is(buildSite(t, conf), MalformedContent))
}

func TestBuild_Idempotent(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"_layouts/tags.html": tagsLayout,
		"2020-07-17-livedata-transformations-with-coroutines.md": livedataPost,
		"2020-06-01-moshi.md":        "---\ntags: [kotlin, json]\n---\nMoshi *adapters*.\n",
		"2019-12-24-gson.md":         "+++\ntitle = \"Gson\"\ntags = [\"json\"]\n+++\nGson.\n",
		"static/css/site.css":        "body { margin: 0 }\n",
		"posts/2018-01-01-nested.md": "Nested directory.\n",
	})
	conf.Highlight = true

	require.NoError(t, buildSite(t, conf))
	first := snapshot(t, conf.OutputDir)
	require.NoError(t, buildSite(t, conf))
	second := snapshot(t, conf.OutputDir)

	require.Equal(t, first, second)
	require.Contains(t, first, "chroma.css")
	require.Contains(t, first, "static/css/site.css")
	require.Contains(t, first, "tags.html")
	require.Contains(t, first, "2018/01/01/nested.html")
}

func TestBuild_RemovesStaleOutput(t *testing.T) {
	conf := newTestSite(t, map[string]string{"2020-07-17-moshi.md": "Body\n"})
	writeFiles(t, conf.OutputDir, map[string]string{"stale.html": "old"})

	require.NoError(t, buildSite(t, conf))
	require.NoFileExists(t, filepath.Join(conf.OutputDir, "stale.html"))
}

func TestBuild_StaticCopyFailure_KeepsOutput(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-livedata.md":      "---\ntags: android\n---\nLiveData.\n",
		"static/kotlin.html/site.css": "body { margin: 0 }\n",
	})
	conf.TagsOutDir = "static"
	require.NoError(t, buildSite(t, conf))
	before := snapshot(t, conf.OutputDir)
	require.Contains(t, before, "static/android.html")
	require.Contains(t, before, "static/kotlin.html/site.css")

	// The kotlin tag page is a file where the static files need a directory.
	writeFiles(t, conf.SourceDir, map[string]string{
		"2020-07-25-moshi.md": "---\ntags: kotlin\n---\nMoshi.\n",
	})
	require.Error(t, buildSite(t, conf))
	require.Equal(t, before, snapshot(t, conf.OutputDir))

	entries, err := os.ReadDir(filepath.Dir(conf.OutputDir))
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), "."+filepath.Base(conf.OutputDir)), e.Name())
	}
}

func TestReadSite_SkipsUnderscoreDirectories(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-top.md":       "Top.\n",
		"_posts/2020-07-18-in.md": "Jekyll style.\n",
	})

	site, err := ReadSite(conf)
	require.NoError(t, err)
	require.Len(t, site.posts, 1)
	require.Equal(t, "top", site.posts[0].Slug)

	conf.SourceDir = filepath.Join(conf.SourceDir, "_posts")
	site, err = ReadSite(conf)
	require.NoError(t, err)
	require.Len(t, site.posts, 1)
	require.Equal(t, "in", site.posts[0].Slug)
}

func TestReadSite_OrdersByDateThenSlug(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2019-01-01-c.md": "c\n",
		"2020-07-17-b.md": "b\n",
		"2020-07-17-a.md": "a\n",
		"2021-03-09-d.md": "d\n",
	})

	site, err := ReadSite(conf)
	require.NoError(t, err)

	var slugs []string
	for _, p := range site.posts {
		slugs = append(slugs, p.Slug)
	}
	require.Equal(t, []string{"d", "a", "b", "c"}, slugs)
}

func TestReadSite_Drafts(t *testing.T) {
	files := map[string]string{
		"2020-07-17-public.md":  "Public\n",
		"2020-07-18-hidden.md":  "---\npublished: false\n---\nHidden\n",
		"2020-07-19-draft.md":   "---\ndraft: true\n---\nDraft\n",
		"_drafts/2020-07-20.md": "not even a valid name\n",
	}

	conf := newTestSite(t, files)
	site, err := ReadSite(conf)
	require.NoError(t, err)
	require.Len(t, site.posts, 1)
	require.Equal(t, "public", site.posts[0].Slug)

	conf.Drafts = true
	site, err = ReadSite(conf)
	require.NoError(t, err)
	require.Len(t, site.posts, 3)
}

func TestReadSite_TitleFromSlug(t *testing.T) {
	conf := newTestSite(t, map[string]string{"2020-07-17-moshi-and-kotlin.md": "Body\n"})

	site, err := ReadSite(conf)
	require.NoError(t, err)
	require.Equal(t, "Moshi And Kotlin", site.posts[0].Title)
	require.Equal(t, "post", site.posts[0].Layout)
}

func TestRender_UniqueOutputPaths(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-a.md": "---\ntags: x y\n---\na\n",
		"2020-07-17-b.md": "---\ntags: y\n---\nb\n",
		"2020-07-18-a.md": "a again\n",
	})

	site, err := ReadSite(conf)
	require.NoError(t, err)
	pages, err := site.Render(context.Background())
	require.NoError(t, err)

	seen := map[permalink]bool{}
	for _, p := range pages {
		require.False(t, seen[p.Path], p.Path)
		seen[p.Path] = true
	}
	// 3 posts, 2 tags, archive, index
	require.Len(t, pages, 7)
}

func TestRender_TagCollision(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-a.md": "---\ntags: Kotlin\n---\na\n",
		"2020-07-18-b.md": "---\ntags: kotlin\n---\nb\n",
	})

	require.True(t, errors.Is(buildSite(t, conf), DuplicateSlug))
}

func TestRender_IndexLimit(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"2020-07-17-older.md": "---\ntitle: Older\n---\n",
		"2020-07-18-newer.md": "---\ntitle: Newer\n---\n",
	})
	conf.MaxPostsOnIndex = 1

	require.NoError(t, buildSite(t, conf))

	index := readOutput(t, conf, "index.html")
	require.Contains(t, index, "Newer")
	require.NotContains(t, index, "Older</a> Jul 17, 2020")
	require.Contains(t, index, `<a href="https://example.com/archive.html">Older</a>`)

	archive := readOutput(t, conf, "archive.html")
	require.Contains(t, archive, "Newer")
	require.Contains(t, archive, "Older")
}

func TestBuild_GlobalLayoutWrapsPages(t *testing.T) {
	conf := newTestSite(t, map[string]string{
		"_layouts/global.html": `<!doctype html><main>{{template "content" .}}</main>`,
		"_layouts/post.html":   `{{define "content"}}<article>{{.Content}}</article>{{end}}`,
		"_layouts/list.html":   `{{define "content"}}{{range .Posts}}{{.Title}};{{end}}{{end}}`,
		"2020-07-17-moshi.md":  "Hello\n",
	})

	require.NoError(t, buildSite(t, conf))
	require.Equal(t, "<!doctype html><main><article><p>Hello</p>\n</article></main>",
		readOutput(t, conf, "2020/07/17/moshi.html"))
	require.Equal(t, "<!doctype html><main>Moshi;</main>", readOutput(t, conf, "index.html"))
}

func TestCheckOutputDir(t *testing.T) {
	conf := newTestSite(t, nil)

	conf.OutputDir = conf.SourceDir
	require.True(t, errors.Is(checkOutputDir(conf), InvalidConfig))

	conf.OutputDir = filepath.Dir(conf.SourceDir)
	require.True(t, errors.Is(checkOutputDir(conf), InvalidConfig))

	conf.OutputDir = filepath.Join(conf.SourceDir, "_site")
	require.NoError(t, checkOutputDir(conf))
}
