package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// findPostFiles walks dir for files with one of the extensions. Hidden
// entries, directories starting with "_" and the skip directories are left
// out. The result is in lexical order.
func findPostFiles(dir string, fileExtensions []string, skip ...string) ([]string, error) {
	files := make([]string, 0, 100)

	skipDirs := make([]string, 0, len(skip))
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			skipDirs = append(skipDirs, abs)
		}
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if abs, err := filepath.Abs(path); err == nil && slices.Contains(skipDirs, abs) {
				return filepath.SkipDir
			}
			if strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if strings.HasPrefix(name, "_") {
				slog.Info("Skipping directory, point --source at it to build its posts", "dir", path)
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if slices.Contains(fileExtensions, strings.ToLower(filepath.Ext(name))) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func readPostFromFile(path string, conf *SiteConf) (*post, error) {
	date, slug, err := parsePostFilename(path)
	if err != nil {
		return nil, newBuildError(InvalidFilenameConvention, err, path)
	}

	fileContent, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(fileContent) {
		return nil, newBuildError(MalformedContent, errors.New("file is not valid UTF-8"), path)
	}

	rawFrontMatter, body, format, err := splitFrontMatter(fileContent)
	if err != nil {
		return nil, newBuildError(MalformedFrontMatter, err, path)
	}
	meta, err := parseFrontMatter(rawFrontMatter, format)
	if err != nil {
		return nil, newBuildError(MalformedFrontMatter, err, path)
	}

	p := &post{
		SourcePath:  path,
		Layout:      stringParam(meta, "layout"),
		Title:       stringParam(meta, "title"),
		Description: stringParam(meta, "description"),
		Date:        date,
		Slug:        slug,
		Body:        body,
		Params:      meta,
	}

	if p.Layout == "" {
		p.Layout = conf.PostLayout
	}
	if p.Title == "" {
		p.Title = titleFromSlug(slug)
	}
	for _, t := range listParam(meta, "tags") {
		p.Tags = append(p.Tags, tag(t))
	}
	if published, ok := boolParam(meta, "published"); ok && !published {
		p.Draft = true
	}
	if draft, ok := boolParam(meta, "draft"); ok && draft {
		p.Draft = true
	}

	p.Permalink = resolvePermalink(conf.Permalink, date, slug)
	p.url = p.Permalink.URL(conf.BaseUrl)

	return p, nil
}

func titleFromSlug(slug string) string {
	words := strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	return cases.Title(language.English).String(words)
}
