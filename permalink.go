package main

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const defaultPermalink = "/:year/:month/:day/:slug.html"

// parsePostFilename splits a YYYY-MM-DD-slug.ext file name into its date and
// slug.
func parsePostFilename(filename string) (time.Time, string, error) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.SplitN(base, "-", 4)
	if len(parts) < 4 {
		return time.Time{}, "", fmt.Errorf("%q does not match YYYY-MM-DD-slug", base)
	}

	year, err := digits(parts[0], 4)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("year in %q: %w", base, err)
	}
	month, err := digits(parts[1], 2)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("month in %q: %w", base, err)
	}
	day, err := digits(parts[2], 2)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("day in %q: %w", base, err)
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return time.Time{}, "", fmt.Errorf("%s-%s-%s is not a calendar date", parts[0], parts[1], parts[2])
	}

	slug := parts[3]
	if err := checkSlug(slug); err != nil {
		return time.Time{}, "", fmt.Errorf("slug in %q: %w", base, err)
	}

	return date, slug, nil
}

func digits(s string, n int) (int, error) {
	if len(s) != n {
		return 0, fmt.Errorf("%q must have %d digits", s, n)
	}
	v := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%q is not numeric", s)
		}
		v = v*10 + int(r-'0')
	}
	return v, nil
}

func checkSlug(slug string) error {
	if slug == "" {
		return errors.New("empty slug")
	}
	for _, r := range slug {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("%q contains %q, only lowercase letters, digits, '-', '_' and '.' are allowed", slug, r)
		}
	}
	return nil
}

// permalink is where a page lives, as a slash separated path relative to
// the site root, starting with "/".
type permalink string

func resolvePermalink(pattern string, date time.Time, slug string) permalink {
	p := strings.NewReplacer(
		":year", fmt.Sprintf("%04d", date.Year()),
		":month", fmt.Sprintf("%02d", int(date.Month())),
		":day", fmt.Sprintf("%02d", date.Day()),
		":slug", slug,
		":title", slug,
	).Replace(pattern)
	return newPermalink(p)
}

func newPermalink(p string) permalink {
	dir := strings.HasSuffix(p, "/")
	p = path.Clean("/" + p)
	if dir {
		p = path.Join(p, "index.html")
	}
	return permalink(p)
}

// URL prefixes the path with the site's base URL. A trailing index.html is
// dropped, keeping the directory's slash.
func (p permalink) URL(baseUrl string) string {
	s := string(p)
	if path.Base(s) == "index.html" {
		s = strings.TrimSuffix(s, "index.html")
	}
	return strings.TrimSuffix(baseUrl, "/") + s
}

func (p permalink) outputPath(outDir string) string {
	return filepath.Join(outDir, filepath.FromSlash(string(p)))
}

func checkPermalinkPattern(pattern string) error {
	if !strings.Contains(pattern, ":slug") && !strings.Contains(pattern, ":title") {
		return fmt.Errorf("permalink pattern %q must contain :slug or :title", pattern)
	}
	return nil
}
