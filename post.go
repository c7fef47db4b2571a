package main

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

type post struct {
	SourcePath  string
	Layout      string
	Title       string
	Description string
	Tags        []tag
	Date        time.Time
	Slug        string
	Body        []byte
	Params      map[string]any
	Draft       bool
	Permalink   permalink

	url string
}

// Called from templates
func (p *post) FormatDate() string {
	return formatDate(p.Date)
}

// Called from templates
func (p *post) FormatDateShort() string {
	return formatDateShort(p.Date)
}

// Called from templates
func (p *post) URL() string {
	return p.url
}

func (p *post) String() string {
	b := new(bytes.Buffer)
	b.WriteString("title: ")
	b.WriteString(p.Title)
	b.WriteString("\ndate: ")
	b.WriteString(p.Date.Format(time.DateOnly))
	b.WriteString("\nslug: ")
	b.WriteString(p.Slug)
	b.WriteString("\nlayout: ")
	b.WriteString(p.Layout)
	b.WriteString("\ndescription: ")
	b.WriteString(p.Description)
	b.WriteString("\ntags: ")
	fmt.Fprintln(b, p.Tags)

	body := p.Body
	if len(body) > 200 {
		body = append(body[:200:200], '.', '.', '.')
	}
	b.WriteString("body: ")
	b.Write(body)

	return b.String()
}

type posts []*post

// comparePosts orders newest first, ties broken by slug.
func comparePosts(a, b *post) int {
	if c := b.Date.Compare(a.Date); c != 0 {
		return c
	}
	return strings.Compare(a.Slug, b.Slug)
}

func (ps posts) earliestDate() time.Time {
	var t time.Time
	for i, p := range ps {
		if i == 0 || p.Date.Before(t) {
			t = p.Date
		}
	}
	return t
}

func (ps posts) latestDate() time.Time {
	var t time.Time
	for _, p := range ps {
		if p.Date.After(t) {
			t = p.Date
		}
	}
	return t
}
