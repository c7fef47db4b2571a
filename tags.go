package main

import (
	"bytes"
	"cmp"
	"slices"
	"strings"
)

type tag string

func (t tag) String() string { return string(t) }

// Id is the tag's file name on disk and in URLs.
func (t tag) Id() string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		}
		return r
	}, strings.ToLower(t.String()))
}

type tagWithPosts struct {
	Tag   tag
	Posts posts
	URL   string
}

func (t tagWithPosts) EarliestDateFormatted() string {
	return formatDateShort(t.Posts.earliestDate())
}

func (t tagWithPosts) LatestDateFormatted() string {
	return formatDateShort(t.Posts.latestDate())
}

// Posts grouped by tag. Create using groupByTag, which sorts by number of
// posts per tag, then by newest post, then by name.
type postsByTag []tagWithPosts

func (pt *postsByTag) addPost(t tag, p *post) {
	for i, tp := range *pt {
		if tp.Tag == t {
			tp.Posts = append(tp.Posts, p)
			(*pt)[i] = tp
			return
		}
	}

	*pt = append(*pt, tagWithPosts{Tag: t, Posts: posts{p}})
}

func (pt postsByTag) String() string {
	b := new(bytes.Buffer)
	for _, t := range pt {
		b.WriteString(t.Tag.String())
		b.WriteString(": ")
		for i, p := range t.Posts {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Title)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Return the most frequent n tags with at least minPosts posts.
func (pt postsByTag) frequentTags(n, minPosts int) postsByTag {
	frequent := make(postsByTag, 0, n)
	for i, t := range pt {
		if i == n || len(t.Posts) < minPosts {
			break
		}
		frequent = append(frequent, t)
	}

	return frequent
}

// groupByTag expects ps in site order and keeps that order within a tag.
func groupByTag(ps posts) postsByTag {
	byTag := make(postsByTag, 0, 20)

	for _, p := range ps {
		for _, t := range p.Tags {
			byTag.addPost(t, p)
		}
	}

	slices.SortFunc(byTag, func(a, b tagWithPosts) int {
		// More posts = comes first (descending order)
		if c := cmp.Compare(len(b.Posts), len(a.Posts)); c != 0 {
			return c
		}
		if c := b.Posts.latestDate().Compare(a.Posts.latestDate()); c != 0 {
			return c
		}
		return strings.Compare(a.Tag.String(), b.Tag.String())
	})

	return byTag
}
