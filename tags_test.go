package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testPost(slug string, date string, tags ...tag) *post {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return &post{Title: slug, Slug: slug, Date: d, Tags: tags}
}

func TestGroupByTag(t *testing.T) {
	ps := posts{
		testPost("c", "2020-09-01", "kotlin", "json"),
		testPost("b", "2020-07-17", "kotlin", "android"),
		testPost("a", "2020-01-01", "json"),
	}

	byTag := groupByTag(ps)

	require.Len(t, byTag, 3)
	// kotlin and json tie on count and newest post, so the name decides.
	require.Equal(t, tag("json"), byTag[0].Tag)
	require.Equal(t, tag("kotlin"), byTag[1].Tag)
	require.Equal(t, tag("android"), byTag[2].Tag)
	require.Equal(t, posts{ps[0], ps[2]}, byTag[0].Posts)
	require.Equal(t, "Jan 1, 2020", byTag[0].EarliestDateFormatted())
	require.Equal(t, "Sep 1, 2020", byTag[0].LatestDateFormatted())
}

func TestFrequentTags(t *testing.T) {
	ps := posts{
		testPost("c", "2020-09-01", "kotlin"),
		testPost("b", "2020-07-17", "kotlin", "android"),
		testPost("a", "2020-01-01", "json"),
	}
	byTag := groupByTag(ps)

	frequent := byTag.frequentTags(5, 2)
	require.Len(t, frequent, 1)
	require.Equal(t, tag("kotlin"), frequent[0].Tag)

	require.Len(t, byTag.frequentTags(2, 1), 2)
	require.Empty(t, byTag.frequentTags(0, 1))
}

func TestTagId(t *testing.T) {
	require.Equal(t, "live_data", tag("Live Data").Id())
	require.Equal(t, "a_b", tag("a/b").Id())
}
