package main

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type frontMatterFormat int

const (
	noFrontMatter frontMatterFormat = iota
	yamlFrontMatter
	tomlFrontMatter
)

var frontMatterMarkers = []struct {
	marker string
	format frontMatterFormat
}{
	{"---", yamlFrontMatter},
	{"+++", tomlFrontMatter},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var errMissingClosingMarker = errors.New("front matter start marker found but end marker is missing")

// splitFrontMatter separates a leading front matter block from the body.
// Without a start marker on the first line, format is noFrontMatter and body
// is the whole input.
func splitFrontMatter(content []byte) (fm, body []byte, format frontMatterFormat, err error) {
	content = bytes.TrimPrefix(content, utf8BOM)

	firstLine, rest, found := bytes.Cut(content, []byte("\n"))
	firstLine = bytes.TrimSuffix(firstLine, []byte("\r"))

	var marker string
	for _, m := range frontMatterMarkers {
		if string(firstLine) == m.marker {
			marker, format = m.marker, m.format
			break
		}
	}
	if format == noFrontMatter {
		return nil, content, noFrontMatter, nil
	}
	if !found {
		return nil, nil, format, errMissingClosingMarker
	}

	for offset := 0; offset < len(rest); {
		line := rest[offset:]
		next := len(rest)
		if nl := bytes.IndexByte(line, '\n'); nl >= 0 {
			line = line[:nl]
			next = offset + nl + 1
		}
		if string(bytes.TrimSuffix(line, []byte("\r"))) == marker {
			return rest[:offset], rest[next:], format, nil
		}
		offset = next
	}

	return nil, nil, format, errMissingClosingMarker
}

// parseFrontMatter decodes a raw block (without markers) into a key/value map.
func parseFrontMatter(fm []byte, format frontMatterFormat) (map[string]any, error) {
	meta := map[string]any{}
	if len(bytes.TrimSpace(fm)) == 0 {
		return meta, nil
	}

	var err error
	switch format {
	case yamlFrontMatter:
		err = yaml.Unmarshal(fm, &meta)
	case tomlFrontMatter:
		err = toml.Unmarshal(fm, &meta)
	default:
		return nil, fmt.Errorf("unknown front matter format %d", format)
	}
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return meta, nil
}

// serializeFrontMatter writes meta as a YAML block including markers. Keys
// come out sorted so the result is stable.
func serializeFrontMatter(meta map[string]any) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString("---\n")
	if len(meta) > 0 {
		enc := yaml.NewEncoder(&b)
		enc.SetIndent(2)
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}
	b.WriteString("---\n")
	return b.Bytes(), nil
}

func stringParam(meta map[string]any, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprint(v)
}

func boolParam(meta map[string]any, key string) (value, ok bool) {
	v, found := meta[key]
	if !found {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes":
			return true, true
		case "false", "no":
			return false, true
		}
	}
	return false, false
}

// listParam reads a tag-like field: either a space separated string or a
// list. The result is deduplicated and sorted.
func listParam(meta map[string]any, key string) []string {
	var out []string
	switch v := meta[key].(type) {
	case string:
		out = strings.Fields(v)
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
