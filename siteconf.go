package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type SiteConf struct {
	Title       string `json:"title" yaml:"title" toml:"title"`
	Description string `json:"description" yaml:"description" toml:"description"`
	BaseUrl     string `json:"baseUrl" yaml:"baseUrl" toml:"baseUrl"`

	SourceDir      string   `json:"sourceDir" yaml:"sourceDir" toml:"sourceDir"`
	PostExtensions []string `json:"postExtensions" yaml:"postExtensions" toml:"postExtensions"`
	StaticDir      string   `json:"staticDir" yaml:"staticDir" toml:"staticDir"`

	LayoutsDir string `json:"layoutsDir" yaml:"layoutsDir" toml:"layoutsDir"`
	PostLayout string `json:"postLayout" yaml:"postLayout" toml:"postLayout"`
	ListLayout string `json:"listLayout" yaml:"listLayout" toml:"listLayout"`
	TagsLayout string `json:"tagsLayout" yaml:"tagsLayout" toml:"tagsLayout"`

	OutputDir  string `json:"outputDir" yaml:"outputDir" toml:"outputDir"`
	Permalink  string `json:"permalink" yaml:"permalink" toml:"permalink"`
	TagsOutDir string `json:"tagsOutDir" yaml:"tagsOutDir" toml:"tagsOutDir"`

	MaxPostsOnIndex         int `json:"maxPostsOnIndex" yaml:"maxPostsOnIndex" toml:"maxPostsOnIndex"`
	NumFrequentTags         int `json:"numFrequentTags" yaml:"numFrequentTags" toml:"numFrequentTags"`
	MinPostsForFrequentTags int `json:"minPostsForFrequentTags" yaml:"minPostsForFrequentTags" toml:"minPostsForFrequentTags"`

	Highlight      bool   `json:"highlight" yaml:"highlight" toml:"highlight"`
	HighlightStyle string `json:"highlightStyle" yaml:"highlightStyle" toml:"highlightStyle"`

	Workers int `json:"workers" yaml:"workers" toml:"workers"`

	// Include drafts. Only set from the command line.
	Drafts bool `json:"-" yaml:"-" toml:"-"`
}

// readConf loads the configuration file, or starts from the defaults when
// fileName is empty. Relative paths in the file resolve against the file's
// directory because the executable can be called from anywhere. Non-empty
// flag values win over the file.
func readConf(fileName string, flags SiteFlags) (*SiteConf, error) {
	conf := SiteConf{}
	baseDir := "."

	if fileName != "" {
		rawConf, err := os.ReadFile(fileName)
		if err != nil {
			return nil, newBuildError(InvalidConfig, err, fileName)
		}
		if err := decodeConf(fileName, rawConf, &conf); err != nil {
			return nil, newBuildError(InvalidConfig, err, fileName)
		}
		baseDir = filepath.Dir(fileName)
	}

	if len(conf.SourceDir) == 0 {
		conf.SourceDir = "."
	}
	conf.SourceDir = normalizePath(conf.SourceDir, baseDir)
	conf.LayoutsDir = normalizePath(conf.LayoutsDir, baseDir)
	conf.StaticDir = normalizePath(conf.StaticDir, baseDir)
	conf.OutputDir = normalizePath(conf.OutputDir, baseDir)

	if len(flags.Source) > 0 {
		conf.SourceDir = flags.Source
	}
	if len(flags.Output) > 0 {
		conf.OutputDir = flags.Output
	}
	conf.Drafts = flags.Drafts

	conf.applyDefaults()
	if err := conf.validate(); err != nil {
		return nil, newBuildError(InvalidConfig, err, fileName)
	}
	return &conf, nil
}

func decodeConf(fileName string, raw []byte, conf *SiteConf) error {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		return dec.Decode(conf)
	case ".yml", ".yaml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(conf); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		return nil
	case ".toml":
		return toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(conf)
	default:
		return fmt.Errorf("unsupported config format %q, use .yml, .yaml, .toml or .json", ext)
	}
}

// applyDefaults fills everything left empty. Directory defaults hang off the
// source directory, so SourceDir must be set first.
func (conf *SiteConf) applyDefaults() {
	if len(conf.LayoutsDir) == 0 {
		conf.LayoutsDir = filepath.Join(conf.SourceDir, "_layouts")
	}
	if len(conf.StaticDir) == 0 {
		conf.StaticDir = filepath.Join(conf.SourceDir, "static")
	}
	if len(conf.OutputDir) == 0 {
		conf.OutputDir = filepath.Join(conf.SourceDir, "_site")
	}
	if len(conf.PostExtensions) == 0 {
		conf.PostExtensions = []string{".md", ".markdown"}
	}
	if len(conf.PostLayout) == 0 {
		conf.PostLayout = "post"
	}
	if len(conf.ListLayout) == 0 {
		conf.ListLayout = "list"
	}
	if len(conf.TagsLayout) == 0 {
		conf.TagsLayout = "tags"
	}
	if len(conf.Permalink) == 0 {
		conf.Permalink = defaultPermalink
	}
	if len(conf.TagsOutDir) == 0 {
		conf.TagsOutDir = "tags"
	}
	if len(conf.HighlightStyle) == 0 {
		conf.HighlightStyle = "github"
	}
	if conf.Workers <= 0 {
		conf.Workers = runtime.GOMAXPROCS(0)
	}
}

func (conf *SiteConf) validate() error {
	if err := checkPermalinkPattern(conf.Permalink); err != nil {
		return err
	}
	if conf.MaxPostsOnIndex < 0 {
		return fmt.Errorf("maxPostsOnIndex must not be negative, got %d", conf.MaxPostsOnIndex)
	}
	for i, ext := range conf.PostExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		conf.PostExtensions[i] = ext
	}
	if strings.Contains(filepath.ToSlash(conf.TagsOutDir), "..") {
		return fmt.Errorf("tagsOutDir %q must stay inside the output directory", conf.TagsOutDir)
	}
	return nil
}

func normalizePath(path, baseDir string) string {
	if len(path) == 0 || filepath.IsAbs(path) {
		return path
	}
	absPath := filepath.Join(baseDir, path)
	slog.Debug("Normalizing path", "path", path, "normalized", absPath)
	return absPath
}
