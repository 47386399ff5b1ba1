package stories

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

const (
	PluginImages  = "images"
	PluginFeeds   = "feeds"
	PluginSitemap = "sitemap"
	PluginStatic  = "static"
)

var knownPlugins = []string{PluginImages, PluginFeeds, PluginSitemap, PluginStatic}

const (
	SourceKindPosts = "posts"
	SourceKindPages = "pages"
)

var ErrUnknownPlugin = errors.New("unknown plugin")

// SourceConf is one content directory, e.g. name "blog", path "blog".
type SourceConf struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"`
	Kind string `mapstructure:"kind"`
}

// AuthorConf declares one author whose bio can appear under their posts.
// Bio is a directory holding index.md and img.jpg.
type AuthorConf struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	Bio  string `mapstructure:"bio"`
}

type SiteConf struct {
	SiteTitle string `mapstructure:"siteTitle"`
	SiteURL   string `mapstructure:"siteUrl"`
	Author    string `mapstructure:"author"`
	AuthorURI string `mapstructure:"authorUri"`

	Plugins []string     `mapstructure:"plugins"`
	Sources []SourceConf `mapstructure:"sources"`
	Authors []AuthorConf `mapstructure:"authors"`

	TemplateDir    string `mapstructure:"templateDir"`
	StaticFilesDir string `mapstructure:"staticFilesDir"`
	OutDir         string `mapstructure:"outDir"`

	BasePath string `mapstructure:"basePath"`
	BlogPath string `mapstructure:"blogPath"`
	TagsPath string `mapstructure:"tagsPath"`

	FileExtensions  []string `mapstructure:"fileExtensions"`
	DateStampFormat string   `mapstructure:"dateStampFormat"`

	MaxPostsOnIndex               int `mapstructure:"maxPostsOnIndex"`
	NumFrequentTags               int `mapstructure:"numFrequentTags"`
	MinPostsForFrequentTags       int `mapstructure:"minPostsForFrequentTags"`
	MaxAgeForFrequentTagsInMonths int `mapstructure:"maxAgeForFrequentTagsInMonths"`

	ImageWidths  []int `mapstructure:"imageWidths"`
	ImageQuality int   `mapstructure:"imageQuality"`
}

func (c *SiteConf) HasPlugin(name string) bool {
	return slices.Contains(c.Plugins, name)
}

// SourceDirs returns every directory that holds site input, for watching.
func (c *SiteConf) SourceDirs() []string {
	dirs := make([]string, 0, len(c.Sources)+len(c.Authors)+2)
	for _, s := range c.Sources {
		dirs = append(dirs, s.Path)
	}
	for _, a := range c.Authors {
		if a.Bio != "" {
			dirs = append(dirs, a.Bio)
		}
	}
	if c.TemplateDir != "" {
		dirs = append(dirs, c.TemplateDir)
	}
	if c.StaticFilesDir != "" {
		dirs = append(dirs, c.StaticFilesDir)
	}
	return dirs
}

func setConfDefaults(v *viper.Viper) {
	v.SetDefault("siteTitle", "")
	v.SetDefault("siteUrl", "http://localhost:8000/")
	v.SetDefault("plugins", []string{PluginImages, PluginFeeds, PluginSitemap, PluginStatic})
	v.SetDefault("sources", []map[string]any{{"name": "blog", "path": "blog", "kind": SourceKindPosts}})
	v.SetDefault("staticFilesDir", "static")
	v.SetDefault("outDir", "public")
	v.SetDefault("basePath", "/")
	v.SetDefault("blogPath", "blog")
	v.SetDefault("tagsPath", "tags")
	v.SetDefault("fileExtensions", []string{".md", ".mdx"})
	v.SetDefault("dateStampFormat", "2006-01-02")
	v.SetDefault("maxPostsOnIndex", 3)
	v.SetDefault("numFrequentTags", 6)
	v.SetDefault("minPostsForFrequentTags", 2)
	v.SetDefault("maxAgeForFrequentTagsInMonths", 24)
	v.SetDefault("imageWidths", []int{480, 960, 1440})
	v.SetDefault("imageQuality", 80)
}

// LoadConf reads the site configuration from a YAML or JSON file. Values
// can be overridden with STORIES_-prefixed environment variables. Relative
// paths are resolved against the directory of the configuration file.
func LoadConf(fileName string) (*SiteConf, error) {
	v := viper.New()
	setConfDefaults(v)

	v.SetConfigFile(fileName)
	v.SetEnvPrefix("STORIES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %v: %w", fileName, err)
	}

	conf := SiteConf{}
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("decode config %v: %w", fileName, err)
	}

	conf.normalize(filepath.Dir(fileName))

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", fileName, err)
	}
	return &conf, nil
}

// normalize fills source kinds and makes every directory absolute because
// the executable can be called from anywhere.
func (c *SiteConf) normalize(baseDir string) {
	for i := range c.Sources {
		if c.Sources[i].Kind == "" {
			c.Sources[i].Kind = SourceKindPosts
		}
		if c.Sources[i].Path != "" {
			c.Sources[i].Path = normalizePath(c.Sources[i].Path, baseDir)
		}
	}
	for i := range c.Authors {
		if c.Authors[i].Bio != "" {
			c.Authors[i].Bio = normalizePath(c.Authors[i].Bio, baseDir)
		}
	}
	if c.TemplateDir != "" {
		c.TemplateDir = normalizePath(c.TemplateDir, baseDir)
	}
	if c.StaticFilesDir != "" {
		c.StaticFilesDir = normalizePath(c.StaticFilesDir, baseDir)
	}
	if c.OutDir != "" {
		c.OutDir = normalizePath(c.OutDir, baseDir)
	}

	if c.Author == "" {
		c.Author = c.SiteTitle
	}
	if !strings.HasSuffix(c.SiteURL, "/") {
		c.SiteURL += "/"
	}
	for i, ext := range c.FileExtensions {
		if !strings.HasPrefix(ext, ".") {
			c.FileExtensions[i] = "." + ext
		}
	}
}

// Validate reports every problem with the configuration at once.
func (c *SiteConf) Validate() error {
	var errs []error

	if strings.TrimSpace(c.SiteTitle) == "" {
		errs = append(errs, errors.New("siteTitle is required"))
	}
	if c.OutDir == "" {
		errs = append(errs, errors.New("outDir is required"))
	}
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	for _, p := range c.Plugins {
		if !slices.Contains(knownPlugins, p) {
			errs = append(errs, fmt.Errorf("%w %q", ErrUnknownPlugin, p))
		}
	}

	names := make(map[string]bool)
	for _, s := range c.Sources {
		if s.Path == "" {
			errs = append(errs, fmt.Errorf("source %q has no path", s.Name))
		}
		if s.Kind != SourceKindPosts && s.Kind != SourceKindPages {
			errs = append(errs, fmt.Errorf("source %q has unknown kind %q", s.Name, s.Kind))
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate source name %q", s.Name))
		}
		names[s.Name] = true
	}

	ids := make(map[string]bool)
	for _, a := range c.Authors {
		if a.ID == "" {
			errs = append(errs, errors.New("author without id"))
			continue
		}
		if ids[a.ID] {
			errs = append(errs, fmt.Errorf("duplicate author id %q", a.ID))
		}
		ids[a.ID] = true
	}

	if c.MaxPostsOnIndex < 0 {
		errs = append(errs, fmt.Errorf("maxPostsOnIndex %d must not be negative", c.MaxPostsOnIndex))
	}
	for _, w := range c.ImageWidths {
		if w <= 0 {
			errs = append(errs, fmt.Errorf("image width %d must be positive", w))
		}
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 {
		errs = append(errs, fmt.Errorf("imageQuality %d out of range 1-100", c.ImageQuality))
	}

	return errors.Join(errs...)
}

func normalizePath(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	absPath, err := filepath.Abs(filepath.Join(baseDir, path))
	if err != nil {
		absPath = filepath.Join(baseDir, path)
	}
	slog.Debug("normalized path", "path", path, "abs", absPath)
	return absPath
}
