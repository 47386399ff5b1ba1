// Package stories is the static generator behind The Left Bit Stories: a
// blog with tags, author bios, hero images and atom feeds.
//
// Content lives in markdown files with YAML front matter, in the source
// directories named by the site configuration. Posts flagged `hidden: true`
// keep their own page but stay out of listings, tag counts, feeds and the
// sitemap. A default theme is embedded; set templateDir to bring your own.
package stories

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/otiai10/copy"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Include posts and pages with the draft flag.
	Drafts bool
	Logger *slog.Logger
	// BuildTime stamps the feeds; defaults to now.
	BuildTime time.Time
}

type Site struct {
	posts       posts
	pages       []*Page
	conf        *SiteConf
	paths       sitePaths
	bios        *BioRegistry
	images      *ImageProcessor
	md          renderer
	log         *slog.Logger
	buildTime   time.Time
	renderCache map[string]string
}

// ReadSite reads all sources, author bios and images. Nothing is written
// except processed images.
func ReadSite(ctx context.Context, conf *SiteConf, opts Options) (*Site, error) {
	thisSite := &Site{
		posts:       make(posts, 0, 100),
		conf:        conf,
		paths:       newSitePaths(conf),
		md:          newMarkdownRenderer(),
		log:         opts.Logger,
		buildTime:   opts.BuildTime,
		renderCache: make(map[string]string),
	}
	if thisSite.log == nil {
		thisSite.log = slog.Default()
	}
	if thisSite.buildTime.IsZero() {
		thisSite.buildTime = time.Now()
	}

	for _, src := range conf.Sources {
		ps, pages, err := readSource(src, conf, opts.Drafts)
		if err != nil {
			return nil, err
		}
		thisSite.posts = append(thisSite.posts, ps...)
		thisSite.pages = append(thisSite.pages, pages...)
	}
	if err := thisSite.checkSlugs(); err != nil {
		return nil, err
	}

	// Order posts by date, newest first.
	slices.SortStableFunc(thisSite.posts, func(a, b *Post) int { return b.Date.Compare(a.Date) })

	thisSite.images = NewImageProcessor(
		thisSite.outPath(replaceSlashes(conf.BasePath, "static", "images")),
		replaceSlashes(conf.BasePath, "static", "images"),
		conf.ImageWidths,
		conf.ImageQuality,
		conf.HasPlugin(PluginImages),
	)

	bios, err := loadBios(ctx, conf.Authors, thisSite.md, thisSite.images)
	if err != nil {
		return nil, err
	}
	thisSite.bios = bios

	if err := thisSite.processHeroImages(ctx); err != nil {
		return nil, err
	}

	thisSite.log.Info("read site",
		"posts", len(thisSite.posts),
		"pages", len(thisSite.pages),
		"bios", bios.Len())
	return thisSite, nil
}

func (s *Site) Posts() []*Post        { return s.posts }
func (s *Site) Pages() []*Page        { return s.pages }
func (s *Site) Bios() *BioRegistry    { return s.bios }
func (s *Site) TagCounts() []TagCount { return CountTags(s.posts) }

// checkSlugs rejects slugs that would write outside the blog or the
// output dir, and page slugs that land on a generated page or file.
func (s *Site) checkSlugs() error {
	seen := make(map[string]string)
	for _, p := range s.posts {
		if err := validSlug(p.Slug); err != nil {
			return fmt.Errorf("post %v: %w", p.Path, err)
		}
		if other, ok := seen[p.Slug]; ok {
			return fmt.Errorf("%w %q: %v and %v", ErrDuplicateSlug, p.Slug, other, p.Path)
		}
		seen[p.Slug] = p.Path
	}

	reserved := map[string]string{
		"index.xml":   "the site feed",
		"sitemap.xml": "the sitemap",
	}
	blogRoot := firstSegment(s.conf.BlogPath)
	reserved[blogRoot] = "the blog"
	reserved[firstSegment(s.conf.TagsPath)] = "the tags"

	// Posts share the root with pages when the blog has no path of its own.
	if blogRoot != "" {
		seen = make(map[string]string)
	}
	for _, pg := range s.pages {
		if err := validSlug(pg.Slug); err != nil {
			return fmt.Errorf("page %v: %w", pg.Path, err)
		}
		if what, ok := reserved[firstSegment(pg.Slug)]; ok {
			return fmt.Errorf("%w %q: page %v collides with %v", ErrDuplicateSlug, pg.Slug, pg.Path, what)
		}
		if other, ok := seen[pg.Slug]; ok {
			return fmt.Errorf("%w %q: %v and %v", ErrDuplicateSlug, pg.Slug, other, pg.Path)
		}
		seen[pg.Slug] = pg.Path
	}
	return nil
}

func validSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSlug)
	}
	for _, seg := range strings.Split(slug, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsRune(seg, '\\') {
			return fmt.Errorf("%w %q", ErrInvalidSlug, slug)
		}
	}
	return nil
}

func firstSegment(p string) string {
	first, _, _ := strings.Cut(strings.Trim(p, "/"), "/")
	return first
}

func (s *Site) processHeroImages(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, p := range s.posts {
		if p.Hero == nil {
			continue
		}
		p, hero := p, p.Hero
		g.Go(func() error {
			img, err := s.images.Responsive(gctx, hero.Source, hero.Alt)
			if err != nil {
				return fmt.Errorf("hero image of %v: %w", p.Path, err)
			}
			hero.Image = img
			return nil
		})
	}
	return g.Wait()
}

// outPath maps a URL path to a directory under OutDir.
func (s *Site) outPath(urlPath string) string {
	return filepath.Join(s.conf.OutDir, filepath.FromSlash(urlPath))
}

func (s *Site) themeFS() (fs.FS, error) {
	if s.conf.TemplateDir != "" {
		return os.DirFS(s.conf.TemplateDir), nil
	}
	return fs.Sub(defaultTheme, "templates")
}

// writePage renders into urlPath/index.html.
func (s *Site) writePage(urlPath string, render func(w io.Writer) error) error {
	dir := s.outPath(urlPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var b bytes.Buffer
	if err := render(&b); err != nil {
		return fmt.Errorf("render %v: %w", urlPath, err)
	}
	return os.WriteFile(filepath.Join(dir, "index.html"), b.Bytes(), 0o644)
}

func (s *Site) RenderHtml() error {
	themeFS, err := s.themeFS()
	if err != nil {
		return err
	}
	engine := newTemplateEngine(s.md, themeFS, s.paths)

	info := &siteInfo{
		Title:  s.conf.SiteTitle,
		URL:    s.conf.SiteURL,
		Author: s.conf.Author,
		Paths:  s.paths,
	}

	// Create a global template parameter holder. We'll re-use it for all
	// pages, overwriting the title.
	maxAgeInMonths := s.conf.MaxAgeForFrequentTagsInMonths
	if maxAgeInMonths == 0 {
		maxAgeInMonths = 24
	}
	minPostDate := s.buildTime.AddDate(0, -maxAgeInMonths, 0)
	globalTP := templateParam{
		Site: info,
		FrequentTags: groupByTag(s.posts.pruneOlderThan(minPostDate)).frequentTags(
			s.conf.NumFrequentTags,
			s.conf.MinPostsForFrequentTags),
	}
	if s.conf.HasPlugin(PluginFeeds) {
		globalTP.FeedURL = s.paths.Feed()
	}

	// Render the posts, hidden ones included.
	for _, p := range s.posts {
		tp := globalTP
		tp.PageTitle = p.Title
		tp.MetaDesc = p.Excerpt
		tp.FileId = p.Slug

		var bio *Bio
		if b, ok := s.bios.Lookup(p.Author); ok {
			bio = &b
		} else if p.Author != "" {
			s.log.Debug("no bio for author", "author", p.Author, "post", p.Slug)
		}

		err := s.writePage(s.paths.Post(p.Slug), func(w io.Writer) error {
			renderedBody, err := engine.renderPost(tp, p, bio, w)
			s.renderCache[p.Slug] = renderedBody
			return err
		})
		if err != nil {
			return err
		}
	}

	visible := VisiblePosts(s.posts)

	// The blog listing.
	tp := globalTP
	tp.PageTitle = "Blog"
	tp.FileId = "blog"
	err = s.writePage(s.paths.Blog(), func(w io.Writer) error {
		return engine.renderPostList(tp, visible, false, "Blog", w)
	})
	if err != nil {
		return err
	}

	// The tags overview.
	tagCounts := CountTags(s.posts)
	SortTagCountsByName(tagCounts)
	tp = globalTP
	tp.PageTitle = "Tags"
	tp.FileId = "tags"
	err = s.writePage(s.paths.Tags(), func(w io.Writer) error {
		return engine.renderTags(tp, tagCounts, w)
	})
	if err != nil {
		return err
	}

	// One listing per tag.
	slugs := make(map[string]string)
	for _, t := range groupByTag(s.posts) {
		if other, ok := slugs[t.Tag.Slug]; ok {
			s.log.Warn("tags share a page", "slug", t.Tag.Slug, "tag", t.Tag.Name, "other", other)
		}
		slugs[t.Tag.Slug] = t.Tag.Name

		tp := globalTP
		tp.PageTitle = t.Tag.Name
		tp.FileId = t.Tag.Slug
		if s.conf.HasPlugin(PluginFeeds) {
			tp.FeedURL = s.paths.TagFeed(t.Tag.Slug)
		}
		err := s.writePage(s.paths.Tag(t.Tag.Slug), func(w io.Writer) error {
			return engine.renderPostList(tp, t.Posts, false, t.Tag.Name, w)
		})
		if err != nil {
			return err
		}
	}

	for _, pg := range s.pages {
		tp := globalTP
		tp.PageTitle = pg.Title
		tp.MetaDesc = pg.Description
		tp.FileId = pg.Slug
		err := s.writePage(s.paths.Page(pg.Slug), func(w io.Writer) error {
			return engine.renderPage(tp, pg, w)
		})
		if err != nil {
			return err
		}
	}

	// Render index.html with the last MaxPostsOnIndex posts.
	postsForIndex := visible
	haveMorePosts := len(visible) > s.conf.MaxPostsOnIndex
	if haveMorePosts {
		postsForIndex = postsForIndex[:s.conf.MaxPostsOnIndex]
	}
	tp = globalTP
	tp.FileId = "index"
	return s.writePage(s.paths.Home(), func(w io.Writer) error {
		return engine.renderPostList(tp, postsForIndex, haveMorePosts, "Latest stories", w)
	})
}

func (s *Site) RenderAll() error {
	if err := os.MkdirAll(s.conf.OutDir, 0o755); err != nil {
		return err
	}
	s.log.Info("writing site", "outDir", s.conf.OutDir)

	if err := s.RenderHtml(); err != nil {
		return err
	}
	if s.conf.HasPlugin(PluginFeeds) {
		if err := s.RenderAtom(); err != nil {
			return err
		}
	}
	if s.conf.HasPlugin(PluginSitemap) {
		if err := s.RenderSitemap(); err != nil {
			return err
		}
	}
	return nil
}

// CopyStaticFiles copies the static directory into the output root.
func (s *Site) CopyStaticFiles() error {
	if !s.conf.HasPlugin(PluginStatic) {
		return nil
	}
	srcDir := s.conf.StaticFilesDir
	if _, err := os.Stat(srcDir); errors.Is(err, fs.ErrNotExist) {
		s.log.Debug("no static files", "dir", srcDir)
		return nil
	}
	s.log.Info("copying static files", "from", srcDir, "to", s.conf.OutDir)
	return copy.Copy(srcDir, s.conf.OutDir)
}

// Build reads and renders the whole site.
func Build(ctx context.Context, conf *SiteConf, opts Options) (*Site, error) {
	site, err := ReadSite(ctx, conf, opts)
	if err != nil {
		return nil, err
	}
	if err := site.RenderAll(); err != nil {
		return nil, err
	}
	if err := site.CopyStaticFiles(); err != nil {
		return nil, err
	}
	return site, nil
}
