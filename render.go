package stories

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"time"
)

func formatDate(d time.Time) string {
	return d.Format("January 2, 2006")
}

func formatDateShort(d time.Time) string {
	return d.Format("Jan 2, 2006")
}

// sitePaths builds the URL paths of every generated page.
type sitePaths struct {
	base, blog, tags string
}

func newSitePaths(conf *SiteConf) sitePaths {
	return sitePaths{base: conf.BasePath, blog: conf.BlogPath, tags: conf.TagsPath}
}

func (sp sitePaths) Home() string            { return replaceSlashes(sp.base) }
func (sp sitePaths) Blog() string            { return replaceSlashes(sp.base, sp.blog) }
func (sp sitePaths) Post(slug string) string { return replaceSlashes(sp.base, sp.blog, slug) }
func (sp sitePaths) Tags() string            { return replaceSlashes(sp.base, sp.tags) }
func (sp sitePaths) Tag(slug string) string  { return replaceSlashes(sp.base, sp.tags, slug) }
func (sp sitePaths) Page(slug string) string { return replaceSlashes(sp.base, slug) }
func (sp sitePaths) Feed() string            { return sp.Home() + "index.xml" }
func (sp sitePaths) TagFeed(slug string) string {
	return sp.Tags() + slug + ".xml"
}

type siteInfo struct {
	Title  string
	URL    string
	Author string
	Paths  sitePaths
}

type templateParam struct {
	Site         *siteInfo
	PageTitle    string
	MetaDesc     string
	FrequentTags []Tag
	// A short id such as a tag slug or "blog"
	FileId  string
	FeedURL string
}

func (t templateParam) IdIs(id string) bool {
	return t.FileId == id
}

type postTemplateParam struct {
	templateParam
	*Post
	RenderedBody template.HTML
	Bio          *Bio
}

type postListTemplateParam struct {
	templateParam
	PageHeading  string
	Posts        []*Post
	ShowMoreLink bool
}

type tagsTemplateParam struct {
	templateParam
	Tags []TagCount
}

type pageTemplateParam struct {
	templateParam
	*Page
	RenderedBody template.HTML
}

type templateEngine struct {
	toHtml        renderer
	fsys          fs.FS
	funcs         template.FuncMap
	templateCache map[string]*template.Template
}

func newTemplateEngine(r renderer, fsys fs.FS, paths sitePaths) *templateEngine {
	funcs := template.FuncMap{
		"postURL":    paths.Post,
		"tagURL":     func(t Tag) string { return paths.Tag(t.Slug) },
		"tagNameURL": func(name string) string { return paths.Tag(Slugify(name)) },
		"formatDate": formatDate,
	}
	return &templateEngine{
		toHtml:        r,
		fsys:          fsys,
		funcs:         funcs,
		templateCache: make(map[string]*template.Template),
	}
}

// renderPost writes the post page and returns the rendered body for reuse
// in feeds.
func (te *templateEngine) renderPost(tp templateParam, p *Post, bio *Bio, w io.Writer) (string, error) {
	renderedBody := template.HTML(te.toHtml.render(p.Body))
	param := postTemplateParam{
		templateParam: tp,
		Post:          p,
		RenderedBody:  renderedBody,
		Bio:           bio,
	}

	t, err := te.getTemplate("post.html")
	if err != nil {
		return "", err
	}
	return string(renderedBody), t.Execute(w, param)
}

func (te *templateEngine) renderPostList(tp templateParam, ps []*Post, showMoreLink bool, pageHeading string, w io.Writer) error {
	param := postListTemplateParam{
		templateParam: tp,
		PageHeading:   pageHeading,
		Posts:         ps,
		ShowMoreLink:  showMoreLink,
	}
	t, err := te.getTemplate("list.html")
	if err != nil {
		return err
	}
	return t.Execute(w, param)
}

func (te *templateEngine) renderTags(tp templateParam, tags []TagCount, w io.Writer) error {
	param := tagsTemplateParam{
		templateParam: tp,
		Tags:          tags,
	}
	t, err := te.getTemplate("tags.html")
	if err != nil {
		return err
	}
	return t.Execute(w, param)
}

func (te *templateEngine) renderPage(tp templateParam, pg *Page, w io.Writer) error {
	param := pageTemplateParam{
		templateParam: tp,
		Page:          pg,
		RenderedBody:  template.HTML(te.toHtml.render(pg.Body)),
	}
	t, err := te.getTemplate("page.html")
	if err != nil {
		return err
	}
	return t.Execute(w, param)
}

// getTemplate parses layout.html together with the named page template,
// which defines the "content" block.
func (te *templateEngine) getTemplate(filename string) (*template.Template, error) {
	t, ok := te.templateCache[filename]
	if !ok {
		var err error
		t, err = template.New("layout.html").Funcs(te.funcs).ParseFS(te.fsys, "layout.html", filename)
		if err != nil {
			return nil, fmt.Errorf("parse template %v: %w", filename, err)
		}
		te.templateCache[filename] = t
	}
	return t, nil
}
