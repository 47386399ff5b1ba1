package stories

import (
	"os"
	"path/filepath"
	"time"

	atom "github.com/thomas11/atomgenerator"
)

// RenderAtom writes the site feed and one feed per tag. Hidden posts are
// left out of every feed.
func (s *Site) RenderAtom() error {
	filePath := filepath.Join(s.conf.OutDir, "index.xml")
	err := s.renderAndSaveFeed(s.conf.SiteTitle, s.paths.Home(), filePath, s.posts)
	if err != nil {
		return err
	}

	return s.renderAndSaveTagFeeds()
}

func (s *Site) renderFeed(title, relUrl string, ps []*Post) ([]byte, error) {
	feed := atom.Feed{
		Title:   title,
		Link:    absoluteURL(s.conf.SiteURL, relUrl),
		PubDate: s.buildTime,
	}
	feed.AddAuthor(atom.Author{
		Name: s.conf.Author,
		Uri:  s.conf.AuthorURI,
	})

	for _, p := range VisiblePosts(ps) {
		feed.AddEntry(s.entryForPost(p))
	}

	errs := feed.Validate()
	if len(errs) > 0 {
		s.log.Error("atom feed is not valid", "title", title)
		for _, e := range errs {
			s.log.Error(e.Error(), "title", title)
		}
		return nil, errs[0]
	}

	return feed.GenXml()
}

func (s *Site) entryForPost(p *Post) *atom.Entry {
	e := &atom.Entry{
		Title:       p.Title,
		Description: p.Excerpt,
		Link:        absoluteURL(s.conf.SiteURL, s.paths.Post(p.Slug)),
		PubDate:     p.Date,
	}
	if e.PubDate.IsZero() {
		e.PubDate = time.Unix(0, 0).UTC()
	}

	for _, t := range p.Tags {
		e.AddCategory(atom.Category{Term: t.Name})
	}

	// The cache is filled by RenderHtml; feeds rendered on their own
	// convert the body here.
	renderedBody, ok := s.renderCache[p.Slug]
	if !ok {
		renderedBody = s.md.render(p.Body)
	}
	e.Content = renderedBody

	return e
}

func (s *Site) renderAndSaveFeed(title, relUrl, filePath string, ps []*Post) error {
	atomXml, err := s.renderFeed(title, relUrl, ps)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(filePath, atomXml, 0o644)
}

func (s *Site) renderAndSaveTagFeeds() error {
	for _, tagPosts := range groupByTag(s.posts) {
		tag := tagPosts.Tag
		title := s.conf.SiteTitle + ` Tag "` + tag.Name + `"`
		filePath := filepath.Join(s.outPath(s.paths.Tags()), tag.Slug+".xml")

		err := s.renderAndSaveFeed(title, s.paths.Tag(tag.Slug), filePath, tagPosts.Posts)
		if err != nil {
			return err
		}
	}
	return nil
}
