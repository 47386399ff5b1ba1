package stories

import (
	"encoding/xml"
	"os"
	"path/filepath"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// sitemap lists every public page. Hidden posts keep their page but are
// not announced here.
func (s *Site) sitemap() sitemapURLSet {
	abs := func(p string) string { return absoluteURL(s.conf.SiteURL, p) }

	urls := []sitemapURL{
		{Loc: abs(s.paths.Home())},
		{Loc: abs(s.paths.Blog())},
		{Loc: abs(s.paths.Tags())},
	}
	for _, p := range VisiblePosts(s.posts) {
		u := sitemapURL{Loc: abs(s.paths.Post(p.Slug))}
		if !p.Date.IsZero() {
			u.LastMod = p.Date.Format("2006-01-02")
		}
		urls = append(urls, u)
	}
	for _, t := range groupByTag(s.posts) {
		urls = append(urls, sitemapURL{Loc: abs(s.paths.Tag(t.Tag.Slug))})
	}
	for _, pg := range s.pages {
		urls = append(urls, sitemapURL{Loc: abs(s.paths.Page(pg.Slug))})
	}

	return sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
}

func (s *Site) RenderSitemap() error {
	out, err := xml.MarshalIndent(s.sitemap(), "", "  ")
	if err != nil {
		return err
	}
	out = append([]byte(xml.Header), out...)
	return os.WriteFile(filepath.Join(s.conf.OutDir, "sitemap.xml"), out, 0o644)
}
