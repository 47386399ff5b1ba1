package stories

import (
	"context"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBuildTime = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

// newTestSite lays out a small site in a temp dir and returns its config.
func newTestSite(t *testing.T) *SiteConf {
	t.Helper()
	dir := t.TempDir()

	writeTestFile(t, filepath.Join(dir, "stories.yaml"), `
siteTitle: Test Stories
siteUrl: https://stories.example.com
sources:
  - name: blog
    path: blog
  - name: pages
    path: pages
    kind: pages
authors:
  - id: daiku
    name: Daiku
    bio: bios/daiku
maxPostsOnIndex: 2
minPostsForFrequentTags: 2
imageWidths: [64, 128]
`)
	writeTestFile(t, filepath.Join(dir, "blog", "2024-01-10-first.md"), `---
title: First Post
tags: [swift, ios]
author: daiku
---
The first post body.
`)
	writeTestFile(t, filepath.Join(dir, "blog", "second", "index.md"), `---
title: Second Post
date: 2024-02-10
tags: [swift]
hero_image: hero.png
hero_image_alt: A hero
hero_image_credit_text: Someone
hero_image_credit_link: https://example.com
---
The *second* post body.
`)
	writeTestImage(t, filepath.Join(dir, "blog", "second", "hero.png"), 100, 50)
	writeTestFile(t, filepath.Join(dir, "blog", "2024-03-10-third.md"), `---
title: Third Post
author: nobody
---
The third post has no tags.
`)
	writeTestFile(t, filepath.Join(dir, "blog", "2024-04-10-secret.md"), `---
title: Secret Post
tags: [swift, secret]
hidden: true
---
Only reachable by link.
`)
	writeTestFile(t, filepath.Join(dir, "blog", "2024-05-10-draft.md"), `---
title: Draft Post
tags: [drafts]
draft: true
---
Not ready.
`)
	writeTestFile(t, filepath.Join(dir, "pages", "about.md"), "---\ntitle: About Us\n---\nWe build apps.\n")
	writeTestFile(t, filepath.Join(dir, "bios", "daiku", "index.md"), "Daiku builds *apps*.\n")
	writeTestImage(t, filepath.Join(dir, "bios", "daiku", "img.jpg"), 200, 160)
	writeTestFile(t, filepath.Join(dir, "static", "robots.txt"), "User-agent: *\n")

	conf, err := LoadConf(filepath.Join(dir, "stories.yaml"))
	require.NoError(t, err)
	return conf
}

func buildTestSite(t *testing.T, conf *SiteConf, opts Options) *Site {
	t.Helper()
	opts.BuildTime = testBuildTime
	site, err := Build(context.Background(), conf, opts)
	require.NoError(t, err)
	return site
}

func readDoc(t *testing.T, conf *SiteConf, urlPath string) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join(conf.OutDir, filepath.FromSlash(urlPath), "index.html"))
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func readOut(t *testing.T, conf *SiteConf, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(conf.OutDir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(b)
}

func listingTitles(doc *goquery.Document) []string {
	var titles []string
	doc.Find("article.listing-item h2 a").Each(func(_ int, s *goquery.Selection) {
		titles = append(titles, s.Text())
	})
	return titles
}

func TestReadSite(t *testing.T) {
	conf := newTestSite(t)
	site, err := ReadSite(context.Background(), conf, Options{BuildTime: testBuildTime})
	require.NoError(t, err)

	var titles []string
	for _, p := range site.Posts() {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"Secret Post", "Third Post", "Second Post", "First Post"}, titles)
	assert.Len(t, site.Pages(), 1)
	assert.Equal(t, 1, site.Bios().Len())
	assert.Equal(t, []TagCount{{Name: "swift", TotalCount: 2}, {Name: "ios", TotalCount: 1}}, site.TagCounts())
}

func TestReadSiteWithDrafts(t *testing.T) {
	conf := newTestSite(t)
	site, err := ReadSite(context.Background(), conf, Options{Drafts: true})
	require.NoError(t, err)
	assert.Len(t, site.Posts(), 5)
	assert.Contains(t, site.TagCounts(), TagCount{Name: "drafts", TotalCount: 1})
}

func TestBuildHome(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	doc := readDoc(t, conf, "/")
	assert.Equal(t, "Test Stories", doc.Find("title").Text())
	assert.Equal(t, "Latest stories", doc.Find(".listing h1").Text())
	assert.Equal(t, []string{"Third Post", "Second Post"}, listingTitles(doc))
	assert.Equal(t, "/blog/", doc.Find("p.more a").AttrOr("href", ""))
	assert.Equal(t, "/tags/", doc.Find("a.all-tags").AttrOr("href", ""))
	assert.Equal(t, "Test Stories - Back to home", doc.Find("a.header-title").AttrOr("aria-label", ""))
	assert.Equal(t, "/index.xml", doc.Find(`link[type="application/atom+xml"]`).AttrOr("href", ""))

	// swift has two visible posts and makes the navigation.
	assert.Equal(t, "swift", doc.Find("nav a.nav-tag").Text())
}

func TestBuildBlogListingSkipsHidden(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	doc := readDoc(t, conf, "/blog/")
	assert.Equal(t, []string{"Third Post", "Second Post", "First Post"}, listingTitles(doc))
	assert.Equal(t, 0, doc.Find("p.more").Length())
}

func TestBuildHiddenPostKeepsItsPage(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	doc := readDoc(t, conf, "/blog/2024-04-10-secret/")
	assert.Equal(t, "Secret Post", doc.Find("article.post h1").Text())

	_, err := os.Stat(filepath.Join(conf.OutDir, "tags", "secret"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(filepath.Join(conf.OutDir, "blog", "2024-05-10-draft"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildTags(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	doc := readDoc(t, conf, "/tags/")
	counts := map[string]string{}
	var order []string
	doc.Find("li.tag-item").Each(func(_ int, s *goquery.Selection) {
		name := s.Find("a").Text()
		order = append(order, name)
		counts[name] = s.Find("span.tag-count").Text()
		assert.Equal(t, "/tags/"+name+"/", s.Find("a").AttrOr("href", ""))
	})
	assert.Equal(t, []string{"ios", "swift"}, order)
	assert.Equal(t, map[string]string{"ios": "1", "swift": "2"}, counts)

	swift := readDoc(t, conf, "/tags/swift/")
	assert.Equal(t, "swift", swift.Find(".listing h1").Text())
	assert.Equal(t, []string{"Second Post", "First Post"}, listingTitles(swift))
	assert.Equal(t, "/tags/swift.xml", swift.Find(`link[type="application/atom+xml"]`).AttrOr("href", ""))
}

func TestBuildPostWithBio(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	doc := readDoc(t, conf, "/blog/2024-01-10-first/")
	assert.Equal(t, "First Post | Test Stories", doc.Find("title").Text())
	footer := doc.Find("footer.post-footer")
	require.Equal(t, 1, footer.Length())
	assert.Equal(t, "apps", footer.Find(".bio-text em").Text())
	img := footer.Find("img.bio-image")
	assert.Equal(t, "Profile picture of Daiku", img.AttrOr("alt", ""))
	assert.Equal(t, "120", img.AttrOr("width", ""))
	assert.FileExists(t, filepath.Join(conf.OutDir, filepath.FromSlash(img.AttrOr("src", ""))))

	var tags []string
	doc.Find(".post-meta a.tag").Each(func(_ int, s *goquery.Selection) { tags = append(tags, s.Text()) })
	assert.Equal(t, []string{"swift", "ios"}, tags)
}

func TestBuildPostWithoutBio(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	// Unknown author.
	doc := readDoc(t, conf, "/blog/2024-03-10-third/")
	assert.Equal(t, 0, doc.Find("footer.post-footer").Length())

	// No author at all.
	doc = readDoc(t, conf, "/blog/second/")
	assert.Equal(t, 0, doc.Find("footer.post-footer").Length())
}

func TestBuildHeroImage(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	doc := readDoc(t, conf, "/blog/second/")
	img := doc.Find("figure.hero img")
	require.Equal(t, 1, img.Length())
	assert.Equal(t, "A hero", img.AttrOr("alt", ""))
	assert.Equal(t, "100", img.AttrOr("width", ""))
	assert.Contains(t, img.AttrOr("srcset", ""), " 64w")
	assert.Contains(t, doc.Find("figure.hero figcaption").Text(), "Photo Credit: Someone")
	assert.FileExists(t, filepath.Join(conf.OutDir, filepath.FromSlash(img.AttrOr("src", ""))))
}

func TestBuildPage(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	doc := readDoc(t, conf, "/about/")
	assert.Equal(t, "About Us | Test Stories", doc.Find("title").Text())
	assert.Contains(t, doc.Find("main").Text(), "We build apps.")
}

func TestBuildFeeds(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	feed := readOut(t, conf, "index.xml")
	for _, title := range []string{"First Post", "Second Post", "Third Post"} {
		assert.Contains(t, feed, title)
	}
	assert.NotContains(t, feed, "Secret Post")
	assert.NotContains(t, feed, "Draft Post")

	swift := readOut(t, conf, "tags/swift.xml")
	assert.Contains(t, swift, "First Post")
	assert.NotContains(t, swift, "Third Post")
	assert.NotContains(t, swift, "Secret Post")

	_, err := os.Stat(filepath.Join(conf.OutDir, "tags", "secret.xml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildSitemap(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})

	var set sitemapURLSet
	require.NoError(t, xml.Unmarshal([]byte(readOut(t, conf, "sitemap.xml")), &set))

	var locs []string
	for _, u := range set.URLs {
		locs = append(locs, u.Loc)
	}
	base := "https://stories.example.com"
	assert.Contains(t, locs, base+"/")
	assert.Contains(t, locs, base+"/blog/2024-01-10-first/")
	assert.Contains(t, locs, base+"/tags/swift/")
	assert.Contains(t, locs, base+"/about/")
	assert.NotContains(t, locs, base+"/blog/2024-04-10-secret/")
	assert.NotContains(t, locs, base+"/tags/secret/")
}

func TestBuildCopiesStaticFiles(t *testing.T) {
	conf := newTestSite(t)
	buildTestSite(t, conf, Options{})
	assert.Equal(t, "User-agent: *\n", readOut(t, conf, "robots.txt"))
}

func TestBuildWithoutPlugins(t *testing.T) {
	conf := newTestSite(t)
	conf.Plugins = nil
	buildTestSite(t, conf, Options{})

	for _, name := range []string{"index.xml", "sitemap.xml", "robots.txt"} {
		_, err := os.Stat(filepath.Join(conf.OutDir, name))
		assert.ErrorIs(t, err, os.ErrNotExist, name)
	}
	doc := readDoc(t, conf, "/")
	assert.Equal(t, 0, doc.Find(`link[type="application/atom+xml"]`).Length())
}

func TestBuildDuplicateSlug(t *testing.T) {
	conf := newTestSite(t)
	writeTestFile(t, filepath.Join(conf.Sources[0].Path, "copy.md"), "---\ndate: 2024-01-01\nslug: second\n---\nx\n")

	_, err := ReadSite(context.Background(), conf, Options{})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestBuildCustomTemplates(t *testing.T) {
	conf := newTestSite(t)
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "layout.html"), `<html><body>{{block "content" .}}{{end}}</body></html>`)
	for _, name := range []string{"post.html", "list.html", "tags.html", "page.html"} {
		kind := strings.TrimSuffix(name, ".html")
		writeTestFile(t, filepath.Join(dir, name), `{{define "content"}}<p class="custom">`+kind+`</p>{{end}}`)
	}
	conf.TemplateDir = dir
	buildTestSite(t, conf, Options{})

	assert.Equal(t, "list", readDoc(t, conf, "/").Find("p.custom").Text())
	assert.Equal(t, "tags", readDoc(t, conf, "/tags/").Find("p.custom").Text())
}

func TestReadSiteRejectsPageOnGeneratedPath(t *testing.T) {
	for _, slug := range []string{"tags", "blog", "blog/about", "sitemap.xml", "index.xml"} {
		t.Run(slug, func(t *testing.T) {
			conf := newTestSite(t)
			writeTestFile(t, filepath.Join(conf.Sources[1].Path, "clash.md"), "---\nslug: "+slug+"\n---\nx\n")

			_, err := ReadSite(context.Background(), conf, Options{})
			assert.ErrorIs(t, err, ErrDuplicateSlug)
		})
	}
}

func TestReadSiteRejectsPageOnCustomTagsPath(t *testing.T) {
	conf := newTestSite(t)
	conf.TagsPath = "topics"
	writeTestFile(t, filepath.Join(conf.Sources[1].Path, "topics.md"), "x\n")

	_, err := ReadSite(context.Background(), conf, Options{})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestReadSiteRejectsEscapingSlugs(t *testing.T) {
	for i, src := range []int{0, 1} {
		conf := newTestSite(t)
		writeTestFile(t, filepath.Join(conf.Sources[src].Path, "escape.md"),
			"---\ndate: 2024-01-01\nslug: ../../outside\n---\nx\n")

		_, err := ReadSite(context.Background(), conf, Options{})
		assert.ErrorIs(t, err, ErrInvalidSlug, "source %d", i)
		_, statErr := os.Stat(filepath.Join(filepath.Dir(conf.OutDir), "outside"))
		assert.ErrorIs(t, statErr, os.ErrNotExist)
	}
}

func TestReadSitePageAndPostShareRoot(t *testing.T) {
	conf := newTestSite(t)
	conf.BlogPath = ""
	writeTestFile(t, filepath.Join(conf.Sources[0].Path, "about-post.md"), "---\ndate: 2024-01-01\nslug: about\n---\nx\n")

	_, err := ReadSite(context.Background(), conf, Options{})
	assert.ErrorIs(t, err, ErrDuplicateSlug)
}

func TestRenderAtomWithoutHtml(t *testing.T) {
	conf := newTestSite(t)
	site, err := ReadSite(context.Background(), conf, Options{BuildTime: testBuildTime})
	require.NoError(t, err)
	require.NoError(t, site.RenderAtom())

	var feed struct {
		Entries []struct {
			Title   string `xml:"title"`
			Content string `xml:"content"`
		} `xml:"entry"`
	}
	require.NoError(t, xml.Unmarshal([]byte(readOut(t, conf, "index.xml")), &feed))

	found := false
	for _, e := range feed.Entries {
		if e.Title == "Second Post" {
			found = true
			assert.Contains(t, e.Content, "<em>second</em>")
		}
	}
	assert.True(t, found)
}
